package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/EgorLis/tgrelaybot/internal/conversation"
	"github.com/EgorLis/tgrelaybot/internal/feed"
	"github.com/EgorLis/tgrelaybot/internal/logger"
	"github.com/EgorLis/tgrelaybot/internal/media"
	"github.com/EgorLis/tgrelaybot/internal/playback"
	"github.com/EgorLis/tgrelaybot/internal/queue"
	"github.com/EgorLis/tgrelaybot/internal/telegram"
)

// Messenger: всё, что бот делает в чате. Реализует *telegram.Client.
type Messenger interface {
	playback.Notifier
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
	ReplyPhoto(ctx context.Context, chatID int64, replyTo int, photoURL, caption string) error
	Typing(ctx context.Context, chatID int64) error

	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	Ban(ctx context.Context, chatID, userID int64) error
	Kick(ctx context.Context, chatID, userID int64) error
	Mute(ctx context.Context, chatID, userID int64) error
}

// входящих сообщений на чат, ждущих своей очереди
const chatBacklog = 32

type Bot struct {
	msgr     Messenger
	tg       *telegram.Client // nil: сообщения подаются снаружи через HandleMessage
	resolver media.Resolver
	queues   *queue.Registry
	player   *playback.Simulator
	chat     *conversation.Manager // nil: только музыка
	workers  *semaphore.Weighted
	feed     *feed.Hub
	log      *logger.Logger

	// контекст жизни бота: фоновые циклы и ответы модели
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	chats   map[int64]chan *telegram.Message
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func New(msgr Messenger, resolver media.Resolver, log *logger.Logger, pcfg playback.Config) *Bot {
	queues := queue.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		msgr:     msgr,
		resolver: resolver,
		queues:   queues,
		player:   playback.New(queues, msgr, log, pcfg),
		log:      log.WithComponent("bot"),
		ctx:      ctx,
		cancel:   cancel,
		chats:    make(map[int64]chan *telegram.Message),
	}
}

// SetTelegram подписывает бота на события long-poll клиента.
// Start/Stop будут его подключать и отключать.
func (bot *Bot) SetTelegram(tg *telegram.Client) {
	bot.tg = tg
	tg.OnConnected = func() {
		bot.log.Info("connected", zap.String("username", tg.Username()))
	}
	tg.OnDisconnected = func() { bot.log.Info("disconnected") }
	tg.OnError = func(err error) { bot.log.Warn("telegram error", zap.Error(err)) }
	tg.OnMessage = bot.HandleMessage
}

// SetConversation включает режим компаньона: обычные сообщения уходят
// в модель, одновременно не больше workers ответов.
func (bot *Bot) SetConversation(m *conversation.Manager, workers int) {
	if workers < 1 {
		workers = 1
	}
	bot.chat = m
	bot.workers = semaphore.NewWeighted(int64(workers))
}

// SetFeed публикует события очереди в live-ленту.
func (bot *Bot) SetFeed(h *feed.Hub) {
	bot.feed = h
	bot.player.OnNowPlaying = h.NowPlaying
	bot.player.OnFinished = h.Finished
}

func (bot *Bot) SetSleeper(s playback.Sleeper) {
	bot.player.SetSleeper(s)
}

// Queues: реестр очередей (для наблюдения снаружи).
func (bot *Bot) Queues() *queue.Registry {
	return bot.queues
}

func (bot *Bot) Start() error {
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if bot.stopped {
		return errors.New("bot: already stopped")
	}
	if bot.started {
		return errors.New("bot: already started")
	}
	if bot.tg != nil {
		if err := bot.tg.Connect(bot.ctx); err != nil {
			return err
		}
	}
	bot.started = true
	return nil
}

// Stop отключает long-poll, обрывает ожидания плеера и ждёт все фоновые горутины.
// Повторный вызов ничего не делает.
func (bot *Bot) Stop() {
	bot.mu.Lock()
	if bot.stopped {
		bot.mu.Unlock()
		return
	}
	bot.stopped = true
	bot.mu.Unlock()

	// сначала отмена: HandleMessage из long-poll может ждать места в очереди чата
	bot.cancel()
	if bot.tg != nil {
		bot.tg.Disconnect()
	}
	bot.wg.Wait()
	bot.player.Wait()
}

// HandleMessage ставит сообщение в очередь его чата. Сообщения одного чата
// обрабатываются строго по порядку, разные чаты: параллельно.
func (bot *Bot) HandleMessage(m *telegram.Message) {
	if m == nil {
		return
	}
	bot.mu.Lock()
	if bot.stopped {
		bot.mu.Unlock()
		return
	}
	ch, ok := bot.chats[m.ChatID]
	if !ok {
		ch = make(chan *telegram.Message, chatBacklog)
		bot.chats[m.ChatID] = ch
		bot.wg.Add(1)
		go bot.chatWorker(ch)
	}
	bot.mu.Unlock()

	select {
	case ch <- m:
	case <-bot.ctx.Done():
	}
}

func (bot *Bot) chatWorker(ch <-chan *telegram.Message) {
	defer bot.wg.Done()
	for {
		select {
		case <-bot.ctx.Done():
			return
		case m := <-ch:
			bot.process(bot.ctx, m)
		}
	}
}

func (bot *Bot) process(ctx context.Context, m *telegram.Message) {
	log := bot.log.WithChat(m.ChatID)
	if m.IsCommand() {
		log.Debug("command", zap.String("cmd", m.Command), zap.String("from", m.FromName))
		if err := bot.HandleCommand(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			var re *replyError
			text := textInternal
			if errors.As(err, &re) {
				text = re.text
			} else {
				log.Error("command failed", zap.String("cmd", m.Command), zap.Error(err))
			}
			if rerr := bot.msgr.Reply(ctx, m.ChatID, m.ID, text); rerr != nil {
				log.Warn("reply failed", zap.Error(rerr))
			}
		}
		return
	}
	// «/что-то» без сущности команды: тоже не разговор
	if bot.chat != nil && !strings.HasPrefix(m.Text, "/") {
		bot.converse(ctx, m)
	}
}
