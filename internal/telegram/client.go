package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/logger"
)

type Config struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"pollTimeout"` // секунды long-poll
	Debug       bool   `mapstructure:"debug"`
}

type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	username    string
	log         *logger.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	// «События» long-poll
	OnConnected    func()
	OnMessage      func(*Message)
	OnDisconnected func()
	OnError        func(error)
}

// New авторизуется (getMe) и возвращает клиента. Long-poll не запускается.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token is empty")
	}
	log = log.WithComponent("telegram")
	_ = tgbotapi.SetLogger(zap.NewStdLog(log.Zap()))

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: auth: %w", err)
	}
	api.Debug = cfg.Debug

	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Client{
		api:         api,
		pollTimeout: cfg.PollTimeout,
		username:    api.Self.UserName,
		log:         log,
	}, nil
}

func (c *Client) Username() string { return c.username }

// Connect запускает цикл long-poll. Отмена ctx или Disconnect(): мягкий выход.
func (c *Client) Connect(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("telegram: already connected")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	if c.OnConnected != nil {
		c.OnConnected()
	}
	go c.pollLoop(ctx)
	return nil
}

// Disconnect останавливает long-poll и ждёт выхода из цикла
// (не дольше одного pollTimeout).
func (c *Client) Disconnect() {
	if !c.running.Load() {
		return
	}
	c.cancel()
	<-c.done
	c.running.Store(false)
}

// newPollBackoff: 1s, 2s, 4s ... 30s без джиттера и без предела по времени.
func newPollBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (c *Client) pollLoop(ctx context.Context) {
	defer func() {
		close(c.done)
		if c.OnDisconnected != nil {
			c.OnDisconnected()
		}
	}()

	bo := newPollBackoff()
	offset := 0

	for ctx.Err() == nil {
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = c.pollTimeout

		updates, err := c.api.GetUpdates(u)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			if c.OnError != nil {
				c.OnError(fmt.Errorf("poll failed (wait %v): %w", wait, err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		for _, up := range updates {
			if up.UpdateID >= offset {
				offset = up.UpdateID + 1
			}
			if up.Message == nil || c.OnMessage == nil {
				continue
			}
			c.OnMessage(convert(up.Message, c.username))
		}
	}
}

// ---------- отправка ----------

func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (c *Client) Reply(_ context.Context, chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	_, err := c.api.Send(msg)
	return err
}

func (c *Client) SendPhoto(_ context.Context, chatID int64, photoURL, caption string) error {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	p.Caption = caption
	_, err := c.api.Send(p)
	return err
}

func (c *Client) ReplyPhoto(_ context.Context, chatID int64, replyTo int, photoURL, caption string) error {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	p.Caption = caption
	p.ReplyToMessageID = replyTo
	_, err := c.api.Send(p)
	return err
}

// SendAudio: Telegram сам скачивает файл по ссылке.
func (c *Client) SendAudio(_ context.Context, chatID int64, audioURL, title, caption string) error {
	a := tgbotapi.NewAudio(chatID, tgbotapi.FileURL(audioURL))
	a.Title = title
	a.Caption = caption
	_, err := c.api.Send(a)
	return err
}

func (c *Client) Typing(_ context.Context, chatID int64) error {
	_, err := c.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// ---------- модерация ----------

// IsAdmin: administrator или creator.
func (c *Client) IsAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	m, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, err
	}
	return m.IsAdministrator() || m.IsCreator(), nil
}

func member(chatID, userID int64) tgbotapi.ChatMemberConfig {
	return tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID}
}

func (c *Client) Ban(_ context.Context, chatID, userID int64) error {
	_, err := c.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member(chatID, userID)})
	return err
}

// Kick = ban + unban: пользователь вылетает, но может вернуться.
func (c *Client) Kick(ctx context.Context, chatID, userID int64) error {
	if err := c.Ban(ctx, chatID, userID); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member(chatID, userID)})
	return err
}

func (c *Client) Mute(_ context.Context, chatID, userID int64) error {
	_, err := c.api.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: member(chatID, userID),
		Permissions:      &tgbotapi.ChatPermissions{CanSendMessages: false},
	})
	return err
}

// ---------- входящие ----------

func convert(m *tgbotapi.Message, botUsername string) *Message {
	out := &Message{
		ID:       m.MessageID,
		Text:     m.Text,
		FromName: "Unknown",
	}
	if m.Chat != nil {
		out.ChatID = m.Chat.ID
		out.Private = m.Chat.IsPrivate()
	}
	if m.From != nil {
		out.FromID = m.From.ID
		if m.From.FirstName != "" {
			out.FromName = m.From.FirstName
		}
	}
	if m.IsCommand() && addressedTo(m.CommandWithAt(), botUsername) {
		out.Command = strings.ToLower(m.Command())
		out.Args = strings.TrimSpace(m.CommandArguments())
	}
	if r := m.ReplyToMessage; r != nil && r.From != nil {
		out.ReplyToUserID = r.From.ID
	}
	if botUsername != "" && strings.Contains(strings.ToLower(m.Text), "@"+strings.ToLower(botUsername)) {
		out.Mentioned = true
	}
	for _, e := range m.Entities {
		if e.Type == "mention" {
			out.Mentioned = true
		}
	}
	return out
}

// addressedTo: "/cmd": всем ботам, "/cmd@name": только боту name.
func addressedTo(cmdWithAt, botUsername string) bool {
	i := strings.IndexByte(cmdWithAt, '@')
	if i < 0 || botUsername == "" {
		return true
	}
	return strings.EqualFold(cmdWithAt[i+1:], botUsername)
}
