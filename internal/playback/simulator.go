// Package playback: «проигрыватель» очереди чата. Настоящего звука нет:
// цикл объявляет трек в чат (Announcing), затем ждёт min(длительность, MaxWait)
// единиц времени (Simulating) и переходит к следующему, пока очередь не опустеет.
//
// На каждый чат работает не больше одного цикла; циклы разных чатов
// независимы и крутятся в своих горутинах.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/logger"
	"github.com/EgorLis/tgrelaybot/internal/queue"
)

// Notifier: куда объявлять треки (клиент мессенджера).
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// AudioSender: необязательная возможность Notifier выгрузить сам трек в чат.
type AudioSender interface {
	SendAudio(ctx context.Context, chatID int64, audioURL, title, caption string) error
}

// Sleeper: ожидание «проигрывания». Отмена ctx прерывает ожидание.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Config struct {
	MaxWait   int           // потолок ожидания в единицах Unit
	Unit      time.Duration // одна «секунда» трека
	SendAudio bool          // выгружать трек в чат при объявлении
}

func DefaultConfig() Config {
	return Config{MaxWait: 30, Unit: time.Second}
}

type Simulator struct {
	reg    *queue.Registry
	notify Notifier
	sleep  Sleeper
	cfg    Config
	log    *logger.Logger

	// события для внешних наблюдателей (live-feed)
	OnNowPlaying func(chatID int64, it queue.Item)
	OnFinished   func(chatID int64, it queue.Item)

	wg sync.WaitGroup
}

func New(reg *queue.Registry, notify Notifier, log *logger.Logger, cfg Config) *Simulator {
	if cfg.Unit <= 0 {
		cfg.Unit = time.Second
	}
	if cfg.MaxWait < 0 {
		cfg.MaxWait = 0
	}
	return &Simulator{
		reg:    reg,
		notify: notify,
		sleep:  timerSleeper{},
		cfg:    cfg,
		log:    log.WithComponent("playback"),
	}
}

func (s *Simulator) SetSleeper(sl Sleeper) {
	s.sleep = sl
}

// WaitFor: сколько «играет» трек данной длительности.
func (s *Simulator) WaitFor(duration int) time.Duration {
	if duration <= 0 {
		return 0
	}
	units := duration
	if units > s.cfg.MaxWait {
		units = s.cfg.MaxWait
	}
	return time.Duration(units) * s.cfg.Unit
}

// Kick запускает цикл чата в фоне, если он сейчас не играет.
// ctx должен жить столько же, сколько бот: его отмена обрывает ожидание.
func (s *Simulator) Kick(ctx context.Context, chatID int64) {
	if s.reg.GetOrCreate(chatID).Playing() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Drain(ctx, chatID)
	}()
}

// Skip сбрасывает текущий цикл и сразу запускает следующий.
// Уже идущее ожидание не прерывается: его цикл просто становится устаревшим.
// false: играть нечего.
func (s *Simulator) Skip(ctx context.Context, chatID int64) bool {
	q := s.reg.GetOrCreate(chatID)
	if q.Empty() && !q.Playing() {
		return false
	}
	q.Interrupt()
	s.Kick(ctx, chatID)
	return true
}

// Drain крутит цикл синхронно, пока в очереди есть треки.
func (s *Simulator) Drain(ctx context.Context, chatID int64) {
	q := s.reg.GetOrCreate(chatID)
	for ctx.Err() == nil {
		c, ok := q.Begin()
		if !ok {
			return
		}
		if !s.play(ctx, q, c) {
			return
		}
	}
}

// play делает один проход Announcing→Simulating. false: цикл дальше не продолжать.
func (s *Simulator) play(ctx context.Context, q *queue.ChatQueue, c queue.Cycle) bool {
	chatID := q.ChatID()
	log := s.log.WithChat(chatID)
	it := c.Item

	if s.OnNowPlaying != nil {
		s.OnNowPlaying(chatID, it)
	}

	err := s.announce(ctx, chatID, it)
	if err == nil {
		wait := s.WaitFor(it.Duration)
		log.Debug("simulating", zap.String("title", it.Title), zap.Duration("wait", wait))
		err = s.sleep.Sleep(ctx, wait)
		if err != nil && ctx.Err() != nil {
			// бот останавливается
			q.End(c)
			return false
		}
	}

	// stop/skip уже объявлены: молча выходим
	if !q.Live(c) {
		log.Debug("stale cycle finished", zap.String("title", it.Title), zap.Stringer("queue", q))
		return false
	}

	if err != nil {
		log.Warn("playback cycle failed", zap.String("title", it.Title), zap.Error(err))
		_ = s.notify.SendText(ctx, chatID, "❌ Error playing song. Moving to next...")
	} else if s.OnFinished != nil {
		s.OnFinished(chatID, it)
	}

	if !q.End(c) {
		log.Debug("cycle went stale while finishing", zap.Stringer("queue", q))
		return false
	}
	return true
}

// announce шлёт «Now Playing» с обложкой (если есть), при ошибке ещё раз
// одним текстом. Ошибку возвращает только если не ушла и вторая попытка.
func (s *Simulator) announce(ctx context.Context, chatID int64, it queue.Item) error {
	text := NowPlayingText(it)

	var err error
	if it.Thumbnail != "" {
		err = s.notify.SendPhoto(ctx, chatID, it.Thumbnail, text)
	} else {
		err = s.notify.SendText(ctx, chatID, text)
	}
	if err != nil {
		// вторая попытка всегда текстом
		s.log.Debug("announce failed, retrying as text", zap.Error(err))
		err = s.notify.SendText(ctx, chatID, text)
	}
	if err != nil {
		return fmt.Errorf("announce: %w", err)
	}

	if s.cfg.SendAudio && it.StreamURL != "" {
		if as, ok := s.notify.(AudioSender); ok {
			if aerr := as.SendAudio(ctx, chatID, it.StreamURL, it.Title, "🎧 "+it.Title); aerr != nil {
				s.log.Debug("audio upload failed", zap.Error(aerr))
			}
		}
	}
	return nil
}

// Wait ждёт завершения всех фоновых циклов (после отмены их ctx).
func (s *Simulator) Wait() {
	s.wg.Wait()
}

func NowPlayingText(it queue.Item) string {
	return fmt.Sprintf("🎶 Now Playing\n\nTitle: %s\nDuration: %s\nRequested by: %s",
		it.Title, it.FormattedDuration(), it.RequestedBy)
}
