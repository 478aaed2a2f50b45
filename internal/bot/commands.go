package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/media"
	"github.com/EgorLis/tgrelaybot/internal/queue"
	"github.com/EgorLis/tgrelaybot/internal/telegram"
)

// replyError: ошибка, текст которой уходит пользователю как есть.
type replyError struct{ text string }

func (e *replyError) Error() string { return e.text }

func replyErr(text string) error { return &replyError{text: text} }

// HandleCommand выполняет команду. Ошибка типа replyError: ответ
// пользователю, любая другая: внутренний сбой.
func (bot *Bot) HandleCommand(ctx context.Context, m *telegram.Message) error {
	say := func(s string) {
		if err := bot.msgr.Reply(ctx, m.ChatID, m.ID, s); err != nil {
			bot.log.WithChat(m.ChatID).Warn("reply failed", zap.Error(err))
		}
	}

	switch m.Command {

	case "start":
		if bot.chat != nil {
			say(companionStartText)
		} else {
			say(musicStartText)
		}
		return nil

	case "help":
		if bot.chat != nil {
			say(companionHelpText)
		} else {
			say(musicHelpText)
		}
		return nil

	// ---------- музыка ----------
	case "play":
		return bot.play(ctx, m, say)

	case "skip":
		q := bot.queues.GetOrCreate(m.ChatID)
		if q.Empty() && !q.Playing() {
			return replyErr(textNothingPlays)
		}
		say("⏭️ Skipped current song.")
		bot.player.Skip(bot.ctx, m.ChatID)
		if bot.feed != nil {
			bot.feed.Skipped(m.ChatID)
		}
		return nil

	case "stop":
		n := bot.queues.GetOrCreate(m.ChatID).Clear()
		if bot.feed != nil {
			bot.feed.Stopped(m.ChatID, n)
		}
		say("⏹️ Music stopped and queue cleared.")
		return nil

	case "queue":
		text := QueueText(bot.queues.GetOrCreate(m.ChatID).Snapshot())
		if text == "" {
			text = textQueueEmpty
		}
		say(text)
		return nil

	case "clear":
		n := bot.queues.GetOrCreate(m.ChatID).ClearPending()
		if bot.feed != nil {
			bot.feed.Cleared(m.ChatID, n)
		}
		say(fmt.Sprintf("🧹 Cleared %d songs from queue.", n))
		return nil

	// ---------- модерация ----------
	case "ban", "kick", "mute":
		return bot.moderate(ctx, m, say)

	default:
		// чужие команды в группе не комментируем
		bot.log.WithChat(m.ChatID).Debug("unknown command", zap.String("cmd", m.Command))
		return nil
	}
}

// play: поиск → выбор потока → в очередь → запуск цикла, если тот стоит.
func (bot *Bot) play(ctx context.Context, m *telegram.Message, say func(string)) error {
	query := strings.TrimSpace(m.Args)
	if query == "" {
		return replyErr(textNoSongName)
	}
	log := bot.log.WithChat(m.ChatID)

	say(fmt.Sprintf("🔍 Searching for: %s...", query))

	cand, err := bot.resolver.Resolve(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, media.ErrNoResults) {
			log.Warn("resolve failed", zap.String("query", query), zap.Error(err))
		}
		return replyErr(textNoResults)
	}
	v, ok := media.SelectStream(cand.Variants)
	if !ok {
		log.Info("no audio stream", zap.String("title", cand.Title))
		return replyErr(textNoAudioStream)
	}

	it := queue.Item{
		Title:       cand.Title,
		Duration:    cand.Duration,
		StreamURL:   v.URL,
		Thumbnail:   cand.Thumbnail,
		RequestedBy: m.FromName,
	}
	pos := bot.queues.GetOrCreate(m.ChatID).Enqueue(it)
	log.Info("queued", zap.String("title", it.Title), zap.Int("position", pos), zap.String("ext", v.Ext))
	if bot.feed != nil {
		bot.feed.Queued(m.ChatID, it, pos)
	}

	text := addedText(it, pos)
	if it.Thumbnail == "" {
		say(text)
	} else if err := bot.msgr.ReplyPhoto(ctx, m.ChatID, m.ID, it.Thumbnail, text); err != nil {
		log.Debug("photo reply failed, falling back to text", zap.Error(err))
		say(text)
	}

	bot.player.Kick(bot.ctx, m.ChatID)
	return nil
}
