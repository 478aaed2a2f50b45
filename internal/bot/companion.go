package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/telegram"
)

// converse отвечает на обычное сообщение. В группах: только когда бота
// упомянули. Ответ модели готовится в фоне, не задерживая очередь чата.
func (bot *Bot) converse(ctx context.Context, m *telegram.Message) {
	if !m.Private && !m.Mentioned {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	log := bot.log.WithChat(m.ChatID)

	if err := bot.msgr.Typing(ctx, m.ChatID); err != nil {
		log.Debug("typing action failed", zap.Error(err))
	}

	bot.wg.Add(1)
	go func() {
		defer bot.wg.Done()
		if err := bot.workers.Acquire(ctx, 1); err != nil {
			return
		}
		defer bot.workers.Release(1)

		answer := bot.chat.Reply(ctx, m.FromID, text)
		if err := bot.msgr.Reply(ctx, m.ChatID, m.ID, answer); err != nil {
			log.Warn("companion reply failed", zap.Int64("user", m.FromID), zap.Error(err))
		}
	}()
}
