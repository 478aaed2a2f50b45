package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/telegram"
)

// сколько символов ошибки API показываем в чате
const adminErrLimit = 60

// moderate: /ban, /kick, /mute в ответ на сообщение цели.
// Вызывать может только администратор или создатель чата.
func (bot *Bot) moderate(ctx context.Context, m *telegram.Message, say func(string)) error {
	log := bot.log.WithChat(m.ChatID)

	admin, err := bot.msgr.IsAdmin(ctx, m.ChatID, m.FromID)
	if err != nil {
		// не смогли проверить: считаем, что не админ
		log.Debug("admin check failed", zap.Int64("user", m.FromID), zap.Error(err))
		admin = false
	}
	if !admin {
		return replyErr(textAdminsOnly)
	}
	if m.ReplyToUserID == 0 {
		return replyErr(textMustReply)
	}

	var done string
	switch m.Command {
	case "ban":
		err, done = bot.msgr.Ban(ctx, m.ChatID, m.ReplyToUserID), "🔨 Banned."
	case "kick":
		err, done = bot.msgr.Kick(ctx, m.ChatID, m.ReplyToUserID), "👢 Kicked."
	case "mute":
		err, done = bot.msgr.Mute(ctx, m.ChatID, m.ReplyToUserID), "🔇 Muted."
	}
	if err != nil {
		log.Warn("moderation failed", zap.String("cmd", m.Command), zap.Int64("target", m.ReplyToUserID), zap.Error(err))
		return replyErr("Oops: " + truncate(err.Error(), adminErrLimit))
	}
	log.Info("moderation", zap.String("cmd", m.Command), zap.Int64("by", m.FromID), zap.Int64("target", m.ReplyToUserID))
	say(done)
	return nil
}
