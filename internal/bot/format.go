package bot

import (
	"fmt"
	"strings"

	"github.com/EgorLis/tgrelaybot/internal/queue"
)

// сколько ближайших треков показывает /queue
const queuePreview = 10

const musicStartText = "🎵 Music Bot Started!\n\n" +
	"Available commands:\n" +
	"• /play <song name> - Play music\n" +
	"• /skip - Skip current song\n" +
	"• /stop - Stop music\n" +
	"• /queue - Show current queue\n" +
	"• /help - Show this help message"

const musicHelpText = "🎵 Music Bot Help\n\n" +
	"Commands:\n" +
	"• /play <song name> - Search and play music\n" +
	"• /skip - Skip to next song in queue\n" +
	"• /stop - Stop music and clear queue\n" +
	"• /queue - Show current music queue\n" +
	"• /clear - Remove upcoming songs from queue\n" +
	"• /help - Show this help message\n\n" +
	"Admins (reply to a message): /ban /kick /mute\n\n" +
	"Usage:\n" +
	"Just use /play followed by the song name or artist!"

const companionStartText = "Heyyy handsome! 😘 I'm your girlfriend now 💕\n" +
	"Just talk to me, I'll remember everything!\n" +
	"🎵 /play love song\n" +
	"Admins: /ban /kick /mute (reply)"

const companionHelpText = "Your AI Girlfriend 💕\n" +
	"Chat normally (mention me in groups)\n" +
	"/play perfect · /queue · /skip · /stop\n" +
	"Admins: reply + /ban /kick /mute"

// ответы на ошибки
const (
	textNoSongName    = "❌ Please provide a song name. Usage: /play <song name>"
	textNoResults     = "❌ No results found. Try a different search term."
	textNoAudioStream = "❌ Could not get audio stream. Try another song."
	textNothingPlays  = "❌ No music is currently playing."
	textQueueEmpty    = "📭 Queue is empty."
	textInternal      = "❌ An error occurred while processing your request."
	textAdminsOnly    = "⛔ Admins only."
	textMustReply     = "↩️ Reply to someone's message with the command."
)

func addedText(it queue.Item, position int) string {
	return fmt.Sprintf("🎵 Added to Queue\n\nTitle: %s\nDuration: %s\nRequested by: %s\nPosition in queue: #%d",
		it.Title, it.FormattedDuration(), it.RequestedBy, position)
}

// QueueText возвращает текст для /queue; пустая строка, если показывать нечего.
func QueueText(s queue.Snapshot) string {
	if s.Current == nil && len(s.Upcoming) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("🎵 Music Queue\n\n")
	if s.Current != nil {
		fmt.Fprintf(&sb, "Now Playing: %s\n\n", s.Current.Title)
	}
	if len(s.Upcoming) == 0 {
		sb.WriteString("No songs in queue")
		return sb.String()
	}
	sb.WriteString("Up Next:\n")
	for i, it := range s.Upcoming {
		if i == queuePreview {
			break
		}
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, it.Title, it.FormattedDuration())
	}
	if more := len(s.Upcoming) - queuePreview; more > 0 {
		fmt.Fprintf(&sb, "\n...and %d more songs", more)
	}
	return sb.String()
}

// truncate режет по рунам, чтобы не порвать UTF-8.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
