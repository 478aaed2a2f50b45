package telegram

// Message: входящее сообщение в удобном для роутера виде.
type Message struct {
	ID       int
	ChatID   int64
	Private  bool
	FromID   int64
	FromName string // first name, "Unknown" если автора нет
	Text     string

	Command string // без "/" и "@bot", в нижнем регистре; пусто: не команда
	Args    string

	ReplyToUserID int64 // автор сообщения, на которое ответили (0: не ответ)
	Mentioned     bool
}

func (m *Message) IsCommand() bool { return m.Command != "" }
