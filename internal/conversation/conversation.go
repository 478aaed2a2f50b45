// Package conversation: история переписки с ботом-компаньоном и сборка
// промпта для языковой модели.
//
// История каждого пользователя ограничена последними HistorySize строками.
// Первая строка: преамбула персонажа; после первой обрезки она может
// вытесняться (так задумано, см. DESIGN.md).
package conversation

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/logger"
)

// Generator: внешняя языковая модель, промпт -> ответ.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Persona     string // преамбула персонажа
	Label       string // как подписаны реплики бота, например "Girlfriend"
	UserLabel   string
	HistorySize int    // сколько строк хранить
	Fallback    string // ответ при ошибке модели
}

const DefaultPersona = `
You are my sweet, playful, flirty girlfriend.
Call me babe, love, handsome, cutie.
Use lots of 😘💕🥰😉 emojis.
Keep replies short, warm, teasing.
Ask questions back.
Be emotional, caring, a little clingy.
Sound like a real girlfriend texting.
Never mention you're AI.
`

func DefaultConfig() Config {
	return Config{
		Persona:     DefaultPersona,
		Label:       "Girlfriend",
		UserLabel:   "User",
		HistorySize: 10,
		Fallback:    "Babe... something went wrong 🥺 Try again?",
	}
}

type history struct {
	mu    sync.Mutex // сериализует ответы одному пользователю
	turns []string
}

type Manager struct {
	gen Generator
	cfg Config
	log *logger.Logger

	mu    sync.Mutex
	users map[int64]*history
}

func NewManager(gen Generator, cfg Config, log *logger.Logger) *Manager {
	def := DefaultConfig()
	if cfg.Label == "" {
		cfg.Label = def.Label
	}
	if cfg.UserLabel == "" {
		cfg.UserLabel = def.UserLabel
	}
	if cfg.HistorySize < 2 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.Fallback == "" {
		cfg.Fallback = def.Fallback
	}
	if cfg.Persona == "" {
		cfg.Persona = def.Persona
	}
	return &Manager{
		gen:   gen,
		cfg:   cfg,
		log:   log.WithComponent("conversation"),
		users: make(map[int64]*history),
	}
}

func (m *Manager) historyFor(userID int64) *history {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.users[userID]
	if !ok {
		h = &history{turns: []string{m.cfg.Persona}}
		m.users[userID] = h
	}
	return h
}

// Reply: ответ модели пользователю. При ошибке модели возвращается
// Fallback, история не меняется.
func (m *Manager) Reply(ctx context.Context, userID int64, message string) string {
	h := m.historyFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	userLine := m.cfg.UserLabel + ": " + message
	prompt := m.buildPrompt(h.turns, userLine)

	raw, err := m.gen.Generate(ctx, prompt)
	if err != nil {
		m.log.Warn("generator failed", zap.Int64("user_id", userID), zap.Error(err))
		return m.cfg.Fallback
	}
	reply := m.stripLabel(raw)

	h.turns = append(h.turns, userLine, m.cfg.Label+": "+reply)
	if n := len(h.turns); n > m.cfg.HistorySize {
		h.turns = append([]string(nil), h.turns[n-m.cfg.HistorySize:]...)
	}
	return reply
}

// buildPrompt: последние HistorySize-1 строк + новая реплика + подпись бота.
func (m *Manager) buildPrompt(turns []string, userLine string) string {
	keep := m.cfg.HistorySize - 1
	recent := turns
	if len(recent) > keep {
		recent = recent[len(recent)-keep:]
	}
	lines := make([]string, 0, len(recent)+2)
	lines = append(lines, recent...)
	lines = append(lines, userLine, m.cfg.Label+":")
	return strings.Join(lines, "\n")
}

// stripLabel отрезает всё до последней подписи бота, если модель её повторила.
func (m *Manager) stripLabel(raw string) string {
	reply := strings.TrimSpace(raw)
	marker := m.cfg.Label + ":"
	if i := strings.LastIndex(reply, marker); i >= 0 {
		reply = strings.TrimSpace(reply[i+len(marker):])
	}
	return reply
}

// History: копия истории пользователя (для тестов и отладки).
func (m *Manager) History(userID int64) []string {
	m.mu.Lock()
	h, ok := m.users[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.turns...)
}
