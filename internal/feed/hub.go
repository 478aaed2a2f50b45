// Package feed: live-лента событий очереди по WebSocket (для оверлеев и
// внешних плееров). Клиент подключается к /feed?chat=<id> (без chat: все
// чаты) и получает JSON-события: queued, now_playing, finished, skipped,
// stopped, cleared.
//
// Keep-alive: ping каждые 10s, дедлайн на запись и дедлайн на чтение,
// который продлевает pong.
package feed

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/logger"
	"github.com/EgorLis/tgrelaybot/internal/queue"
)

const (
	writeWait = 5 * time.Second
	pongWait  = 30 * time.Second
	pingEvery = 10 * time.Second
	sendBuf   = 64
)

// Типы событий.
const (
	EventQueued     = "queued"
	EventNowPlaying = "now_playing"
	EventFinished   = "finished"
	EventSkipped    = "skipped"
	EventStopped    = "stopped"
	EventCleared    = "cleared"
)

type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ChatID      int64     `json:"chat_id"`
	Title       string    `json:"title,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Seconds     int       `json:"seconds,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Position    int       `json:"position,omitempty"`
	Removed     int       `json:"removed,omitempty"`
	At          time.Time `json:"at"`
}

type client struct {
	id     string
	chatID int64 // 0: все чаты
	conn   *websocket.Conn
	send   chan []byte
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// лента только на чтение, открываем для любых оверлеев
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.WithComponent("feed"),
	}
}

// ServeHTTP апгрейдит соединение и держит его до разрыва.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var chatID int64
	if s := r.URL.Query().Get("chat"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "bad chat id", http.StatusBadRequest)
			return
		}
		chatID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	c := &client{id: uuid.NewString(), chatID: chatID, conn: conn, send: make(chan []byte, sendBuf)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", zap.String("client_id", c.id), zap.Int64("chat_id", chatID))

	go c.writePump()
	c.readPump()
	h.remove(c)
	h.log.Debug("client disconnected", zap.String("client_id", c.id))
}

// readPump: входящие нам не нужны, читаем только ради pong/close.
func (c *client) readPump() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump: единственный писатель в conn.
func (c *client) writePump() {
	t := time.NewTicker(pingEvery)
	defer func() {
		t.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish рассылает событие подписчикам чата. Медленным клиентам событие не достаётся.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.chatID != 0 && c.chatID != ev.ChatID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Debug("slow client, event dropped", zap.String("client_id", c.id), zap.String("type", ev.Type))
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ---------- события очереди ----------

func itemEvent(typ string, chatID int64, it queue.Item) Event {
	return Event{
		Type:        typ,
		ChatID:      chatID,
		Title:       it.Title,
		Duration:    it.FormattedDuration(),
		Seconds:     it.Duration,
		RequestedBy: it.RequestedBy,
		Thumbnail:   it.Thumbnail,
	}
}

func (h *Hub) Queued(chatID int64, it queue.Item, position int) {
	ev := itemEvent(EventQueued, chatID, it)
	ev.Position = position
	h.Publish(ev)
}

func (h *Hub) NowPlaying(chatID int64, it queue.Item) {
	h.Publish(itemEvent(EventNowPlaying, chatID, it))
}

func (h *Hub) Finished(chatID int64, it queue.Item) {
	h.Publish(itemEvent(EventFinished, chatID, it))
}

func (h *Hub) Skipped(chatID int64) {
	h.Publish(Event{Type: EventSkipped, ChatID: chatID})
}

func (h *Hub) Stopped(chatID int64, removed int) {
	h.Publish(Event{Type: EventStopped, ChatID: chatID, Removed: removed})
}

func (h *Hub) Cleared(chatID int64, removed int) {
	h.Publish(Event{Type: EventCleared, ChatID: chatID, Removed: removed})
}
