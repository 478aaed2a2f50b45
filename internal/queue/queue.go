// Package queue: очередь треков на один чат и реестр таких очередей.
//
// ChatQueue защищена собственным мьютексом: команды разных апдейтов одного
// чата могут приходить параллельно, а цикл воспроизведения крутится в своей
// горутине. Реестр создаёт очередь лениво и никогда её не удаляет.
package queue

import (
	"fmt"
	"sync"
)

// Item: один найденный трек, готовый к «воспроизведению».
type Item struct {
	Title       string
	Duration    int // секунды, 0: неизвестно
	StreamURL   string
	Thumbnail   string
	RequestedBy string
}

// Snapshot: согласованная копия состояния очереди для вывода в чат.
type Snapshot struct {
	Current  *Item
	Upcoming []Item
	Playing  bool
}

type ChatQueue struct {
	mu      sync.Mutex
	chatID  int64
	items   []Item
	current *Item
	playing bool
	// поколение цикла: stop/skip увеличивают его, и «зависший» в ожидании
	// старый цикл после пробуждения понимает, что он уже не актуален
	cycle uint64
}

func newChatQueue(chatID int64) *ChatQueue {
	return &ChatQueue{chatID: chatID}
}

func (q *ChatQueue) ChatID() int64 { return q.chatID }

// Enqueue добавляет трек в конец и возвращает его позицию (1-based).
func (q *ChatQueue) Enqueue(it Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, it)
	return len(q.items)
}

// DequeueNext снимает первый трек и делает его текущим.
// На пустой очереди сбрасывает current и возвращает false.
func (q *ChatQueue) DequeueNext() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dequeueLocked()
}

func (q *ChatQueue) dequeueLocked() (Item, bool) {
	if len(q.items) == 0 {
		q.current = nil
		return Item{}, false
	}
	it := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	q.current = &it
	return it, true
}

// Clear: полный сброс (команда stop). Возвращает число снятых ожидающих треков,
// текущий трек не считается.
func (q *ChatQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.current = nil
	q.playing = false
	q.cycle++
	return n
}

// ClearPending очищает только ожидающие треки (команда clear).
func (q *ChatQueue) ClearPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *ChatQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ChatQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

func (q *ChatQueue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Item{}, false
	}
	return *q.current, true
}

// Empty: нет ни текущего трека, ни ожидающих.
func (q *ChatQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current == nil && len(q.items) == 0
}

func (q *ChatQueue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Snapshot{Playing: q.playing}
	if q.current != nil {
		cur := *q.current
		s.Current = &cur
	}
	if len(q.items) > 0 {
		s.Upcoming = append([]Item(nil), q.items...)
	}
	return s
}

// ---------- управление циклом воспроизведения ----------

// Cycle: жетон одного прохода Announcing→Simulating.
type Cycle struct {
	Item Item
	gen  uint64
}

// Begin пытается начать новый цикл. Если уже играет, ничего не делает;
// если очередь пуста, сбрасывает playing и возвращает false.
func (q *ChatQueue) Begin() (Cycle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.playing {
		return Cycle{}, false
	}
	it, ok := q.dequeueLocked()
	if !ok {
		q.playing = false
		return Cycle{}, false
	}
	q.playing = true
	q.cycle++
	return Cycle{Item: it, gen: q.cycle}, true
}

// End завершает цикл. Возвращает false, если цикл устарел (был stop/skip),
// в этом случае состояние не трогается.
func (q *ChatQueue) End(c Cycle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c.gen != q.cycle {
		return false
	}
	q.playing = false
	return true
}

// Live: цикл ещё актуален (после него не было stop/skip).
func (q *ChatQueue) Live(c Cycle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return c.gen == q.cycle
}

// Interrupt: принудительный сброс playing (skip). Идущее ожидание
// не прерывается, но его цикл становится устаревшим.
func (q *ChatQueue) Interrupt() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.playing = false
	q.cycle++
}

func (q *ChatQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("chat=%d items=%d playing=%t", q.chatID, len(q.items), q.playing)
}

// Registry: chat id -> очередь. Живёт всё время процесса.
type Registry struct {
	mu     sync.Mutex
	queues map[int64]*ChatQueue
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[int64]*ChatQueue)}
}

// GetOrCreate возвращает очередь чата, создавая пустую при первом обращении.
func (r *Registry) GetOrCreate(chatID int64) *ChatQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[chatID]
	if !ok {
		q = newChatQueue(chatID)
		r.queues[chatID] = q
	}
	return q
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
