package watch

import (
	"sync"

	"github.com/google/uuid"
)

// Hub рассылает сигналы "данные изменились" подписчикам по ключу.
//
// Сигналы схлопываются: если подписчик ещё не забрал предыдущий,
// новый не ставится в очередь.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[uuid.UUID]map[int]chan struct{}
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[int]chan struct{})}
}

// Subscribe подписывает на изменения ключа (ID релиза).
// cancel нужно вызвать, когда подписка больше не нужна.
func (h *Hub) Subscribe(key uuid.UUID) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	id := h.nextID
	h.nextID++

	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan struct{})
	}
	h.subs[key][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
	return ch, cancel
}

// Notify будит подписчиков ключа.
func (h *Hub) Notify(key uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers возвращает число подписчиков ключа.
func (h *Hub) Subscribers(key uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
