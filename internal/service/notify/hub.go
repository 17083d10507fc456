package notify

import (
	"sync"

	"github.com/zhouzirui/date-night/backend/internal/model/session"
)

// Hub fans completed session views out to in-process watchers.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan session.View]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan session.View]struct{})}
}

// Subscribe registers a watcher for id. The returned cancel func must be
// called once the watcher is done; it is safe to call more than once.
func (h *Hub) Subscribe(id string) (<-chan session.View, func()) {
	ch := make(chan session.View, 1)

	h.mu.Lock()
	if h.watchers[id] == nil {
		h.watchers[id] = make(map[chan session.View]struct{})
	}
	h.watchers[id][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.watchers[id]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.watchers, id)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers view to every watcher of view.ID without blocking.
func (h *Hub) Publish(view session.View) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.watchers[view.ID] {
		select {
		case ch <- view:
		default:
		}
	}
}

// Watchers returns the number of active watchers for id.
func (h *Hub) Watchers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[id])
}
