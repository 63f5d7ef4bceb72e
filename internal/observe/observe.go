// Package observe fans out "state changed" signals to subscribers.
package observe

import "sync"

// Hub delivers coalescing change signals. A slow subscriber misses
// intermediate signals but always sees at least one after the last change.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]chan struct{})
	}
	id := h.next
	h.next++
	ch := make(chan struct{}, 1)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *Hub) Publish() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
