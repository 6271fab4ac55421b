package realtime

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Hub is a minimal in-process Feed for single-node deployments and tests.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event // scope key -> subscriber id -> channel
}

var _ Feed = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

func scopeKey(table, scopeID string) string {
	return table + ":" + scopeID
}

// Publish fans the event out to current subscribers of its scope.
// Subscribers with a full buffer miss the event; they are never blocked on.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[scopeKey(ev.Table, ev.ScopeID)] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, table, scopeID string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)
	key := scopeKey(table, scopeID)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan Event)
	}
	h.subs[key][id] = ch
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			h.mu.Unlock()
			close(ch)
		})
	}

	// the watcher also exits on a direct cancel, not only on ctx
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return ch, cancel, nil
}
