package relay

import (
	"context"
	"sync"
)

// Hub tracks the live bridged connections so they can be closed on shutdown.
type Hub struct {
	mu    sync.Mutex
	conns map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]context.CancelFunc)}
}

// Register adds a connection. The returned func removes it and is safe to call twice.
func (h *Hub) Register(id string, cancel context.CancelFunc) (unregister func()) {
	h.mu.Lock()
	h.conns[id] = cancel
	h.wg.Add(1)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.conns, id)
			h.mu.Unlock()
			h.wg.Done()
		})
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll asks every live connection to shut down and returns how many were signalled.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(h.conns))
	for _, cancel := range h.conns {
		cancels = append(cancels, cancel)
	}
	h.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Wait blocks until every registered connection has unregistered or ctx is done.
func (h *Hub) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
