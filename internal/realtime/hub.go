package realtime

import (
	"sync"

	"github.com/bantudelice/tracking-service/internal/api/metrics"
)

// Hub tracks the live sessions by connection id. It is the dispatcher's way
// of resolving a registry connection id to a send capability.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()
	metrics.ActiveConnections.Inc()
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	_, ok := h.sessions[connID]
	delete(h.sessions, connID)
	h.mu.Unlock()
	if ok {
		metrics.ActiveConnections.Dec()
	}
}

// Lookup resolves a connection id to its live session. A miss simply means
// the connection is already gone; dispatch skips it without error.
func (h *Hub) Lookup(connID string) (Pusher, bool) {
	h.mu.RLock()
	s, ok := h.sessions[connID]
	h.mu.RUnlock()
	return s, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll tears down every live session. Used on server shutdown; each
// session's teardown drops its registry subscriptions.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	open := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
}
