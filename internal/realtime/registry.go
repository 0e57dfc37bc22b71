package realtime

import (
	"sync"

	"github.com/bantudelice/tracking-service/internal/api/metrics"
)

// Registry maintains the many-to-many relation between tracking numbers and
// live connections, queryable in both directions. All operations are safe for
// concurrent use; readers never observe the maps mid-mutation.
type Registry struct {
	mu sync.RWMutex
	// byTracking maps trackingNumber → connID → subscriberID.
	byTracking map[string]map[string]string
	// byConn maps connID → set of tracking numbers, for cascade removal.
	byConn map[string]map[string]struct{}
}

// NewRegistry returns an empty Registry. Registries are plain values with no
// background goroutines, so tests can create isolated instances freely.
func NewRegistry() *Registry {
	return &Registry{
		byTracking: make(map[string]map[string]string),
		byConn:     make(map[string]map[string]struct{}),
	}
}

// Subscribe registers connID as a watcher of trackingNumber. Subscribing
// twice with the same pair is a no-op except that the subscriberID is
// refreshed (last write wins). Existence of the tracking number is the
// caller's responsibility.
func (r *Registry) Subscribe(trackingNumber, connID, subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byTracking[trackingNumber]
	if !ok {
		conns = make(map[string]string)
		r.byTracking[trackingNumber] = conns
	}
	_, existed := conns[connID]
	conns[connID] = subscriberID

	keys, ok := r.byConn[connID]
	if !ok {
		keys = make(map[string]struct{})
		r.byConn[connID] = keys
	}
	keys[trackingNumber] = struct{}{}

	if !existed {
		metrics.ActiveSubscriptions.Inc()
	}
}

// Unsubscribe removes the matching subscription if present. Removing a
// subscription that does not exist is a no-op, so duplicate unsubscribe
// requests during races are harmless.
func (r *Registry) Unsubscribe(trackingNumber, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(trackingNumber, connID)
}

// DropConnection removes every subscription referencing connID. Safe to call
// for connections that never subscribed to anything.
func (r *Registry) DropConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for trackingNumber := range r.byConn[connID] {
		r.remove(trackingNumber, connID)
	}
}

// remove deletes one (trackingNumber, connID) pair. Caller holds r.mu.
func (r *Registry) remove(trackingNumber, connID string) {
	conns, ok := r.byTracking[trackingNumber]
	if !ok {
		return
	}
	if _, ok := conns[connID]; !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byTracking, trackingNumber)
	}

	if keys, ok := r.byConn[connID]; ok {
		delete(keys, trackingNumber)
		if len(keys) == 0 {
			delete(r.byConn, connID)
		}
	}

	metrics.ActiveSubscriptions.Dec()
}

// SubscribersOf returns a snapshot of the connection ids currently watching
// trackingNumber. The result reflects all completed mutations and is safe to
// iterate without further locking.
func (r *Registry) SubscribersOf(trackingNumber string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byTracking[trackingNumber]
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	return out
}

// Subscriptions returns the tracking numbers connID currently watches.
func (r *Registry) Subscriptions(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.byConn[connID]
	out := make([]string, 0, len(keys))
	for trackingNumber := range keys {
		out = append(out, trackingNumber)
	}
	return out
}
