package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Connection is one live realtime connection's outbound handle. Send must not
// block: implementations enqueue the frame and report false when the
// connection cannot accept it (closed or backed up), in which case the frame
// is dropped.
type Connection interface {
	UserID() string
	Send(frame []byte) bool
}

// Registry is the process-wide mapping from account ID to its current live
// connection. One account maps to at most one connection; a later Register
// for the same account overwrites the earlier handle (last-connect-wins).
//
// The registry is rebuilt from scratch on process restart: realtime delivery
// is best-effort and the authoritative state lives in the stores.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Connection
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]Connection),
		logger: logger.With().Str("component", "Registry").Logger(),
	}
}

// Register maps userID to conn, replacing any prior handle. The replaced
// handle, if any, is returned so the caller can close it.
func (r *Registry) Register(userID string, conn Connection) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[userID]
	if prev != nil {
		r.logger.Debug().Str("user", userID).Msg("Replacing existing connection.")
	}
	r.conns[userID] = conn
	return prev
}

// Unregister removes the mapping for userID. Removing an absent mapping is a
// no-op.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// UnregisterIf removes the mapping for userID only while it still points at
// conn, so a disconnect observed after a reconnect cannot evict the newer
// connection. It reports whether the mapping was removed.
func (r *Registry) UnregisterIf(userID string, conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns one handle per listed user that currently has a live
// mapping. Users without a mapping are silently omitted and duplicate IDs in
// the input collapse to a single handle.
func (r *Registry) Lookup(userIDs []string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connection, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if conn, ok := r.conns[id]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// Len reports the number of live mappings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
