// Package relay implements the in-memory presence layer: the connection
// registry and the server forwarding chat events between participants.
package relay

import (
	"fmt"
	"log/slog"
	"sync"

	"clinic-relay/contract"
	"clinic-relay/domain"
)

type entry struct {
	conn contract.Connection
	role domain.Role
}

// Registry is the in-memory mapping from participant identity to its live
// connection. It is owned by the relay server and injected where needed,
// never a process-wide global, so several relay instances can coexist in
// tests. Handlers run on multiple goroutines, hence the lock.
type Registry struct {
	mu      sync.RWMutex
	log     *slog.Logger
	entries map[string]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:     log,
		entries: make(map[string]entry),
	}
}

// Register stores or overwrites the entry for the participant. A second
// connection from the same participant replaces the first (last writer wins).
func (r *Registry) Register(p domain.Participant, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[p.ID]; ok && old.conn != conn {
		r.log.Info(fmt.Sprintf("Replacing live connection for %s %s", old.role, p.ID))
	}
	r.entries[p.ID] = entry{conn: conn, role: p.Role}
}

// Lookup returns the live connection for a participant, if any.
func (r *Registry) Lookup(participantID string) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[participantID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// UnregisterConnection removes the entry whose connection matches. If a stale
// duplicate left several candidates, the first found is removed and the rest
// logged; this is best-effort cleanup, not a hard invariant.
func (r *Registry) UnregisterConnection(conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if e.conn == conn {
			delete(r.entries, id)
			r.log.Debug(fmt.Sprintf("%s with ID %s disconnected", e.role, id))
			return
		}
	}
}

// Size returns the number of live entries, for monitoring.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
