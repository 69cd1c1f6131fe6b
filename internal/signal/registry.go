package signal

import (
	"sync"
	"time"

	"github.com/safewatch/signaling/internal/models"
)

// Connection is the registry's record of one live socket. The registry owns
// these entries exclusively; callers get copies.
type Connection struct {
	ID            string
	Role          models.Role
	RoomID        string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
}

// Registry tracks every live connection and its metadata. It is constructed
// once per process and injected wherever connection state is needed; there is
// no package-level instance.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register creates a default entry for a newly accepted connection. Role and
// room stay unset until the connection joins.
func (r *Registry) Register(id string) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &Connection{
		ID:            id,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
}

// UpdateRole records the role and room a connection joined with.
func (r *Registry) UpdateRole(id string, role models.Role, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		conn.Role = role
		conn.RoomID = roomID
	}
}

// Touch refreshes the liveness timestamp on a heartbeat.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		conn.LastHeartbeat = time.Now()
	}
}

// Remove deletes the entry and returns its last-known role and room so the
// caller can notify the former room members.
func (r *Registry) Remove(id string) (models.Role, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return "", "", false
	}
	delete(r.conns, id)
	return conn.Role, conn.RoomID, true
}

// Get returns a copy of the entry for id.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// StaleConnections lists connections whose last heartbeat is older than
// threshold. Staleness is recorded for observability only; nothing evicts
// these entries automatically.
func (r *Registry) StaleConnections(threshold time.Duration) []string {
	cutoff := time.Now().Add(-threshold)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []string
	for id, conn := range r.conns {
		if conn.LastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}
