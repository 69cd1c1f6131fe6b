package signal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/models"
	"github.com/safewatch/signaling/internal/observability"
)

// Presence mirrors room membership into an external store for observability
// across tooling. Best-effort: the in-memory hub stays authoritative.
type Presence interface {
	Joined(ctx context.Context, roomID, connID string)
	Left(ctx context.Context, roomID, connID string)
}

// JoinPolicy can veto a join before membership changes. members is the room
// size before the join. A nil policy admits everything, which matches the
// current permissive protocol (duplicate roles and multi-monitor rooms are
// allowed by convention, not enforced).
type JoinPolicy func(roomID string, role models.Role, members int) error

// Hub owns room membership and the fan-out primitives. Rooms exist exactly as
// long as they have at least one member.
type Hub struct {
	registry *Registry
	presence Presence
	policy   JoinPolicy
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

func NewHub(registry *Registry, metrics *observability.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		metrics:  metrics,
		log:      log.With().Str("component", "hub").Logger(),
		rooms:    make(map[string]map[string]*Client),
	}
}

// SetPresence attaches an optional membership mirror.
func (h *Hub) SetPresence(p Presence) { h.presence = p }

// SetJoinPolicy attaches an optional join validation hook.
func (h *Hub) SetJoinPolicy(p JoinPolicy) { h.policy = p }

func (h *Hub) Registry() *Registry { return h.registry }

// Connect registers a freshly accepted connection, before any join.
func (h *Hub) Connect(c *Client) {
	h.registry.Register(c.ID)
	h.metrics.ActiveConnections.Inc()
	h.log.Info().Str("socket", c.ID).Msg("client connected")
}

// Join adds c to roomID with the given role and returns the resulting member
// count (including c). Joining a second room moves the connection out of the
// first one.
func (h *Hub) Join(c *Client, roomID string, role models.Role) (int, error) {
	h.mu.Lock()
	members := h.rooms[roomID]
	if h.policy != nil {
		if err := h.policy(roomID, role, len(members)); err != nil {
			h.mu.Unlock()
			return 0, err
		}
	}
	if prev := c.roomID; prev != "" && prev != roomID {
		h.removeLocked(prev, c.ID)
	}
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
		h.log.Info().Str("room", roomID).Msg("room created")
	}
	members[c.ID] = c
	c.roomID = roomID
	c.role = role
	count := len(members)
	h.metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.mu.Unlock()

	h.registry.UpdateRole(c.ID, role, roomID)
	if h.presence != nil {
		h.presence.Joined(context.Background(), roomID, c.ID)
	}
	return count, nil
}

// Disconnect removes c from its room and the registry, returning the
// last-known role and room for the departure notification. Empty room string
// means the connection never joined.
func (h *Hub) Disconnect(c *Client) (models.Role, string) {
	role, roomID, ok := h.registry.Remove(c.ID)
	if !ok {
		return "", ""
	}
	h.metrics.ActiveConnections.Dec()
	if roomID != "" {
		h.mu.Lock()
		h.removeLocked(roomID, c.ID)
		h.metrics.ActiveRooms.Set(float64(len(h.rooms)))
		h.mu.Unlock()
		if h.presence != nil {
			h.presence.Left(context.Background(), roomID, c.ID)
		}
	}
	return role, roomID
}

func (h *Hub) removeLocked(roomID, connID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
		h.log.Info().Str("room", roomID).Msg("room removed")
	}
}

// RoomSize reports the instantaneous member count of roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast delivers env to every member of roomID except excludeID. An empty
// or unknown room is a no-op, not an error.
func (h *Hub) Broadcast(roomID string, env models.Envelope, excludeID string) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(env.Event)).Msg("marshal broadcast")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, member := range h.rooms[roomID] {
		if id != excludeID {
			member.enqueue(data)
		}
	}
}

// BroadcastAll delivers env to every member of roomID, the sender included.
// Command forwards use this so multi-viewer setups all observe the dispatch.
func (h *Hub) BroadcastAll(roomID string, env models.Envelope) {
	h.Broadcast(roomID, env, "")
}

// send wraps a typed payload and broadcasts it, excluding excludeID.
func (h *Hub) send(roomID string, event models.Event, payload any, excludeID string) {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("marshal payload")
		return
	}
	h.Broadcast(roomID, env, excludeID)
}
