package signal

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBufferSize = 256
)

// Client is one live websocket connection attached to the hub. All inbound
// events for a connection are handled sequentially by its read pump, which
// keeps forwarding FIFO per sender.
type Client struct {
	ID string

	hub        *Hub
	correlator *Correlator
	conn       *websocket.Conn
	send       chan []byte
	log        zerolog.Logger

	// role and roomID are written under the hub lock during Join and read by
	// the owning read pump.
	role   models.Role
	roomID string
}

func NewClient(id string, hub *Hub, correlator *Correlator, conn *websocket.Conn, log zerolog.Logger) *Client {
	return &Client{
		ID:         id,
		hub:        hub,
		correlator: correlator,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		log:        log.With().Str("socket", id).Logger(),
	}
}

// Run starts the read and write pumps. The read pump runs on the calling
// goroutine and returns when the connection drops.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.teardown()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.log.Warn().Err(err).Msg("malformed envelope, skipping")
			continue
		}
		c.handleEnvelope(env)
	}
}

// teardown detaches the connection from the hub and notifies whoever is left
// in its former room. Best-effort: the notice is dropped if no room was joined.
func (c *Client) teardown() {
	role, roomID := c.hub.Disconnect(c)
	if roomID != "" {
		c.hub.send(roomID, models.EventUserDisconnected, models.UserDisconnectedPayload{
			Role:      role,
			SocketID:  c.ID,
			Timestamp: time.Now().UnixMilli(),
		}, c.ID)
	}
	c.log.Info().Str("role", string(role)).Str("room", roomID).Msg("client disconnected")
}

// handleEnvelope routes one inbound event. A bad payload never terminates the
// connection; the event is logged and dropped.
func (c *Client) handleEnvelope(env models.Envelope) {
	c.hub.metrics.EventsTotal.WithLabelValues(string(env.Event)).Inc()

	switch env.Event {
	case models.EventJoinRoom:
		c.handleJoin(env.Data)

	case models.EventHeartbeat:
		c.handleHeartbeat(env.Data)

	case models.EventMonitorAnnouncement:
		// Re-announce to the room under a distinct name so late viewers can
		// tell a fresh announcement from their own join.
		c.relayAs(models.EventMonitorReady, env.Data)

	case models.EventOffer, models.EventAnswer, models.EventICECandidate,
		models.EventControlCommand, models.EventStatusUpdate,
		models.EventDeviceInfo, models.EventStreamData:
		c.relayAs(env.Event, env.Data)

	case models.EventCommand:
		c.correlator.Dispatch(c, env.Data)

	case models.EventCommandAck:
		c.handleCommandAck(env.Data)

	case models.EventSubscriptionRequest:
		// Legacy socket path; intake moved to POST /api/subscribe.
		c.log.Debug().Msg("subscription request over socket ignored, use the REST API")

	default:
		c.log.Warn().Str("event", string(env.Event)).Msg("unknown event")
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var req models.JoinRoomPayload
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		c.log.Warn().Err(err).Msg("invalid join-room payload")
		return
	}

	count, err := c.hub.Join(c, req.RoomID, req.Role)
	if err != nil {
		c.log.Warn().Err(err).Str("room", req.RoomID).Str("role", string(req.Role)).Msg("join rejected")
		return
	}
	c.log.Info().Str("room", req.RoomID).Str("role", string(req.Role)).Msg("joined room")

	now := time.Now().UnixMilli()

	// Announce the newcomer to everyone already in the room.
	c.hub.send(req.RoomID, models.EventUserConnected, models.UserConnectedPayload{
		Role:      req.Role,
		SocketID:  c.ID,
		Timestamp: now,
	}, c.ID)

	// A joining viewer has no way to know whether a monitor is already
	// streaming; nudge the room so the monitor re-announces idempotently.
	if req.Role == models.RoleViewer {
		c.hub.Broadcast(req.RoomID, models.Envelope{Event: models.EventRequestMonitorStatus}, c.ID)
	}

	// Snapshot for the joiner only. Informational, not admission control.
	c.sendEvent(models.EventRoomStatus, models.RoomStatusPayload{
		RoomID:      req.RoomID,
		ClientCount: count,
		Timestamp:   now,
	})
}

func (c *Client) handleHeartbeat(data json.RawMessage) {
	var hb models.HeartbeatPayload
	if err := json.Unmarshal(data, &hb); err != nil {
		c.log.Warn().Err(err).Msg("invalid heartbeat payload")
		return
	}
	c.hub.Registry().Touch(c.ID)
	c.sendEvent(models.EventHeartbeatAck, models.HeartbeatAckPayload{
		ClientTimestamp: hb.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	})
}

func (c *Client) handleCommandAck(data json.RawMessage) {
	var ack models.CommandAckPayload
	if err := json.Unmarshal(data, &ack); err == nil {
		c.log.Info().Str("commandId", ack.CommandID).Str("status", ack.Status).Msg("command ack")
	}
	c.relayAs(models.EventCommandAck, data)
}

// relayAs forwards the raw payload verbatim to every other member of the room
// the payload addresses. Never echoed to the sender, never across rooms.
func (c *Client) relayAs(event models.Event, data json.RawMessage) {
	var scope models.RoomScoped
	if err := json.Unmarshal(data, &scope); err != nil || scope.RoomID == "" {
		c.log.Warn().Str("event", string(event)).Msg("payload missing roomId, dropped")
		return
	}
	c.hub.Broadcast(scope.RoomID, models.Envelope{Event: event, Data: data}, c.ID)
}

// sendEvent delivers a server-originated event to this client only.
func (c *Client) sendEvent(event models.Event, payload any) {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(event)).Msg("marshal payload")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(event)).Msg("marshal envelope")
		return
	}
	c.enqueue(data)
}

// enqueue hands a frame to the write pump. A full buffer drops the frame;
// delivery is best-effort by design of the transport.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.metrics.SendDropsTotal.Inc()
		c.log.Warn().Msg("send buffer full, message dropped")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
