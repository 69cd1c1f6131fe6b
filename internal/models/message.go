package models

import "encoding/json"

// Event identifies a signaling event on the wire.
type Event string

// Client -> relay events.
const (
	EventJoinRoom            Event = "join-room"
	EventHeartbeat           Event = "heartbeat"
	EventMonitorAnnouncement Event = "monitor-announcement"
	EventOffer               Event = "offer"
	EventAnswer              Event = "answer"
	EventICECandidate        Event = "ice-candidate"
	EventControlCommand      Event = "control-command"
	EventCommand             Event = "command"
	EventCommandAck          Event = "command-ack"
	EventStatusUpdate        Event = "status-update"
	EventDeviceInfo          Event = "device-info"
	EventStreamData          Event = "stream-data"
	EventSubscriptionRequest Event = "subscription-request"
)

// Relay -> client events.
const (
	EventUserConnected        Event = "user-connected"
	EventUserDisconnected     Event = "user-disconnected"
	EventRequestMonitorStatus Event = "request-monitor-status"
	EventRoomStatus           Event = "room-status"
	EventHeartbeatAck         Event = "heartbeat-ack"
	EventMonitorReady         Event = "monitor-ready"
	EventCommandSent          Event = "command-sent"
)

// Role tags a connection's side of the pairing.
type Role string

const (
	RoleMonitor Role = "monitor" // camera device
	RoleViewer  Role = "viewer"  // dashboard
)

// Envelope is the wire framing for every signaling message. Data carries the
// event-specific payload and is relayed verbatim for fan-out events.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a typed payload.
func NewEnvelope(event Event, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// RoomScoped is the minimal view the router needs from a fan-out payload.
// Everything else in the payload passes through untouched.
type RoomScoped struct {
	RoomID string `json:"roomId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	Role   Role   `json:"role"`
}

type HeartbeatPayload struct {
	RoomID    string `json:"roomId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HeartbeatAckPayload echoes the client timestamp so the client can compute
// round-trip time.
type HeartbeatAckPayload struct {
	ClientTimestamp int64 `json:"clientTimestamp"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

type UserConnectedPayload struct {
	Role      Role   `json:"role"`
	SocketID  string `json:"socketId"`
	Timestamp int64  `json:"timestamp"`
}

type UserDisconnectedPayload struct {
	Role      Role   `json:"role"`
	SocketID  string `json:"socketId"`
	Timestamp int64  `json:"timestamp"`
}

type RoomStatusPayload struct {
	RoomID      string `json:"roomId"`
	ClientCount int    `json:"clientCount"`
	Timestamp   int64  `json:"timestamp"`
}

// CommandSentPayload acknowledges dispatch: the relay routed the command.
// Execution is acknowledged separately by the device via command-ack.
type CommandSentPayload struct {
	CommandID string `json:"commandId"`
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
}

type CommandAckPayload struct {
	CommandID string `json:"commandId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// StatusUpdatePayload is the server-originated variant emitted after the SMS
// short-circuit path. Device-originated status updates are relayed verbatim.
type StatusUpdatePayload struct {
	RoomID    string `json:"roomId"`
	Type      string `json:"type"`
	Phone     string `json:"phone,omitempty"`
	Success   bool   `json:"success"`
	Timestamp int64  `json:"timestamp"`
}
