package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/models"
	"github.com/safewatch/signaling/internal/observability"
)

// SMSSender is the external delivery delegate. A nil sender is a normal
// configuration: SMS commands then fall back to the device-native method.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (sid string, err error)
}

// Correlator dispatches viewer commands to the monitor device and keeps the
// command/ack correlation identifier flowing in both directions. The relay
// holds no pending-command state; correlation lives in the requesting client.
type Correlator struct {
	hub     *Hub
	sms     SMSSender
	metrics *observability.Metrics
	log     zerolog.Logger
	seq     atomic.Uint64
}

func NewCorrelator(hub *Hub, sms SMSSender, metrics *observability.Metrics, log zerolog.Logger) *Correlator {
	return &Correlator{
		hub:     hub,
		sms:     sms,
		metrics: metrics,
		log:     log.With().Str("component", "correlator").Logger(),
	}
}

// commandFields is the slice of a command payload the correlator reads. The
// rest of the payload is opaque and forwarded untouched.
type commandFields struct {
	RoomID    string `json:"roomId"`
	Command   string `json:"command"`
	CommandID string `json:"commandId"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

// Dispatch handles one command from sender. The unknown-command case is
// deliberate: names are not validated here, the receiving device rejects what
// it does not understand.
func (co *Correlator) Dispatch(sender *Client, data json.RawMessage) {
	var cmd commandFields
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.RoomID == "" {
		co.log.Warn().Err(err).Msg("invalid command payload")
		return
	}

	commandID := cmd.CommandID
	if commandID == "" {
		commandID = co.newCommandID()
	}
	co.log.Info().Str("commandId", commandID).Str("command", cmd.Command).Str("room", cmd.RoomID).Msg("command dispatched")

	// Server-side SMS short-circuit: when the delegate is configured and
	// succeeds, the device is never bothered. Delegate failure degrades to
	// the device-native path below.
	if cmd.Command == "send-sms" && co.sms != nil {
		if co.sendSMS(sender, commandID, cmd) {
			co.metrics.CommandsTotal.WithLabelValues("sms-server").Inc()
			return
		}
	}

	// Forward the full payload, with the correlation id and a server
	// timestamp attached, to the whole room. The sender is included here on
	// purpose so every viewer observes the dispatch.
	payload := make(map[string]any)
	if err := json.Unmarshal(data, &payload); err != nil {
		co.log.Warn().Err(err).Msg("invalid command payload")
		return
	}
	now := time.Now().UnixMilli()
	payload["commandId"] = commandID
	payload["serverTimestamp"] = now

	env, err := models.NewEnvelope(models.EventCommand, payload)
	if err != nil {
		co.log.Error().Err(err).Msg("marshal command")
		return
	}
	co.hub.BroadcastAll(cmd.RoomID, env)
	co.metrics.CommandsTotal.WithLabelValues("forwarded").Inc()

	// Dispatch acknowledgment to the sender only: the relay routed the
	// command. Execution is acknowledged later by the device's command-ack.
	sender.sendEvent(models.EventCommandSent, models.CommandSentPayload{
		CommandID: commandID,
		Command:   cmd.Command,
		Timestamp: now,
	})
}

// sendSMS attempts delegation and reports whether the short-circuit applied.
func (co *Correlator) sendSMS(sender *Client, commandID string, cmd commandFields) bool {
	sid, err := co.sms.Send(context.Background(), cmd.Phone, cmd.Message)
	if err != nil {
		co.log.Error().Err(err).Str("commandId", commandID).Msg("sms delegate failed, falling back to device")
		return false
	}
	co.log.Info().Str("commandId", commandID).Str("sid", sid).Msg("sms sent via server")

	now := time.Now().UnixMilli()
	sender.sendEvent(models.EventCommandAck, models.CommandAckPayload{
		CommandID: commandID,
		Status:    "success",
		Message:   "SMS sent via server",
		Timestamp: now,
	})
	sender.sendEvent(models.EventStatusUpdate, models.StatusUpdatePayload{
		RoomID:    cmd.RoomID,
		Type:      "sms-sent-server",
		Phone:     cmd.Phone,
		Success:   true,
		Timestamp: now,
	})
	return true
}

// newCommandID synthesizes a correlation id for clients that omit one. The
// timestamp keeps the original shape; the sequence keeps ids distinct within
// one millisecond.
func (co *Correlator) newCommandID() string {
	return fmt.Sprintf("cmd_%d_%d", time.Now().UnixMilli(), co.seq.Add(1))
}
