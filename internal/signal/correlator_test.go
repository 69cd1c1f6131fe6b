package signal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/models"
	"github.com/safewatch/signaling/internal/observability"
)

type fakeSMS struct {
	sid   string
	err   error
	calls int
	to    string
	body  string
}

func (f *fakeSMS) Send(_ context.Context, to, body string) (string, error) {
	f.calls++
	f.to = to
	f.body = body
	return f.sid, f.err
}

func newCorrelatorPair(t *testing.T, sender SMSSender) (*Hub, *Correlator, *Client, *Client) {
	t.Helper()
	hub := NewHub(NewRegistry(), observability.NewMetrics(), zerolog.Nop())
	co := NewCorrelator(hub, sender, hub.metrics, zerolog.Nop())
	viewer := newTestClient(hub, co, "viewer")
	monitor := newTestClient(hub, co, "monitor")
	hub.Join(viewer, "sw-cmd", models.RoleViewer)
	hub.Join(monitor, "sw-cmd", models.RoleMonitor)
	return hub, co, viewer, monitor
}

func rawCommand(t *testing.T, fields map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDispatchForwardsWithSynthesizedID(t *testing.T) {
	_, co, viewer, monitor := newCorrelatorPair(t, nil)

	co.Dispatch(viewer, rawCommand(t, map[string]any{"roomId": "sw-cmd", "command": "take-photo"}))

	// The forward goes to the whole room, sender included, unlike the
	// symmetric signaling events.
	for _, c := range []*Client{monitor, viewer} {
		env := recvEnvelope(t, c)
		if env.Event != models.EventCommand {
			t.Fatalf("%s received %q, want command", c.ID, env.Event)
		}
		var payload map[string]any
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload["command"] != "take-photo" {
			t.Fatalf("command = %v", payload["command"])
		}
		id, _ := payload["commandId"].(string)
		if id == "" {
			t.Fatal("forward missing synthesized commandId")
		}
		if _, ok := payload["serverTimestamp"]; !ok {
			t.Fatal("forward missing serverTimestamp")
		}
	}

	// Dispatch acknowledgment reaches the sender only.
	env := recvEnvelope(t, viewer)
	if env.Event != models.EventCommandSent {
		t.Fatalf("viewer received %q, want command-sent", env.Event)
	}
	var sent models.CommandSentPayload
	if err := json.Unmarshal(env.Data, &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Command != "take-photo" || sent.CommandID == "" {
		t.Fatalf("command-sent = %+v", sent)
	}
	assertNoMessage(t, monitor)
}

func TestDispatchPreservesClientCommandID(t *testing.T) {
	_, co, viewer, monitor := newCorrelatorPair(t, nil)

	co.Dispatch(viewer, rawCommand(t, map[string]any{
		"roomId": "sw-cmd", "command": "toggle-torch", "commandId": "cmd_client_7",
	}))

	env := recvEnvelope(t, monitor)
	var payload map[string]any
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["commandId"] != "cmd_client_7" {
		t.Fatalf("commandId = %v, want cmd_client_7", payload["commandId"])
	}
}

func TestSynthesizedIDsAreDistinct(t *testing.T) {
	hub := NewHub(NewRegistry(), observability.NewMetrics(), zerolog.Nop())
	co := NewCorrelator(hub, nil, hub.metrics, zerolog.Nop())

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := co.newCommandID()
		if seen[id] {
			t.Fatalf("duplicate commandId %q", id)
		}
		seen[id] = true
	}
}

func TestSMSShortCircuit(t *testing.T) {
	delegate := &fakeSMS{sid: "SM123"}
	_, co, viewer, monitor := newCorrelatorPair(t, delegate)

	co.Dispatch(viewer, rawCommand(t, map[string]any{
		"roomId": "sw-cmd", "command": "send-sms", "phone": "+15550001111", "message": "alert",
	}))

	if delegate.calls != 1 || delegate.to != "+15550001111" || delegate.body != "alert" {
		t.Fatalf("delegate = %+v", delegate)
	}

	// Success path: execution ack and server status go to the sender only;
	// the device is never bothered.
	env := recvEnvelope(t, viewer)
	if env.Event != models.EventCommandAck {
		t.Fatalf("viewer received %q, want command-ack", env.Event)
	}
	var ack models.CommandAckPayload
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Status != "success" || ack.CommandID == "" {
		t.Fatalf("command-ack = %+v", ack)
	}

	env = recvEnvelope(t, viewer)
	if env.Event != models.EventStatusUpdate {
		t.Fatalf("viewer received %q, want status-update", env.Event)
	}
	var status models.StatusUpdatePayload
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.Type != "sms-sent-server" || !status.Success {
		t.Fatalf("status-update = %+v", status)
	}

	assertNoMessage(t, viewer)
	assertNoMessage(t, monitor)
}

func TestSMSDelegateFailureFallsBackToDevice(t *testing.T) {
	delegate := &fakeSMS{err: errors.New("provider unreachable")}
	_, co, viewer, monitor := newCorrelatorPair(t, delegate)

	co.Dispatch(viewer, rawCommand(t, map[string]any{
		"roomId": "sw-cmd", "command": "send-sms", "phone": "+15550001111", "message": "alert",
	}))

	if delegate.calls != 1 {
		t.Fatalf("delegate.calls = %d, want 1", delegate.calls)
	}

	// Delegate failure is not terminal: exactly one forward reaches the
	// device, then the usual dispatch ack.
	env := recvEnvelope(t, monitor)
	if env.Event != models.EventCommand {
		t.Fatalf("monitor received %q, want command", env.Event)
	}
	assertNoMessage(t, monitor)

	if env = recvEnvelope(t, viewer); env.Event != models.EventCommand {
		t.Fatalf("viewer received %q, want command", env.Event)
	}
	if env = recvEnvelope(t, viewer); env.Event != models.EventCommandSent {
		t.Fatalf("viewer received %q, want command-sent", env.Event)
	}
}

func TestCommandToEmptyRoomStillAcksDispatch(t *testing.T) {
	hub := NewHub(NewRegistry(), observability.NewMetrics(), zerolog.Nop())
	co := NewCorrelator(hub, nil, hub.metrics, zerolog.Nop())
	viewer := newTestClient(hub, co, "viewer")
	// Viewer dispatches into a room nobody joined: the forward is a no-op
	// broadcast, the sender still learns the relay routed it and times out
	// client-side waiting for the execution ack.
	co.Dispatch(viewer, rawCommand(t, map[string]any{"roomId": "sw-empty", "command": "take-photo"}))

	env := recvEnvelope(t, viewer)
	if env.Event != models.EventCommandSent {
		t.Fatalf("viewer received %q, want command-sent", env.Event)
	}
}

func TestCommandAckFanOutExcludesDevice(t *testing.T) {
	_, _, viewer, monitor := newCorrelatorPair(t, nil)

	monitor.handleEnvelope(envelope(t, models.EventCommandAck, map[string]any{
		"roomId": "sw-cmd", "commandId": "cmd_1", "status": "success",
	}))

	env := recvEnvelope(t, viewer)
	if env.Event != models.EventCommandAck {
		t.Fatalf("viewer received %q, want command-ack", env.Event)
	}
	assertNoMessage(t, viewer)
	assertNoMessage(t, monitor)
}
