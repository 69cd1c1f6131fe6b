package signal

import (
	"testing"
	"time"

	"github.com/safewatch/signaling/internal/models"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	r.Register("conn-1")
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}

	conn, ok := r.Get("conn-1")
	if !ok {
		t.Fatal("Get: entry missing after Register")
	}
	if conn.Role != "" || conn.RoomID != "" {
		t.Fatalf("fresh entry has role %q room %q, want unset", conn.Role, conn.RoomID)
	}
	if conn.ConnectedAt.IsZero() || conn.LastHeartbeat.IsZero() {
		t.Fatal("fresh entry missing timestamps")
	}

	r.UpdateRole("conn-1", models.RoleMonitor, "sw-test1")
	conn, _ = r.Get("conn-1")
	if conn.Role != models.RoleMonitor || conn.RoomID != "sw-test1" {
		t.Fatalf("after UpdateRole: role %q room %q", conn.Role, conn.RoomID)
	}

	before := conn.LastHeartbeat
	time.Sleep(time.Millisecond)
	r.Touch("conn-1")
	conn, _ = r.Get("conn-1")
	if !conn.LastHeartbeat.After(before) {
		t.Fatal("Touch did not advance LastHeartbeat")
	}

	role, roomID, ok := r.Remove("conn-1")
	if !ok || role != models.RoleMonitor || roomID != "sw-test1" {
		t.Fatalf("Remove = (%q, %q, %v), want (monitor, sw-test1, true)", role, roomID, ok)
	}
	if _, ok := r.Get("conn-1"); ok {
		t.Fatal("entry still present after Remove")
	}
	if _, _, ok := r.Remove("conn-1"); ok {
		t.Fatal("second Remove reported an entry")
	}
}

func TestRegistryUpdateUnknownID(t *testing.T) {
	r := NewRegistry()
	// Operations keyed by an id the transport never assigned must not create
	// or overwrite entries.
	r.UpdateRole("ghost", models.RoleViewer, "sw-x")
	r.Touch("ghost")
	if r.Count() != 0 {
		t.Fatalf("Count = %d, want 0", r.Count())
	}
}

func TestStaleConnections(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")

	if stale := r.StaleConnections(time.Hour); len(stale) != 0 {
		t.Fatalf("fresh connections reported stale: %v", stale)
	}
	// Negative threshold puts the cutoff in the future, so everything is
	// stale. Staleness is recorded only; nothing is evicted.
	if stale := r.StaleConnections(-time.Hour); len(stale) != 2 {
		t.Fatalf("got %d stale, want 2", len(stale))
	}
	if r.Count() != 2 {
		t.Fatal("StaleConnections must not evict")
	}
}
