package bridge

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestRelay(t *testing.T) *EventRelay {
	relay, err := NewEventRelay(zaptest.NewLogger(t).Sugar(), &stubSurface{})
	if err != nil {
		t.Fatalf("create event relay: %v", err)
	}

	return relay
}

func TestEventRelayObserve(t *testing.T) {
	relay := newTestRelay(t)

	songA := MediaSnapshot{Title: "Song A", Artist: "Artist B", IsPlaying: true}
	paused := songA
	paused.IsPlaying = false

	steps := []struct {
		snapshot MediaSnapshot
		changed  bool
	}{
		{DefaultSnapshot(), true},
		{DefaultSnapshot(), false},
		{songA, true},
		{songA, false},
		{paused, true},
		{songA, true},
	}

	for i, step := range steps {
		if changed := relay.observe(step.snapshot); changed != step.changed {
			t.Errorf("step %d: expected changed=%t, got %t", i, step.changed, changed)
		}
	}
}

func TestEventRelayNewEvent(t *testing.T) {
	relay := newTestRelay(t)

	snapshot := MediaSnapshot{Title: "Song A", Artist: "Artist B"}

	first := relay.newEvent(eventTypeState, snapshot)
	second := relay.newEvent(eventTypePing, map[string]interface{}{"title": "Media Bridge"})

	if first.Type != eventTypeState || second.Type != eventTypePing {
		t.Errorf("unexpected event types %q and %q", first.Type, second.Type)
	}

	if first.ID == second.ID {
		t.Errorf("expected distinct event IDs, got %q twice", first.ID)
	}

	var decoded MediaSnapshot
	if err := json.Unmarshal(first.Data, &decoded); err != nil {
		t.Fatalf("decode event data: %v", err)
	}

	if decoded != snapshot {
		t.Errorf("expected %v, got %v", snapshot, decoded)
	}
}

func TestEventRelayDisabled(t *testing.T) {
	relay := newTestRelay(t)

	if err := relay.Start("127.0.0.1", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if relay.IsRunning() {
		t.Error("expected the relay to stay off without a port")
	}

	// stopping a relay that never ran is fine
	relay.Stop()
}

func TestEventRelayListenerFailureStopsPolling(t *testing.T) {
	// occupy a port so the relay can't listen on it
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port

	relay := newTestRelay(t)

	if err := relay.Start("127.0.0.1", port, 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-relay.pollDone:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the poll loop to exit after the listener failed")
	}

	if relay.IsRunning() {
		t.Error("expected the relay to report it's not running")
	}

	// still safe to stop, and it can't be started again
	relay.Stop()

	if err := relay.Start("127.0.0.1", port, 10*time.Millisecond); !errors.Is(err, errRelayStopped) {
		t.Errorf("expected errRelayStopped, got %v", err)
	}
}
