package eventbus

import (
	"testing"
	"time"

	"pkt.systems/termbridge/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New("sess-1", 0, nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(schema.SessionEvent{Kind: schema.EventBytesIn, Bytes: []byte("hi")})

	select {
	case got := <-ch:
		if got.Kind != schema.EventBytesIn {
			t.Fatalf("expected bytes_in event, got %v", got.Kind)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New("sess-1", 0, nil)
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestLossyLaneEvictsOldestAndReportsLagOnce(t *testing.T) {
	bus := New("sess-1", 2, nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(schema.SessionEvent{Kind: schema.EventBytesIn, Bytes: []byte("old1")})
	bus.Publish(schema.SessionEvent{Kind: schema.EventBytesIn, Bytes: []byte("old2")})
	// third publish overflows the depth-2 queue: old1 is evicted for the
	// newest payload, and entering the lag episode evicts old2 to make room
	// for a single SubscriberLag notice.
	bus.Publish(schema.SessionEvent{Kind: schema.EventBytesIn, Bytes: []byte("new3")})

	got := <-ch
	if string(got.Bytes) != "new3" {
		t.Fatalf("expected newest event to survive eviction, got %q", got.Bytes)
	}
	got = <-ch
	if got.Kind != schema.EventError || got.ErrKind != schema.ErrKindSubscriberLag {
		t.Fatalf("expected a lag notice queued alongside the newest event, got %+v", got)
	}
}

func TestDurableLaneNeverEvicts(t *testing.T) {
	bus := New("sess-1", 1, nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(schema.SessionEvent{Kind: schema.EventStateChanged, From: schema.SessionConnecting, To: schema.SessionConnected})
	// second durable event overflows the depth-1 queue; the subscriber is
	// marked degraded rather than losing the first event.
	bus.Publish(schema.SessionEvent{Kind: schema.EventStateChanged, From: schema.SessionConnected, To: schema.SessionDisconnected})

	got := <-ch
	if got.Kind != schema.EventStateChanged || got.To != schema.SessionConnected {
		t.Fatalf("expected first durable event preserved, got %+v", got)
	}
}

func TestDurableLaneDropsAfterPersistentBacklog(t *testing.T) {
	bus := New("sess-1", 1, nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(schema.SessionEvent{Kind: schema.EventTriggerFired, TriggerID: "t1"})
	bus.Publish(schema.SessionEvent{Kind: schema.EventTriggerFired, TriggerID: "t2"})
	bus.Publish(schema.SessionEvent{Kind: schema.EventTriggerFired, TriggerID: "t3"})

	got := <-ch
	if got.Kind != schema.EventTriggerFired || got.TriggerID != "t1" {
		t.Fatalf("expected the first durable event preserved, got %+v", got)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after drop")
	}
}
