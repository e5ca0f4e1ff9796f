package ingest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestRouter(ttl time.Duration, capacity int) (*Router, chan Event, chan ClosedSegment) {
	events := make(chan Event, 10)
	closed := make(chan ClosedSegment, 10)
	r := NewRouter(events, closed, ttl, capacity, zerolog.Nop())
	return r, events, closed
}

func TestRouterOpensSegmentOnFirstInsert(t *testing.T) {
	r, events, closed := newTestRouter(50*time.Millisecond, 1000)
	go r.Run()
	defer close(events)

	events <- InsertEvent("orders", Values{"id": Int64Value(1)})

	select {
	case cs := <-closed:
		if cs.Schema.Name != "orders" {
			t.Fatalf("Schema.Name = %q, want orders", cs.Schema.Name)
		}
		if cs.Cache.Len() != 1 {
			t.Fatalf("Cache.Len() = %d, want 1", cs.Cache.Len())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for segment to expire and be handed to terminator")
	}
}

func TestRouterAppendsToLiveSegment(t *testing.T) {
	r, events, closed := newTestRouter(100*time.Millisecond, 1000)
	go r.Run()
	defer close(events)

	events <- InsertEvent("orders", Values{"id": Int64Value(1)})
	events <- InsertEvent("orders", Values{"id": Int64Value(2)})

	select {
	case cs := <-closed:
		if cs.Cache.Len() != 2 {
			t.Fatalf("Cache.Len() = %d, want 2 (both inserts in one segment)", cs.Cache.Len())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for segment close")
	}
}

func TestRouterTwoIndicesDoNotShareSegments(t *testing.T) {
	r, events, closed := newTestRouter(50*time.Millisecond, 1000)
	go r.Run()
	defer close(events)

	events <- InsertEvent("a", Values{"id": Int64Value(1)})
	events <- InsertEvent("b", Values{"id": Int64Value(2)})

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case cs := <-closed:
			seen[cs.Schema.Name] = cs.Cache.Len()
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for both segments to close")
		}
	}
	if seen["a"] != 1 || seen["b"] != 1 {
		t.Fatalf("seen = %v, want a:1 b:1", seen)
	}
}

func TestRouterStaleExpiryIsDiscarded(t *testing.T) {
	r, events, _ := newTestRouter(time.Hour, 1000)
	go r.Run()
	defer close(events)

	events <- InsertEvent("orders", Values{"id": Int64Value(1)})
	time.Sleep(20 * time.Millisecond) // let the insert land before the stale expiry

	// A SegmentExpired for an id that no longer matches the live segment
	// (or an index with no live segment at all) must be a silent no-op.
	events <- SegmentExpiredEvent("orders", uuid.Nil)
	events <- SegmentExpiredEvent("unknown-index", uuid.Nil)

	// If either were mishandled, Run would have panicked or blocked; give
	// it a moment to prove it's still alive by processing one more insert.
	events <- InsertEvent("orders", Values{"id": Int64Value(2)})
	time.Sleep(20 * time.Millisecond)
}
