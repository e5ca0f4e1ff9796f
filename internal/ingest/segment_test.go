package ingest

import (
	"testing"
	"time"
)

func TestSegmentAddAndDetach(t *testing.T) {
	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	sink := make(chan Event, 10)
	seg := NewSegment(schema, sink, time.Hour, 10)

	if err := seg.Add(Values{"id": Int64Value(1)}, sink); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if seg.IsEmpty() {
		t.Fatal("IsEmpty() = true after Add")
	}

	cache := seg.Detach()
	if cache == nil || cache.Len() != 1 {
		t.Fatalf("Detach() cache = %+v, want 1 record", cache)
	}

	if err := seg.Add(Values{"id": Int64Value(2)}, sink); err != ErrSegmentWithoutCache {
		t.Fatalf("Add() after Detach() error = %v, want ErrSegmentWithoutCache", err)
	}
}

func TestSegmentTimerFiresExpiry(t *testing.T) {
	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	sink := make(chan Event, 10)
	seg := NewSegment(schema, sink, 20*time.Millisecond, 1000)

	select {
	case ev := <-sink:
		if ev.Kind != EventSegmentExpired {
			t.Fatalf("Kind = %v, want EventSegmentExpired", ev.Kind)
		}
		if ev.SegmentID != seg.ID {
			t.Fatalf("SegmentID = %v, want %v", ev.SegmentID, seg.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expiry event")
	}
}

func TestSegmentCapacityTriggersProactiveExpiry(t *testing.T) {
	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	sink := make(chan Event, 10)
	seg := NewSegment(schema, sink, time.Hour, 2)

	if err := seg.Add(Values{"id": Int64Value(1)}, sink); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	select {
	case <-sink:
		t.Fatal("expiry fired before capacity was reached")
	default:
	}

	if err := seg.Add(Values{"id": Int64Value(2)}, sink); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	select {
	case ev := <-sink:
		if ev.Kind != EventSegmentExpired {
			t.Fatalf("Kind = %v, want EventSegmentExpired", ev.Kind)
		}
	default:
		t.Fatal("expected proactive expiry event once capacity was reached")
	}
}
