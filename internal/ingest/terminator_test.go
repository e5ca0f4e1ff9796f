package ingest

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeWriter struct {
	calls int
	fail  bool
}

func (w *fakeWriter) Write(schema *Schema, id string, columns map[string]Column) (FileMetaData, error) {
	w.calls++
	if w.fail {
		return FileMetaData{}, errors.New("boom")
	}
	rows := int64(0)
	for _, c := range columns {
		rows = int64(c.Len())
		break
	}
	return FileMetaData{Path: id + ".parquet", RowCount: rows}, nil
}

func TestTerminatorSkipsEmptySegment(t *testing.T) {
	w := &fakeWriter{}
	var closedCalled bool
	term := NewTerminator(w, zerolog.Nop(), func(FileMetaData) { closedCalled = true }, nil)

	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	term.terminate(ClosedSegment{Schema: schema, ID: "x", Cache: NewCache(10)})

	if w.calls != 0 {
		t.Fatalf("writer.calls = %d, want 0 for an empty segment", w.calls)
	}
	if closedCalled {
		t.Fatal("onClose should not fire for an empty segment")
	}
}

func TestTerminatorClosesNonEmptySegment(t *testing.T) {
	w := &fakeWriter{}
	var meta FileMetaData
	term := NewTerminator(w, zerolog.Nop(), func(m FileMetaData) { meta = m }, nil)

	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	cache := NewCache(10)
	cache.Add(Values{"id": Int64Value(1)})
	cache.Add(Values{"id": Int64Value(2)})

	term.terminate(ClosedSegment{Schema: schema, ID: "x", Cache: cache})

	if w.calls != 1 {
		t.Fatalf("writer.calls = %d, want 1", w.calls)
	}
	if meta.RowCount != 2 {
		t.Fatalf("meta.RowCount = %d, want 2", meta.RowCount)
	}
}

func TestTerminatorWriteFailureInvokesOnError(t *testing.T) {
	w := &fakeWriter{fail: true}
	var gotErr error
	var gotIndex, gotID string
	term := NewTerminator(w, zerolog.Nop(), nil, func(index, id string, err error) {
		gotIndex, gotID, gotErr = index, id, err
	})

	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	cache := NewCache(10)
	cache.Add(Values{"id": Int64Value(1)})

	term.terminate(ClosedSegment{Schema: schema, ID: "x", Cache: cache})

	if gotErr == nil {
		t.Fatal("onError was not invoked on write failure")
	}
	if gotIndex != "orders" || gotID != "x" {
		t.Errorf("onError(%q, %q, ...), want (orders, x, ...)", gotIndex, gotID)
	}
}

func TestTerminatorSchemaViolationInvokesOnError(t *testing.T) {
	w := &fakeWriter{}
	var gotErr error
	term := NewTerminator(w, zerolog.Nop(), nil, func(index, id string, err error) { gotErr = err })

	schema := InferSchema("orders", Values{"id": Int64Value(0)})
	cache := NewCache(10)
	cache.Add(Values{"id": StringValue("wrong type")})

	term.terminate(ClosedSegment{Schema: schema, ID: "x", Cache: cache})

	if gotErr == nil {
		t.Fatal("onError was not invoked for a schema violation")
	}
	if w.calls != 0 {
		t.Fatalf("writer.calls = %d, want 0 (pivot should fail before Write)", w.calls)
	}
}
