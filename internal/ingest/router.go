package ingest

import (
	"time"

	"github.com/rs/zerolog"
)

// ClosedSegment is handed from the Router to the Terminator once a
// Segment has been detached. The schema travels with it because the
// Columnar Writer needs the column definitions at close time and the
// Segment itself no longer holds a live reference once detached.
type ClosedSegment struct {
	Schema *Schema
	ID     string
	Cache  *Cache
}

// Router is the single-consumer task that owns index → Schema/Segment
// state. It must only ever be driven from one goroutine (Run) — that is
// what gives the append/expire ordering guarantee in spec §5: a segment
// can never receive an append after the Router has observed its
// expiration, because both are processed from the same queue in strict
// FIFO order.
type Router struct {
	logger     zerolog.Logger
	segmentTTL time.Duration
	cacheCap   int

	schemas map[string]*Schema
	live    map[string]*Segment // index -> its one live segment, if any

	events chan Event
	closed chan<- ClosedSegment

	onOpened func()
}

// NewRouter creates a Router. events is the bounded queue fed by the
// Source Client and by every Segment's own expiry timer (same channel,
// per spec §5); closed is where detached segments are handed to the
// Terminator.
func NewRouter(events chan Event, closed chan<- ClosedSegment, segmentTTL time.Duration, cacheCap int, logger zerolog.Logger) *Router {
	return &Router{
		logger:     logger.With().Str("component", "router").Logger(),
		segmentTTL: segmentTTL,
		cacheCap:   cacheCap,
		schemas:    make(map[string]*Schema),
		live:       make(map[string]*Segment),
		events:     events,
		closed:     closed,
	}
}

// OnSegmentOpened registers a callback invoked every time the Router
// opens a fresh Segment (initial or after a detached-append reopen), so
// the Metrics Collector's open-segment gauge stays in sync without the
// Router depending on it directly.
func (r *Router) OnSegmentOpened(fn func()) {
	r.onOpened = fn
}

// Run processes events until the channel is closed. It is the Router's
// whole concurrency story: no other goroutine touches r.schemas/r.live.
func (r *Router) Run() {
	for ev := range r.events {
		switch ev.Kind {
		case EventInsert:
			r.handleInsert(ev.Index, ev.Values)
		case EventSegmentExpired:
			r.handleExpired(ev.Index, ev.SegmentID.String())
		case EventUpdate, EventDelete:
			r.logger.Debug().Str("index", ev.Index).Str("kind", ev.Kind.String()).Msg("mutation kind not yet materialized")
		}
	}
}

func (r *Router) handleInsert(index string, values Values) {
	schema, ok := r.schemas[index]
	if !ok {
		schema = InferSchema(index, values)
		r.schemas[index] = schema
		r.logger.Info().Str("index", index).Int("columns", len(schema.Columns)).Msg("inferred schema")
	}

	seg, ok := r.live[index]
	if !ok {
		seg = NewSegment(schema, r.events, r.segmentTTL, r.cacheCap)
		r.live[index] = seg
		r.logger.Debug().Str("index", index).Str("segment", seg.ID.String()).Msg("opened segment")
		if r.onOpened != nil {
			r.onOpened()
		}
	}

	if err := seg.Add(values, r.events); err != nil {
		r.logger.Warn().Err(err).Str("index", index).Msg("append to detached segment, opening a fresh one")
		fresh := NewSegment(schema, r.events, r.segmentTTL, r.cacheCap)
		r.live[index] = fresh
		if r.onOpened != nil {
			r.onOpened()
		}
		if err := fresh.Add(values, r.events); err != nil {
			r.logger.Error().Err(err).Str("index", index).Msg("append to freshly-opened segment failed, dropping record")
		}
	}
}

func (r *Router) handleExpired(index, segmentID string) {
	seg, ok := r.live[index]
	if !ok || seg.ID.String() != segmentID {
		return // already closed by another path; discard.
	}

	delete(r.live, index)
	cache := seg.Detach()
	// Blocking send: losing a closed segment silently would be worse
	// than the Router stalling behind a slow Terminator. The Terminator
	// runs in its own goroutine so this never deadlocks against the
	// Router's own consumption of r.events.
	r.closed <- ClosedSegment{Schema: seg.Schema, ID: seg.ID.String(), Cache: cache}
}
