package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSegmentTTL is the default wall-clock lifetime of a Segment
// before it requests expiration via its timer.
const DefaultSegmentTTL = 2 * time.Second

// Segment is a bounded in-memory buffer of records for one index. It
// owns an armed expiry timer from construction; once the timer fires
// (or the cache fills, whichever comes first) it sends itself an
// EventSegmentExpired on the sink channel and the Router detaches it.
type Segment struct {
	ID        uuid.UUID
	Schema    *Schema
	CreatedAt time.Time

	mu        sync.Mutex
	cache     *Cache
	expired   bool // guards against firing the capacity-expiry send twice
}

// NewSegment creates a Segment for schema and arms its expiry timer.
// sink is the same channel the Router consumes Events from; when the
// timer fires, the goroutine blocks until the expiry event is queued,
// so a full queue delays the expiry rather than losing it.
func NewSegment(schema *Schema, sink chan<- Event, ttl time.Duration, capacity int) *Segment {
	if ttl <= 0 {
		ttl = DefaultSegmentTTL
	}

	seg := &Segment{
		ID:        uuid.New(),
		Schema:    schema,
		CreatedAt: time.Now(),
		cache:     NewCache(capacity),
	}

	id := seg.ID
	name := schema.Name
	go func() {
		time.Sleep(ttl)
		sink <- SegmentExpiredEvent(name, id)
	}()

	return seg
}

// Add appends values to the segment's cache. Once the cache reaches its
// capacity, a best-effort EventSegmentExpired is sent on sink so the
// Router doesn't have to wait out the remainder of the TTL (§4.6's
// capacity-driven expiration, wired). Returns ErrSegmentWithoutCache if
// the segment has already been detached for closing.
func (s *Segment) Add(values Values, sink chan<- Event) error {
	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		return ErrSegmentWithoutCache
	}
	s.cache.Add(values)
	full := s.cache.Full()
	alreadyExpired := s.expired
	if full {
		s.expired = true
	}
	s.mu.Unlock()

	if full && !alreadyExpired {
		select {
		case sink <- SegmentExpiredEvent(s.Schema.Name, s.ID):
		default:
		}
	}
	return nil
}

// IsEmpty reports whether the segment holds zero records. Safe to call
// after Detach as well as before.
func (s *Segment) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache == nil || s.cache.IsEmpty()
}

// Detach removes the cache from the segment, returning it for the
// Terminator to close. A second Detach call (or an Add after Detach)
// sees a nil cache.
func (s *Segment) Detach() *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cache
	s.cache = nil
	return c
}
