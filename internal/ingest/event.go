package ingest

import "github.com/google/uuid"

// EventKind tags the Event union. SegmentExpired is synthetic: it is
// produced by a Segment's own expiry timer (or by Cache.Full() firing
// early), never decoded from the wire.
type EventKind int

const (
	EventInsert EventKind = iota
	EventUpdate
	EventDelete
	EventSegmentExpired
)

func (k EventKind) String() string {
	switch k {
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	case EventSegmentExpired:
		return "segment_expired"
	default:
		return "unknown"
	}
}

// Event is the tagged union flowing from the Source Client (and from
// Segment expiry timers) into the Router. Index is the logical
// destination (roughly, a source table); SegmentID is only meaningful
// for EventSegmentExpired.
type Event struct {
	Kind      EventKind
	Index     string
	Values    Values
	SegmentID uuid.UUID
}

func InsertEvent(index string, values Values) Event {
	return Event{Kind: EventInsert, Index: index, Values: values}
}

func UpdateEvent(index string) Event {
	return Event{Kind: EventUpdate, Index: index}
}

func DeleteEvent(index string) Event {
	return Event{Kind: EventDelete, Index: index}
}

func SegmentExpiredEvent(index string, id uuid.UUID) Event {
	return Event{Kind: EventSegmentExpired, Index: index, SegmentID: id}
}
