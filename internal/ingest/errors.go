package ingest

import "errors"

// ErrSegmentWithoutCache signals an attempt to append to a segment whose
// cache has already been detached for closing. The Router treats it as
// recoverable: it opens a fresh segment for that index and appends the
// same record to it.
var ErrSegmentWithoutCache = errors.New("ingest: segment has no cache (already closed)")

// ParseError wraps a malformed mutation payload. A ParseError aborts
// decoding of the current WAL frame only; the caller must not advance
// replication state for that frame.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "ingest: parse error: " + e.Reason + ": " + e.Err.Error()
	}
	return "ingest: parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaViolationError is raised when a record's shape diverges from the
// schema fixed at segment open — either a column absent from the schema
// or a value whose Kind disagrees with the schema's declared kind for
// that column. It aborts the whole segment close.
type SchemaViolationError struct {
	Index  string
	Column string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return "ingest: schema violation in index " + e.Index + ", column " + e.Column + ": " + e.Reason
}
