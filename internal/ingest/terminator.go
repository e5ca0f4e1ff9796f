package ingest

import (
	"github.com/rs/zerolog"
)

// Writer is the capability the Terminator needs from the Columnar
// Writer: pivot a closed segment's cache into columns and materialize
// it as a file, returning metadata about what was written.
type Writer interface {
	Write(schema *Schema, id string, columns map[string]Column) (FileMetaData, error)
}

// FileMetaData describes a successfully closed segment's output file.
type FileMetaData struct {
	Index    string
	ID       string
	Path     string
	RowCount int64
	Bytes    int64
}

// Terminator takes ownership of detached segments from the Router and
// drives their close-to-file, skipping empty segments. It runs in its
// own goroutine reading from a dedicated buffered channel, so a slow
// file write blocks the Router's event loop only once that buffer is
// full.
type Terminator struct {
	logger  zerolog.Logger
	writer  Writer
	onClose func(FileMetaData)
	onError func(index, id string, err error)
}

// NewTerminator creates a Terminator that writes closed segments via w.
// onClose/onError, if non-nil, let the caller (e.g. the Metrics
// Collector) observe outcomes without the Terminator depending on it
// directly.
func NewTerminator(w Writer, logger zerolog.Logger, onClose func(FileMetaData), onError func(index, id string, err error)) *Terminator {
	return &Terminator{
		logger:  logger.With().Str("component", "terminator").Logger(),
		writer:  w,
		onClose: onClose,
		onError: onError,
	}
}

// Run drains closed until the channel is closed.
func (t *Terminator) Run(closed <-chan ClosedSegment) {
	for cs := range closed {
		t.terminate(cs)
	}
}

func (t *Terminator) terminate(cs ClosedSegment) {
	if cs.Cache == nil || cs.Cache.IsEmpty() {
		t.logger.Debug().Str("index", cs.Schema.Name).Str("segment", cs.ID).Msg("empty segment, dropping")
		return
	}

	columns, err := cs.Cache.ToColumns(cs.Schema)
	if err != nil {
		t.logger.Error().Err(err).Str("index", cs.Schema.Name).Str("segment", cs.ID).Msg("pivot to columns failed, segment lost")
		if t.onError != nil {
			t.onError(cs.Schema.Name, cs.ID, err)
		}
		return
	}

	meta, err := t.writer.Write(cs.Schema, cs.ID, columns)
	meta.Index = cs.Schema.Name
	meta.ID = cs.ID
	if err != nil {
		// The WAL position for these rows was already persisted by the
		// Replication State Store by the time the segment reached here
		// (state.Done runs at enqueue time, not at segment close), so
		// this loss does not corrupt replication bookkeeping — it is
		// the documented at-least-once gap: these rows are only
		// recovered if the source happens to be replayed again for
		// another reason, not automatically.
		t.logger.Error().Err(err).Str("index", cs.Schema.Name).Str("segment", cs.ID).Msg("close failed, segment lost")
		if t.onError != nil {
			t.onError(cs.Schema.Name, cs.ID, err)
		}
		return
	}

	t.logger.Info().Str("index", cs.Schema.Name).Str("segment", cs.ID).Int64("rows", meta.RowCount).Str("path", meta.Path).Msg("segment closed")
	if t.onClose != nil {
		t.onClose(meta)
	}
}
