package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/rs/zerolog"

	"github.com/jfoltran/intake/pkg/lsn"
)

// Snapshot is the complete metrics state at a point in time, as exposed
// to the Status Server and the watch TUI.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Phase      string    `json:"phase"`
	ElapsedSec float64   `json:"elapsed_sec"`

	// WAL position tracking.
	AppliedLSN  string `json:"applied_lsn"`
	LatestLSN   string `json:"latest_lsn"`
	LagBytes    uint64 `json:"lag_bytes"`
	LagFormatted string `json:"lag_formatted"`

	// Segment lifecycle.
	SegmentsOpen   int `json:"segments_open"`
	SegmentsClosed int `json:"segments_closed"`
	SegmentsFailed int `json:"segments_failed"`

	// Throughput.
	RowsPerSec  float64 `json:"rows_per_sec"`
	BytesPerSec float64 `json:"bytes_per_sec"`
	TotalRows   int64   `json:"total_rows"`
	TotalBytes  int64   `json:"total_bytes"`

	// Errors.
	ErrorCount int    `json:"error_count"`
	LastError  string `json:"last_error,omitempty"`
}

// LogEntry represents a log line captured for the watch TUI.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// SegmentInfo summarizes one closed segment for the watch TUI's recent
// activity panel.
type SegmentInfo struct {
	Index    string    `json:"index"`
	ID       string    `json:"id"`
	Rows     int64     `json:"rows"`
	Bytes    int64     `json:"bytes"`
	Failed   bool      `json:"failed"`
	ClosedAt time.Time `json:"closed_at"`
}

// Collector aggregates pipeline metrics and provides snapshots for
// consumption by the Status Server and the watch TUI.
type Collector struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	phase     string
	startedAt time.Time

	appliedLSN pglogrepl.LSN
	latestLSN  pglogrepl.LSN // server-reported write position, from keepalive

	segmentsOpen   atomic.Int64
	segmentsClosed atomic.Int64
	segmentsFailed atomic.Int64

	totalRows  atomic.Int64
	totalBytes atomic.Int64

	errorCount atomic.Int64
	lastError  atomic.Value // string

	rowWindow  *slidingWindow
	byteWindow *slidingWindow

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}

	logMu  sync.Mutex
	logs   []LogEntry
	logCap int

	segMu  sync.Mutex
	segs   []SegmentInfo
	segCap int

	done chan struct{}
}

// NewCollector creates a new Collector and starts its broadcast loop.
func NewCollector(logger zerolog.Logger) *Collector {
	c := &Collector{
		logger:      logger.With().Str("component", "metrics").Logger(),
		subscribers: make(map[chan Snapshot]struct{}),
		rowWindow:   newSlidingWindow(60 * time.Second),
		byteWindow:  newSlidingWindow(60 * time.Second),
		logs:        make([]LogEntry, 0, 500),
		logCap:      500,
		segs:        make([]SegmentInfo, 0, 50),
		segCap:      50,
		done:        make(chan struct{}),
	}
	go c.broadcastLoop()
	return c
}

// SetPhase updates the current pipeline phase ("connecting",
// "streaming", "reconnecting", ...).
func (c *Collector) SetPhase(phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phase
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
}

// SegmentOpened increments the open-segment gauge.
func (c *Collector) SegmentOpened() {
	c.segmentsOpen.Add(1)
}

// SegmentClosed decrements the open-segment gauge, increments the
// closed counter, records the rows/bytes written by the Columnar
// Writer for throughput, and appends to the recent-segments ring.
func (c *Collector) SegmentClosed(index, id string, rows, bytes int64) {
	c.segmentsOpen.Add(-1)
	c.segmentsClosed.Add(1)
	c.totalRows.Add(rows)
	c.totalBytes.Add(bytes)
	now := time.Now()
	c.rowWindow.Add(now, float64(rows))
	c.byteWindow.Add(now, float64(bytes))
	c.addSegment(SegmentInfo{Index: index, ID: id, Rows: rows, Bytes: bytes, ClosedAt: now})
}

// SegmentFailed decrements the open-segment gauge and increments the
// failed counter (the columnar write or pivot for this segment failed;
// its WAL position was already durably persisted, so spec-level this is
// an accepted at-least-once loss, see internal/ingest.Terminator).
func (c *Collector) SegmentFailed(index, id string) {
	c.segmentsOpen.Add(-1)
	c.segmentsFailed.Add(1)
	c.addSegment(SegmentInfo{Index: index, ID: id, Failed: true, ClosedAt: time.Now()})
}

func (c *Collector) addSegment(info SegmentInfo) {
	c.segMu.Lock()
	defer c.segMu.Unlock()
	if len(c.segs) >= c.segCap {
		c.segs = c.segs[1:]
	}
	c.segs = append(c.segs, info)
}

// Segments returns a copy of the recent closed-segment history, most
// recent last.
func (c *Collector) Segments() []SegmentInfo {
	c.segMu.Lock()
	defer c.segMu.Unlock()
	out := make([]SegmentInfo, len(c.segs))
	copy(out, c.segs)
	return out
}

// ApplySnapshot overwrites the Collector's state from a Snapshot
// fetched from elsewhere (the status server or the persisted metrics
// file), so the watch TUI can render a remote pipeline's progress
// through the same Collector/Subscribe machinery it uses for a local
// one. Only ever called from the watch command's polling loop, never
// from a pipeline's own accumulation path.
func (c *Collector) ApplySnapshot(snap Snapshot) {
	c.mu.Lock()
	c.phase = snap.Phase
	if c.startedAt.IsZero() {
		c.startedAt = snap.Timestamp.Add(-time.Duration(snap.ElapsedSec * float64(time.Second)))
	}
	if lsn, err := pglogrepl.ParseLSN(snap.AppliedLSN); err == nil {
		c.appliedLSN = lsn
	}
	if lsn, err := pglogrepl.ParseLSN(snap.LatestLSN); err == nil {
		c.latestLSN = lsn
	}
	c.mu.Unlock()

	c.segmentsOpen.Store(int64(snap.SegmentsOpen))
	c.segmentsClosed.Store(int64(snap.SegmentsClosed))
	c.segmentsFailed.Store(int64(snap.SegmentsFailed))
	c.totalRows.Store(snap.TotalRows)
	c.totalBytes.Store(snap.TotalBytes)
	c.errorCount.Store(int64(snap.ErrorCount))
	if snap.LastError != "" {
		c.lastError.Store(snap.LastError)
	}
}

// RecordAppliedLSN records the WAL position reflected in the most
// recently persisted Replication State.
func (c *Collector) RecordAppliedLSN(l pglogrepl.LSN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appliedLSN = l
}

// RecordLatestLSN updates the server-reported latest LSN (from a
// keepalive frame) for lag calculation.
func (c *Collector) RecordLatestLSN(l pglogrepl.LSN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestLSN = l
}

// RecordError increments the error count and stores the last error
// message.
func (c *Collector) RecordError(err error) {
	c.errorCount.Add(1)
	if err != nil {
		c.lastError.Store(err.Error())
	}
}

// AddLog appends a log entry to the ring buffer, dropping the oldest
// quarter once full.
func (c *Collector) AddLog(entry LogEntry) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	if len(c.logs) >= c.logCap {
		n := c.logCap / 4
		copy(c.logs, c.logs[n:])
		c.logs = c.logs[:len(c.logs)-n]
	}
	c.logs = append(c.logs, entry)
}

// Logs returns a copy of recent log entries.
func (c *Collector) Logs() []LogEntry {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// Snapshot returns the current metrics state (thread-safe).
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var elapsed float64
	if !c.startedAt.IsZero() {
		elapsed = now.Sub(c.startedAt).Seconds()
	}

	lagBytes := lsn.Lag(c.appliedLSN, c.latestLSN)

	var lastErr string
	if v := c.lastError.Load(); v != nil {
		lastErr = v.(string)
	}

	return Snapshot{
		Timestamp:      now,
		Phase:          c.phase,
		ElapsedSec:     elapsed,
		AppliedLSN:     c.appliedLSN.String(),
		LatestLSN:      c.latestLSN.String(),
		LagBytes:       lagBytes,
		LagFormatted:   lsn.FormatLag(lagBytes, 0),
		SegmentsOpen:   int(c.segmentsOpen.Load()),
		SegmentsClosed: int(c.segmentsClosed.Load()),
		SegmentsFailed: int(c.segmentsFailed.Load()),
		RowsPerSec:     c.rowWindow.Rate(),
		BytesPerSec:    c.byteWindow.Rate(),
		TotalRows:      c.totalRows.Load(),
		TotalBytes:     c.totalBytes.Load(),
		ErrorCount:     int(c.errorCount.Load()),
		LastError:      lastErr,
	}
}

// Subscribe returns a channel that receives periodic Snapshot updates.
func (c *Collector) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 4)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel.
func (c *Collector) Unsubscribe(ch chan Snapshot) {
	c.subMu.Lock()
	delete(c.subscribers, ch)
	c.subMu.Unlock()
}

// Close stops the broadcast loop.
func (c *Collector) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Collector) broadcastLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			snap := c.Snapshot()
			c.subMu.Lock()
			for ch := range c.subscribers {
				select {
				case ch <- snap:
				default:
					// Subscriber too slow, skip.
				}
			}
			c.subMu.Unlock()
		}
	}
}

// --- Sliding window for throughput calculation ---

type windowEntry struct {
	time  time.Time
	value float64
}

type slidingWindow struct {
	mu      sync.Mutex
	entries []windowEntry
	window  time.Duration
}

func newSlidingWindow(d time.Duration) *slidingWindow {
	return &slidingWindow{
		entries: make([]windowEntry, 0, 128),
		window:  d,
	}
}

func (w *slidingWindow) Add(t time.Time, val float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, windowEntry{time: t, value: val})
	w.evict(t)
}

func (w *slidingWindow) Rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.evict(now)
	if len(w.entries) == 0 {
		return 0
	}
	var total float64
	for _, e := range w.entries {
		total += e.value
	}
	elapsed := now.Sub(w.entries[0].time).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	return total / elapsed
}

func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.entries) && w.entries[i].time.Before(cutoff) {
		i++
	}
	if i > 0 {
		copy(w.entries, w.entries[i:])
		w.entries = w.entries[:len(w.entries)-i]
	}
}
