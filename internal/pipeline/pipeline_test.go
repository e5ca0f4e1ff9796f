package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfoltran/intake/internal/config"
	"github.com/jfoltran/intake/internal/ingest"
	"github.com/jfoltran/intake/internal/pipeline"
	"github.com/jfoltran/intake/internal/source"
)

// fakeClient emits one insert and then fails on its first call, and
// blocks until ctx is done on every later call, so the test can observe
// both a processed event and the reconnect loop without a real source.
type fakeClient struct {
	calls int
}

func (c *fakeClient) Connect(ctx context.Context, sink chan<- ingest.Event) error {
	c.calls++
	if c.calls == 1 {
		sink <- ingest.InsertEvent("orders", ingest.Values{"id": ingest.Int64Value(1)})
		return errors.New("fake: connection dropped")
	}
	<-ctx.Done()
	return ctx.Err()
}

func init() {
	source.Register("fake", func(cfg source.Config) (source.Client, error) {
		return &fakeClient{}, nil
	})
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Source: config.SourceConfig{
			Driver: "fake",
			URL:    "fake://test",
			State:  dir + "/state.json",
			Slot:   "test_slot",
		},
		Segment: config.SegmentConfig{TTL: 50 * time.Millisecond, Capacity: 10},
		Output:  config.OutputConfig{Dir: dir},
	}
}

func TestPipelineRunProcessesEventsAndReconnects(t *testing.T) {
	cfg := newTestConfig(t)
	p, err := pipeline.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err = p.Run(ctx)
	if ctx.Err() == nil {
		// Run blocks until ctx is done; a nil ctx.Err() would mean it
		// returned early for an unexpected reason.
		t.Fatalf("Run() returned %v before ctx was done", err)
	}

	snap := p.Metrics.Snapshot()
	if snap.Phase == "" {
		t.Error("expected a non-empty phase after Run")
	}
	if snap.ErrorCount < 1 {
		t.Errorf("ErrorCount = %d, want the dropped connection recorded before reconnecting", snap.ErrorCount)
	}
	if snap.SegmentsClosed != 1 {
		t.Errorf("SegmentsClosed = %d, want 1 (the emitted insert written out)", snap.SegmentsClosed)
	}
}

func TestPipelineConfig(t *testing.T) {
	cfg := newTestConfig(t)
	p, err := pipeline.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	if p.Config() != cfg {
		t.Error("Config() did not return the same *config.Config passed to New")
	}
}
