// Package pipeline wires the Replication State Store, Source Client,
// Event Router, Terminator, Columnar Writer, and Metrics Collector into
// a single restartable unit and owns the reconnect loop that keeps it
// running across transient source failures.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/rs/zerolog"

	"github.com/jfoltran/intake/internal/columnar"
	"github.com/jfoltran/intake/internal/config"
	"github.com/jfoltran/intake/internal/ingest"
	"github.com/jfoltran/intake/internal/metrics"
	"github.com/jfoltran/intake/internal/source"
	_ "github.com/jfoltran/intake/internal/source/postgresql" // registers the "postgresql" driver
	"github.com/jfoltran/intake/internal/state"
)

// sinkCapacity is the Source→Router event queue depth.
const sinkCapacity = 10

// Pipeline owns the full ingestion chain for one configured source.
type Pipeline struct {
	cfg    *config.Config
	logger zerolog.Logger

	State     *state.Store
	Metrics   *metrics.Collector
	persister *metrics.StatePersister

	client source.Client
	writer *columnar.Writer

	router     *ingest.Router
	terminator *ingest.Terminator

	sink   chan ingest.Event
	closed chan ingest.ClosedSegment

	cancel context.CancelFunc
}

// New builds a Pipeline from cfg but does not yet connect to the
// source; call Run to start the reconnect loop.
func New(cfg *config.Config, logger zerolog.Logger) (*Pipeline, error) {
	st, err := state.Load(cfg.Source.State, cfg.Source.Slot)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load state: %w", err)
	}

	writer, err := columnar.NewWriter(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create columnar writer: %w", err)
	}

	mc := metrics.NewCollector(logger)

	client, err := source.New(source.Config{
		Driver:      cfg.Source.Driver,
		URL:         cfg.Source.URL,
		SlotName:    st.Slot(),
		Publication: cfg.Source.Publication,
		State:       st,
		OnLatestLSN: mc.RecordLatestLSN,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: build source client: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		State:   st,
		Metrics: mc,
		client:  client,
		writer:  writer,
		sink:    make(chan ingest.Event, sinkCapacity),
		closed:  make(chan ingest.ClosedSegment, sinkCapacity),
	}

	p.router = ingest.NewRouter(p.sink, p.closed, cfg.Segment.TTL, cfg.Segment.Capacity, logger)
	p.router.OnSegmentOpened(mc.SegmentOpened)

	p.terminator = ingest.NewTerminator(writer, logger,
		func(meta ingest.FileMetaData) {
			mc.SegmentClosed(meta.Index, meta.ID, meta.RowCount, meta.Bytes)
		},
		func(index, id string, err error) {
			mc.SegmentFailed(index, id)
			mc.RecordError(fmt.Errorf("%s/%s: %w", index, id, err))
		},
	)

	if persister, perr := metrics.NewStatePersister(mc, logger); perr == nil {
		p.persister = persister
	} else {
		p.logger.Warn().Err(perr).Msg("failed to start metrics state persister")
	}

	return p, nil
}

// Run starts the Router and Terminator goroutines and blocks,
// reconnecting the Source Client after every failure, until ctx is
// canceled. This mirrors the original's top-level reconnect loop: log
// the failure and try again, rather than giving up.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	defer p.cancel()

	if p.persister != nil {
		p.persister.Start()
	}

	go p.router.Run()
	go p.terminator.Run(p.closed)
	go p.pollAppliedLSN(ctx)

	p.Metrics.SetPhase("connecting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.logger.Info().Msg("connecting to source")
		p.Metrics.SetPhase("streaming")
		err := p.client.Connect(ctx, p.sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.Metrics.SetPhase("reconnecting")
		p.Metrics.RecordError(err)
		p.logger.Error().Err(err).Msg("source connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// pollAppliedLSN mirrors the persisted Replication State's applied
// position into the Metrics Collector every second, since the state
// store itself has no subscriber mechanism (it is written from the
// Source Client's receive loop, a different goroutine than the one
// reading it here).
func (p *Pipeline) pollAppliedLSN(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Metrics.RecordAppliedLSN(pglogrepl.LSN(p.State.LastApplied() - 1))
		}
	}
}

// Close stops the metrics persister and broadcast loop. The sink and
// closed channels are intentionally left open: closing them from here
// would race with a source goroutine still writing to sink after Run's
// ctx is canceled.
func (p *Pipeline) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.persister != nil {
		p.persister.Stop()
	}
	if p.Metrics != nil {
		p.Metrics.Close()
	}
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}
