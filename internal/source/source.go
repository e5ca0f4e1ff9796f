// Package source declares the capability contract the ingestion pipeline
// expects of whatever system it streams row mutations from, and a small
// registry that resolves a driver name from configuration to a
// constructor. Today there is exactly one driver ("postgresql"); the
// registry exists so adding a second one is a one-line addition, not a
// rewrite of cmd/intake's wiring.
package source

import (
	"context"
	"fmt"

	"github.com/jackc/pglogrepl"

	"github.com/jfoltran/intake/internal/ingest"
	"github.com/jfoltran/intake/internal/state"
)

// Client streams row mutations onto sink until ctx is canceled or a
// connection-level failure occurs, in which case it returns a non-nil
// error. Callers are expected to reconnect by calling Connect again.
type Client interface {
	Connect(ctx context.Context, sink chan<- ingest.Event) error
}

// Config carries the subset of the source configuration block that is
// driver-agnostic, plus the shared state store and callbacks a driver
// reports through.
type Config struct {
	Driver      string
	URL         string
	SlotName    string
	Publication string
	State       *state.Store

	// OnLatestLSN, if set, is invoked with the server-reported write
	// position whenever the driver observes one (e.g. on a keepalive
	// frame), so the Metrics Collector's lag calculation has a
	// denominator independent of the locally persisted state.
	OnLatestLSN func(pglogrepl.LSN)
}

// Factory builds a Client from Config.
type Factory func(Config) (Client, error)

var registry = map[string]Factory{}

// Register adds a driver constructor under name. Called from each
// driver sub-package's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// New resolves cfg.Driver through the registry and constructs a Client.
func New(cfg Config) (Client, error) {
	f, ok := registry[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("source: unknown driver %q", cfg.Driver)
	}
	return f(cfg)
}
