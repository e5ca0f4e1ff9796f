package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfoltran/intake/internal/metrics"
	"github.com/jfoltran/intake/internal/tui"
)

var watchAPIAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Launch the terminal dashboard",
	Long: `Watch starts a Bubble Tea terminal dashboard. If --api-addr is given
it polls a running instance's status server; otherwise it falls back to
the locally persisted metrics snapshot file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		collector := metrics.NewCollector(logger)
		defer collector.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if watchAPIAddr != "" {
			go pollRemote(ctx, watchAPIAddr, collector)
		} else {
			go pollLocalFile(ctx, collector)
		}

		return tui.Run(collector)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAPIAddr, "api-addr", "", "Address of a running intake status server (e.g. http://localhost:7654); falls back to the local metrics file when empty")
	rootCmd.AddCommand(watchCmd)
}

func pollRemote(ctx context.Context, addr string, collector *metrics.Collector) {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := fetchStatus(client, addr)
			if err != nil {
				collector.RecordError(fmt.Errorf("api fetch: %w", err))
				continue
			}
			collector.ApplySnapshot(*snap)
		}
	}
}

func pollLocalFile(ctx context.Context, collector *metrics.Collector) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := metrics.ReadStateFile()
			if err != nil {
				collector.RecordError(fmt.Errorf("read state file: %w", err))
				continue
			}
			collector.ApplySnapshot(*snap)
		}
	}
}

func fetchStatus(client *http.Client, addr string) (*metrics.Snapshot, error) {
	resp, err := client.Get(addr + "/api/v1/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var snap metrics.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
