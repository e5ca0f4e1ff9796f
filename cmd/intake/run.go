package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jfoltran/intake/internal/pipeline"
	"github.com/jfoltran/intake/internal/server"
)

var runHTTPAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the ingestion pipeline",
	Long: `Run connects to the configured source, streams row mutations onto
the Event Router, and writes closed segments as Parquet files. It
reconnects automatically after a transient source failure; Ctrl-C
shuts down cleanly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pipeline.New(cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := runHTTPAddr
		if addr == "" {
			addr = cfg.HTTP.Addr
		}
		if addr != "" {
			srv := server.New(p.Metrics, cfg, logger)
			srv.StartBackground(ctx, addr)
			logger.Info().Str("addr", addr).Msg("status server listening")
		}

		logger.Info().Msg("starting ingestion pipeline")
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runHTTPAddr, "http-addr", "", "Address for the status server (overrides http.addr in config)")
	rootCmd.AddCommand(runCmd)
}
