package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfoltran/intake/internal/metrics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last-known pipeline state",
	Long: `Status reads the persisted Metrics snapshot written by a running
(or most recently running) instance and prints it once. It does not
connect to the source itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := metrics.ReadStateFile()
		if err != nil {
			fmt.Println("No metrics state found. Is intake run running?")
			fmt.Printf("  (error: %v)\n", err)
			return nil
		}

		age := time.Since(snap.Timestamp)
		stale := ""
		if age > 10*time.Second {
			stale = fmt.Sprintf(" (stale — %s ago)", age.Truncate(time.Second))
		}

		fmt.Printf("Phase:        %s%s\n", snap.Phase, stale)
		fmt.Printf("Elapsed:      %.0fs\n", snap.ElapsedSec)
		fmt.Printf("Applied LSN:  %s\n", snap.AppliedLSN)
		fmt.Printf("Latest LSN:   %s\n", snap.LatestLSN)
		fmt.Printf("Lag:          %s\n", snap.LagFormatted)
		fmt.Printf("Segments:     %d open, %d closed, %d failed\n",
			snap.SegmentsOpen, snap.SegmentsClosed, snap.SegmentsFailed)
		fmt.Printf("Throughput:   %.0f rows/s, %.0f bytes/s\n", snap.RowsPerSec, snap.BytesPerSec)
		fmt.Printf("Total:        %d rows, %d bytes\n", snap.TotalRows, snap.TotalBytes)

		if snap.ErrorCount > 0 {
			fmt.Printf("Errors:       %d (last: %s)\n", snap.ErrorCount, snap.LastError)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
