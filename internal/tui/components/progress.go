package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/intake/internal/metrics"
)

var (
	segOpenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	segClosedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	segFailedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// RenderSegments renders the segment lifecycle counters: how many are
// currently open (appending), how many have closed successfully, and
// how many failed to write (their rows are durably positioned in the
// Replication State but were lost from the columnar output — see
// internal/ingest.Terminator).
func RenderSegments(snap metrics.Snapshot, width int) string {
	return fmt.Sprintf("  Segments: %s open  %s closed  %s failed    Rows ingested: %d",
		segOpenStyle.Render(fmt.Sprintf("%d", snap.SegmentsOpen)),
		segClosedStyle.Render(fmt.Sprintf("%d", snap.SegmentsClosed)),
		segFailedStyle.Render(fmt.Sprintf("%d", snap.SegmentsFailed)),
		snap.TotalRows,
	)
}
