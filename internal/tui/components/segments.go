package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/intake/internal/metrics"
)

var (
	segHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	segOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	segErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// RenderSegmentHistory renders the most recent closed segments, newest
// first, capped at maxRows.
func RenderSegmentHistory(segs []metrics.SegmentInfo, maxRows int) string {
	if len(segs) == 0 {
		return "  No segments closed yet"
	}

	var b strings.Builder
	header := fmt.Sprintf("  %-20s %-38s %-10s %-10s %s", "Index", "Segment", "Rows", "Bytes", "Closed")
	b.WriteString(segHeaderStyle.Render(header))
	b.WriteByte('\n')

	shown := len(segs)
	if maxRows > 0 && shown > maxRows {
		shown = maxRows
	}

	for i := 0; i < shown; i++ {
		s := segs[len(segs)-1-i]
		status := segOKStyle.Render(fmt.Sprintf("%d rows", s.Rows))
		if s.Failed {
			status = segErrStyle.Render("failed")
		}
		line := fmt.Sprintf("  %-20s %-38s %-10s %-10d %s",
			s.Index, s.ID, status, s.Bytes, s.ClosedAt.Format(time.TimeOnly))
		b.WriteString(line)
		if i < shown-1 {
			b.WriteByte('\n')
		}
	}

	return b.String()
}
