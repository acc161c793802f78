package status

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// renderText builds the human-readable {id}.stats body.
func renderText(st Status) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Worker ID: %s\n", st.WorkerID)
	fmt.Fprintf(&b, "Status: %s\n", st.State)
	fmt.Fprintf(&b, "PID: %d\n", st.PID)
	fmt.Fprintf(&b, "Uptime: %s\n", FormatDuration(st.Uptime()))
	fmt.Fprintf(&b, "Total Cycles: %d\n", st.CyclesCompleted)
	if st.LastCycleAt != nil {
		fmt.Fprintf(&b, "Last Cycle: %s\n", st.LastCycleAt.Format("2006-01-02 15:04:05"))
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "Last Error: %s\n", st.LastError)
	}

	if len(st.Operations) > 0 {
		b.WriteString("\nOperations:\n")
		names := make([]string, 0, len(st.Operations))
		for name := range st.Operations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			op := st.Operations[name]
			fmt.Fprintf(&b, "  %s: count=%d failures=%d avg=%s rate=%.2f/s\n",
				name, op.Count, op.Failures,
				FormatDuration(time.Duration(op.AvgDurationSeconds*float64(time.Second))),
				op.RateOpsPerSec)
		}
	}

	fmt.Fprintf(&b, "\nLast Updated: %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05"))

	return b.String()
}

// FormatDuration renders a duration the way an operator reads one: "12.3s",
// "5m 43s", "1h 23m 45s", with a day component for long uptimes.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := d.Seconds()

	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		minutes := int(seconds) / 60
		return fmt.Sprintf("%dm %.0fs", minutes, seconds-float64(minutes*60))
	case seconds < 86400:
		hours := int(seconds) / 3600
		minutes := (int(seconds) % 3600) / 60
		return fmt.Sprintf("%dh %dm %.0fs", hours, minutes, seconds-float64(hours*3600+minutes*60))
	default:
		days := int(seconds) / 86400
		hours := (int(seconds) % 86400) / 3600
		minutes := (int(seconds) % 3600) / 60
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
}
