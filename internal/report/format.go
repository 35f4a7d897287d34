package report

import "fmt"

// FormatSeconds renders a duration as HH:MM:SS for consistent report output.
// Negative inputs clamp to zero.
func FormatSeconds(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
