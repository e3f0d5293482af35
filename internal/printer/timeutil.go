package printer

import (
	"fmt"
	"math"
	"time"
)

// TimeAgo returns a human-readable relative time string.
// Examples: "5 seconds ago", "2 minutes ago", "3 hours ago".
func TimeAgo(t time.Time) string {
	return timeAgoFrom(time.Now(), t)
}

func timeAgoFrom(now, t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	diff := now.Sub(t)
	if diff < 0 {
		return "in the future"
	}

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return plural(int(diff.Seconds()), "second")
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	default:
		return plural(int(diff.Hours()/24), "day")
	}
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatDate returns the UTC date of a time, "-" for zero times.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

// FormatDurationMinutes returns a job duration rounded to minutes.
// Examples: "0m", "2m", "61m".
func FormatDurationMinutes(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "0m"
	}
	return fmt.Sprintf("%dm", int(math.Round(seconds/60)))
}
