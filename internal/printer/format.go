package printer

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes returns a human-readable byte size string using binary units.
// Examples: "0 B", "512 B", "1.5 KiB", "100 MiB".
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount returns a number with thousands separators.
func FormatCount(n int64) string { return humanize.Comma(n) }

// FormatDuration rounds a duration for humans.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.String()
	}
}

// TimeAgo returns a human-readable relative time string.
// Examples: "5 seconds ago", "2 minutes ago", "3 hours ago".
func TimeAgo(t time.Time) string {
	return humanize.RelTime(t, time.Now(), "ago", "from now")
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
