// shared/timeutil/timeutil.go
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration constants in milliseconds.
const (
	Second int64 = 1000
	Minute       = 60 * Second
	Hour         = 60 * Minute
	Day          = 24 * Hour
	Week         = 7 * Day
	Month        = 30 * Day
	Year         = 365 * Day
)

// Permanent is the sentinel returned for "permanent" input and for invalid
// duration strings.
const Permanent int64 = -1

var durationPattern = regexp.MustCompile(`(?i)^(?:([0-9]+)y)?(?:([0-9]+)mo)?(?:([0-9]+)w)?(?:([0-9]+)d)?(?:([0-9]+)h)?(?:([0-9]+)m)?(?:([0-9]+)s)?$`)

// ParseDuration parses a human-readable duration like "7d", "2h30m" or
// "1y2mo" into milliseconds. "permanent" and "perm" parse to the Permanent
// sentinel, as does any input that yields no positive duration.
func ParseDuration(input string) int64 {
	if input == "" {
		return Permanent
	}
	if strings.EqualFold(input, "permanent") || strings.EqualFold(input, "perm") {
		return Permanent
	}

	groups := durationPattern.FindStringSubmatch(input)
	if groups == nil {
		return Permanent
	}

	units := []int64{Year, Month, Week, Day, Hour, Minute, Second}
	var duration int64
	for i, unit := range units {
		part := groups[i+1]
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return Permanent
		}
		duration += n * unit
	}

	if duration <= 0 {
		return Permanent
	}
	return duration
}

type unit struct {
	ms       int64
	singular string
	short    string
}

var longUnits = []unit{
	{Year, "year", "y"},
	{Month, "month", "mo"},
	{Week, "week", "w"},
	{Day, "day", "d"},
	{Hour, "hour", "h"},
	{Minute, "minute", "m"},
	{Second, "second", "s"},
}

// FormatDuration renders a millisecond duration as readable text like
// "7 days, 12 hours". Negative durations render as "Permanent" and zero as
// "Instant". Small units are dropped once the duration spans large ones,
// so formatting is intentionally lossy.
func FormatDuration(milliseconds int64) string {
	if milliseconds < 0 {
		return "Permanent"
	}
	if milliseconds == 0 {
		return "Instant"
	}

	var sb strings.Builder
	remaining := milliseconds
	counts := make([]int64, len(longUnits))
	for i, u := range longUnits {
		counts[i] = remaining / u.ms
		remaining %= u.ms
	}

	for i, u := range longUnits {
		count := counts[i]
		if count == 0 {
			continue
		}
		// Skip minutes when the duration spans weeks or more, and seconds
		// when it spans days or more.
		if u.ms == Minute && (counts[0] > 0 || counts[1] > 0 || counts[2] > 0) {
			continue
		}
		if u.ms == Second && (counts[0] > 0 || counts[1] > 0 || counts[2] > 0 || counts[3] > 0) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(count, 10))
		sb.WriteString(" ")
		sb.WriteString(u.singular)
		if count != 1 {
			sb.WriteString("s")
		}
	}

	if sb.Len() == 0 {
		return "Less than a second"
	}
	return sb.String()
}

// FormatDurationShort renders a millisecond duration compactly, like
// "7d 12h". Negative durations render as "Perm".
func FormatDurationShort(milliseconds int64) string {
	if milliseconds < 0 {
		return "Perm"
	}
	if milliseconds == 0 {
		return "0s"
	}

	days := milliseconds / Day
	milliseconds %= Day
	hours := milliseconds / Hour
	milliseconds %= Hour
	minutes := milliseconds / Minute
	milliseconds %= Minute
	seconds := milliseconds / Second

	var sb strings.Builder
	if days > 0 {
		fmt.Fprintf(&sb, "%dd ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&sb, "%dh ", hours)
	}
	if minutes > 0 && days == 0 {
		fmt.Fprintf(&sb, "%dm ", minutes)
	}
	if seconds > 0 && days == 0 && hours == 0 {
		fmt.Fprintf(&sb, "%ds", seconds)
	}
	return strings.TrimSpace(sb.String())
}

// FormatDate renders a millisecond timestamp as "2006-01-02 15:04:05".
// Negative timestamps (the permanent sentinel) render as "Never".
func FormatDate(timestampMs int64) string {
	if timestampMs < 0 {
		return "Never"
	}
	return time.UnixMilli(timestampMs).Format("2006-01-02 15:04:05")
}

// Now returns the current time in milliseconds since the epoch.
func Now() int64 {
	return time.Now().UnixMilli()
}
