// Package interval parses bar intervals such as "15m", "1h" or "1d".
package interval

import (
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses "1m", "15m", "1h", "4h", "1d", "1w" into a
// time.Duration. Returns (0, false) on invalid input.
func ParseDuration(interval string) (time.Duration, bool) {
	n, unit, ok := split(interval)
	if !ok {
		return 0, false
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Normalize returns the canonical lower-case form, e.g. "1D" -> "1d".
func Normalize(interval string) (string, bool) {
	n, unit, ok := split(interval)
	if !ok {
		return "", false
	}
	switch unit {
	case 'm', 'h', 'd', 'w':
		return strconv.Itoa(n) + string(unit), true
	}
	return "", false
}

// IsDaily reports whether the interval is a whole number of days or weeks.
func IsDaily(interval string) bool {
	d, ok := ParseDuration(interval)
	return ok && d >= 24*time.Hour && d%(24*time.Hour) == 0
}

func split(interval string) (int, byte, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, 0, false
	}
	return n, unit, true
}
