package util

import (
    "strconv"
    "time"
)

var timeLayouts = []string{time.RFC3339, time.RFC3339Nano}

// ParseTime accepts RFC3339 (with or without sub-second precision), unix
// seconds, and unix milliseconds. Returns (t, true) when one matched.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    for _, layout := range timeLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t, true
        }
    }
    ts, err := strconv.ParseInt(s, 10, 64)
    if err != nil || ts <= 0 {
        return time.Time{}, false
    }
    // 13-digit stamps are milliseconds
    if ts > 1e12 {
        return time.UnixMilli(ts), true
    }
    return time.Unix(ts, 0), true
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    t, ok := ParseTime(s)
    if !ok {
        return def
    }
    return t
}

// ClampRange orders from/to and caps the window at max (0 = no cap).
func ClampRange(from, to time.Time, max time.Duration) (time.Time, time.Time) {
    if to.Before(from) {
        from, to = to, from
    }
    if max > 0 && to.Sub(from) > max {
        from = to.Add(-max)
    }
    return from, to
}
