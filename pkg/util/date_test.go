package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2026-08-25T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2026, 8, 25, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeUnixMillis(t *testing.T) {
    base := time.Date(2026, 8, 25, 10, 10, 10, 0, time.UTC)
    got, ok := ParseTime(strconv.FormatInt(base.UnixMilli(), 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != base.Unix() {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2026, 8, 25, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestClampRange(t *testing.T) {
    to := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
    from := to.Add(-48 * time.Hour)

    gotFrom, gotTo := ClampRange(from, to, 24*time.Hour)
    if !gotTo.Equal(to) {
        t.Fatalf("to should not move, got %v", gotTo)
    }
    if gotTo.Sub(gotFrom) != 24*time.Hour {
        t.Fatalf("expected clamped window, got %v", gotTo.Sub(gotFrom))
    }

    // swapped bounds are reordered
    gotFrom, gotTo = ClampRange(to, from, 0)
    if gotFrom.After(gotTo) {
        t.Fatalf("expected ordered range")
    }
}
