package http

import (
    "time"

    xutil "FinFuse/pkg/util"
)

// ParseTimeDefault re-exports the util parser so handlers pull request
// plumbing from one package.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
