package scanner

import (
	"strings"
	"time"
)

// Window is one reminder horizon: appointments occurring lead time from now,
// give or take the tolerance. The tolerance absorbs scan interval jitter so a
// sweep that runs a little late still catches its candidates.
type Window struct {
	Lead      time.Duration
	Tolerance time.Duration
}

// Bounds returns the inclusive [from, to] occurrence range the window covers
// at the given instant.
func (w Window) Bounds(now time.Time) (time.Time, time.Time) {
	center := now.Add(w.Lead)
	return center.Add(-w.Tolerance), center.Add(w.Tolerance)
}

// ParseLeads parses a comma-separated list of durations such as "24h,2h".
// Invalid or non-positive entries are skipped; an empty result means the
// caller should fall back to its defaults.
func ParseLeads(raw string) []time.Duration {
	var leads []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil || d <= 0 {
			continue
		}
		leads = append(leads, d)
	}
	return leads
}
