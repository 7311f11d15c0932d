package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// PerDomain builds a limitFor function from a fixed domain->interval map,
// falling back to fallback for any domain not present.
func PerDomain(intervals map[string]time.Duration, fallback time.Duration) func(domain string) rate.Limit {
	return func(domain string) rate.Limit {
		if d, ok := intervals[domain]; ok {
			return rate.Every(d)
		}
		return rate.Every(fallback)
	}
}
