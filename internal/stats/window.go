// Package stats implements the share aggregation engine for the pool
// dashboard: time-bucketed rollups of raw share slices into per-worker and
// pool-wide statistics, online-status merging, and the cache layer in front
// of it all.
package stats

import "time"

// Granularity is a time-bucket width at which share slices are stored.
type Granularity int

const (
	// Minute buckets hold the freshest data and feed hashrate estimates.
	Minute Granularity = iota
	// FiveMinute buckets are the first compression tier.
	FiveMinute
	// Hour buckets hold long-horizon history.
	Hour
)

// String returns the storage tag for the granularity.
func (g Granularity) String() string {
	switch g {
	case Minute:
		return "minute"
	case FiveMinute:
		return "five_minute"
	case Hour:
		return "hour"
	default:
		return "unknown"
	}
}

// Bucket returns the bucket width.
func (g Granularity) Bucket() time.Duration {
	switch g {
	case Minute:
		return time.Minute
	case FiveMinute:
		return 5 * time.Minute
	default:
		return time.Hour
	}
}

// Floor rounds t down to the start of its enclosing bucket. Flooring an
// already-floored timestamp is a no-op.
func (g Granularity) Floor(t time.Time) time.Time {
	return t.UTC().Truncate(g.Bucket())
}

// Window returns the lookback span used when fetching "current" data at this
// granularity. Coarser slices cover longer horizons, so they look back
// further.
func (g Granularity) Window() time.Duration {
	switch g {
	case Minute:
		return time.Hour
	case FiveMinute:
		return 12 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Coarser returns the next compression tier up. Hour is the top tier and
// returns itself.
func (g Granularity) Coarser() Granularity {
	switch g {
	case Minute:
		return FiveMinute
	case FiveMinute:
		return Hour
	default:
		return Hour
	}
}
