package analytics

import "time"

// Clock supplies "now" to the pipeline.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Used for backfills and reruns.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }
