// Package stats summarizes the focus log for UI consumers.
package stats

import (
	"context"
	"time"

	"github.com/loykin/focuspilot/internal/store"
)

const Window = 24 * time.Hour

type Stats struct {
	TotalFocusedMs   int64 `json:"totalFocusedMs"`
	DistractionCount int   `json:"distractionCount"`
	Samples          int   `json:"samples"`
}

// Summarize totals productive time and counts non-productive records.
func Summarize(recs []store.Record) Stats {
	s := Stats{Samples: len(recs)}
	for _, r := range recs {
		if r.Productive {
			s.TotalFocusedMs += r.DurationMs
		} else {
			s.DistractionCount++
		}
	}
	return s
}

type Aggregator struct {
	log store.Log
	now func() time.Time
}

func NewAggregator(log store.Log, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{log: log, now: now}
}

// Get reads the last 24 hours of records. It never writes.
func (a *Aggregator) Get(ctx context.Context) (Stats, error) {
	recs, err := a.log.Query(ctx, a.now().Add(-Window))
	if err != nil {
		return Stats{}, err
	}
	return Summarize(recs), nil
}
