package supers

import (
	"sync/atomic"
	"time"

	"github.com/iwanowww/supers/table"
)

// MetricsCollector receives build-path events. Implement it to integrate
// with monitoring systems.
//
// The subtype-check path deliberately has no collector hook: it runs on the
// hottest dispatch paths and must stay allocation-free.
type MetricsCollector interface {
	// RecordBuild is called after each table build with the table's shape,
	// the number of placement attempts, and the elapsed time.
	RecordBuild(stats table.Stats, attempts int, duration time.Duration)
}

// NoopMetricsCollector discards all events.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(table.Stats, int, time.Duration) {}

// BasicMetricsCollector keeps simple in-memory counters. Useful for tests
// and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildAttempts   atomic.Int64
	BuildTotalNanos atomic.Int64
	TailEntries     atomic.Int64
	PerfectBuilds   atomic.Int64 // builds that placed every entry
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(stats table.Stats, attempts int, duration time.Duration) {
	b.BuildCount.Add(1)
	b.BuildAttempts.Add(int64(attempts))
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	b.TailEntries.Add(int64(stats.Tail))
	if stats.Tail == 0 {
		b.PerfectBuilds.Add(1)
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount    int64
	BuildAttempts int64
	BuildAvgNanos int64
	TailEntries   int64
	PerfectBuilds int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		BuildCount:    b.BuildCount.Load(),
		BuildAttempts: b.BuildAttempts.Load(),
		TailEntries:   b.TailEntries.Load(),
		PerfectBuilds: b.PerfectBuilds.Load(),
	}
	if s.BuildCount > 0 {
		s.BuildAvgNanos = b.BuildTotalNanos.Load() / s.BuildCount
	}
	return s
}
