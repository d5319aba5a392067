package clam

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordBuild is called once per Build. clusters is the size of the
	// resulting tree (0 on failure), duration is the total time taken,
	// err is nil if successful.
	RecordBuild(clusters int, duration time.Duration, err error)

	// RecordPartition is called after each partition step that produced
	// children. depth is the depth of the partitioned cluster.
	RecordPartition(depth int, duration time.Duration)

	// RecordSearch is called after each search operation. k is the number
	// of neighbors requested (0 for radius searches), duration is the
	// time taken, err is nil if successful.
	RecordSearch(k int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordPartition(int, time.Duration)     {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildTotalNanos atomic.Int64
	PartitionCount  atomic.Int64
	MaxDepthSeen    atomic.Int64
	SearchCount     atomic.Int64
	SearchErrors    atomic.Int64
	SearchTotal     atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(clusters int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordPartition implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPartition(depth int, duration time.Duration) {
	b.PartitionCount.Add(1)
	for {
		cur := b.MaxDepthSeen.Load()
		if int64(depth) <= cur || b.MaxDepthSeen.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotal.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}
