package termdict

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives build pipeline events. Find and Get are not
// instrumented.
//
// Implementations must be safe for concurrent use: spills are reported from
// worker goroutines.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    spills     prometheus.Counter
//	    spillBytes prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordSpill(entries int, bytes int64, d time.Duration) {
//	    p.spills.Inc()
//	    p.spillBytes.Add(float64(bytes))
//	}
type MetricsCollector interface {
	// RecordSpill is called after a sorted block is written to disk.
	RecordSpill(entries int, bytes int64, duration time.Duration)

	// RecordMerge is called after a k-way merge of inputs block files.
	RecordMerge(inputs int, written uint64, duration time.Duration)

	// RecordConversion is called after a locality conversion.
	RecordConversion(entries int, duration time.Duration)

	// RecordBuild is called once per Build, err is nil if successful.
	RecordBuild(terms uint64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSpill(int, int64, time.Duration)    {}
func (NoopMetricsCollector) RecordMerge(int, uint64, time.Duration)   {}
func (NoopMetricsCollector) RecordConversion(int, time.Duration)      {}
func (NoopMetricsCollector) RecordBuild(uint64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	SpillCount      atomic.Int64
	SpillEntries    atomic.Int64
	SpillBytes      atomic.Int64
	SpillTotalNanos atomic.Int64
	MergeCount      atomic.Int64
	MergeInputs     atomic.Int64
	MergeWritten    atomic.Int64
	ConversionCount atomic.Int64
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildTerms      atomic.Int64
	BuildTotalNanos atomic.Int64
}

// RecordSpill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSpill(entries int, bytes int64, duration time.Duration) {
	b.SpillCount.Add(1)
	b.SpillEntries.Add(int64(entries))
	b.SpillBytes.Add(bytes)
	b.SpillTotalNanos.Add(duration.Nanoseconds())
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(inputs int, written uint64, _ time.Duration) {
	b.MergeCount.Add(1)
	b.MergeInputs.Add(int64(inputs))
	b.MergeWritten.Add(int64(written))
}

// RecordConversion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConversion(int, time.Duration) {
	b.ConversionCount.Add(1)
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(terms uint64, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildTerms.Add(int64(terms))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SpillCount:      b.SpillCount.Load(),
		SpillEntries:    b.SpillEntries.Load(),
		SpillBytes:      b.SpillBytes.Load(),
		SpillAvgNanos:   avg(b.SpillTotalNanos.Load(), b.SpillCount.Load()),
		MergeCount:      b.MergeCount.Load(),
		MergeInputs:     b.MergeInputs.Load(),
		MergeWritten:    b.MergeWritten.Load(),
		ConversionCount: b.ConversionCount.Load(),
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildTerms:      b.BuildTerms.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SpillCount      int64
	SpillEntries    int64
	SpillBytes      int64
	SpillAvgNanos   int64
	MergeCount      int64
	MergeInputs     int64
	MergeWritten    int64
	ConversionCount int64
	BuildCount      int64
	BuildErrors     int64
	BuildTerms      int64
	BuildAvgNanos   int64
}
