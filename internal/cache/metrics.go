package cache

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks cache activity with lock-free counters.
// It implements prometheus.Collector so one instance can be registered and
// shared by any number of stores.
type Metrics struct {
	hits          atomic.Int64
	misses        atomic.Int64
	hardMisses    atomic.Int64
	reclaims      atomic.Int64
	builds        atomic.Int64
	buildFailures atomic.Int64
	evictions     atomic.Int64
	buildNanos    atomic.Int64

	startTime time.Time

	hitsDesc          *prometheus.Desc
	missesDesc        *prometheus.Desc
	hardMissesDesc    *prometheus.Desc
	reclaimsDesc      *prometheus.Desc
	buildsDesc        *prometheus.Desc
	buildFailuresDesc *prometheus.Desc
	evictionsDesc     *prometheus.Desc
	buildSecondsDesc  *prometheus.Desc
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	// Hits counts lookups answered from a live value.
	Hits int64
	// Misses counts lookups of known keys whose value had to be built.
	Misses int64
	// HardMisses counts lookups of keys that have no slot.
	HardMisses int64
	// Reclaims counts misses caused by a collected value.
	Reclaims int64
	// Builds counts successful builds.
	Builds int64
	// BuildFailures counts failed builds.
	BuildFailures int64
	// Evictions counts values dropped from strong retention.
	Evictions int64
	// BuildTime is the total time spent building values.
	BuildTime time.Duration
	// HitRate is Hits divided by Hits plus Misses.
	HitRate float64
	// Uptime is the time since the Metrics were created.
	Uptime time.Duration
}

// NewMetrics creates a Metrics instance. The namespace, subsystem and
// constant labels only affect the exported Prometheus metric names.
func NewMetrics(namespace, subsystem string, labels prometheus.Labels) *Metrics {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, labels)
	}

	return &Metrics{
		startTime:         time.Now(),
		hitsDesc:          desc("hits_total", "Lookups answered from a live cached value."),
		missesDesc:        desc("misses_total", "Lookups of known keys that required a build."),
		hardMissesDesc:    desc("hard_misses_total", "Lookups of keys that are not indexed."),
		reclaimsDesc:      desc("reclaims_total", "Misses caused by a value reclaimed by the garbage collector."),
		buildsDesc:        desc("builds_total", "Successful value builds."),
		buildFailuresDesc: desc("build_failures_total", "Failed value builds."),
		evictionsDesc:     desc("evictions_total", "Values dropped from strong retention."),
		buildSecondsDesc:  desc("build_seconds_total", "Total time spent building values."),
	}
}

// RecordHit records a lookup answered from a live value.
func (m *Metrics) RecordHit() { m.hits.Add(1) }

// RecordMiss records a lookup that requires a build. A reclaimed miss is
// also counted as a reclaim.
func (m *Metrics) RecordMiss(reclaimed bool) {
	m.misses.Add(1)
	if reclaimed {
		m.reclaims.Add(1)
	}
}

// RecordHardMiss records a lookup of a key without a slot.
func (m *Metrics) RecordHardMiss() { m.hardMisses.Add(1) }

// RecordBuild records the outcome and duration of a build.
func (m *Metrics) RecordBuild(duration time.Duration, err error) {
	if err != nil {
		m.buildFailures.Add(1)
	} else {
		m.builds.Add(1)
	}
	m.buildNanos.Add(int64(duration))
}

// RecordEviction records a value dropped from strong retention.
func (m *Metrics) RecordEviction() { m.evictions.Add(1) }

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		HardMisses:    m.hardMisses.Load(),
		Reclaims:      m.reclaims.Load(),
		Builds:        m.builds.Load(),
		BuildFailures: m.buildFailures.Load(),
		Evictions:     m.evictions.Load(),
		BuildTime:     time.Duration(m.buildNanos.Load()),
		Uptime:        time.Since(m.startTime),
	}

	if total := snapshot.Hits + snapshot.Misses; total > 0 {
		snapshot.HitRate = float64(snapshot.Hits) / float64(total)
	}
	return snapshot
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.hitsDesc
	ch <- m.missesDesc
	ch <- m.hardMissesDesc
	ch <- m.reclaimsDesc
	ch <- m.buildsDesc
	ch <- m.buildFailuresDesc
	ch <- m.evictionsDesc
	ch <- m.buildSecondsDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()
	counter := func(desc *prometheus.Desc, value float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, value)
	}

	counter(m.hitsDesc, float64(s.Hits))
	counter(m.missesDesc, float64(s.Misses))
	counter(m.hardMissesDesc, float64(s.HardMisses))
	counter(m.reclaimsDesc, float64(s.Reclaims))
	counter(m.buildsDesc, float64(s.Builds))
	counter(m.buildFailuresDesc, float64(s.BuildFailures))
	counter(m.evictionsDesc, float64(s.Evictions))
	counter(m.buildSecondsDesc, s.BuildTime.Seconds())
}
