package twofactor

import "sync/atomic"

// MetricID defines a public type used by twofactor APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricAuthSuccess is an exported constant or variable used by the two-factor engine.
	MetricAuthSuccess MetricID = iota
	// MetricAuthFailure is an exported constant or variable used by the two-factor engine.
	MetricAuthFailure
	// MetricAuthRateLimited is an exported constant or variable used by the two-factor engine.
	MetricAuthRateLimited
	// MetricBackupCodeUsed is an exported constant or variable used by the two-factor engine.
	MetricBackupCodeUsed
	// MetricBackupCodesGenerated is an exported constant or variable used by the two-factor engine.
	MetricBackupCodesGenerated
	// MetricEmailCodeSent is an exported constant or variable used by the two-factor engine.
	MetricEmailCodeSent
	// MetricEmailCodeUsed is an exported constant or variable used by the two-factor engine.
	MetricEmailCodeUsed
	// MetricEmailCodeExpired is an exported constant or variable used by the two-factor engine.
	MetricEmailCodeExpired
	// MetricSetupSent is an exported constant or variable used by the two-factor engine.
	MetricSetupSent
	// MetricSetupConfirmed is an exported constant or variable used by the two-factor engine.
	MetricSetupConfirmed
	// MetricSetupKeyRejected is an exported constant or variable used by the two-factor engine.
	MetricSetupKeyRejected
	// MetricSecretMigrated is an exported constant or variable used by the two-factor engine.
	MetricSecretMigrated
	// MetricDisabled is an exported constant or variable used by the two-factor engine.
	MetricDisabled
	// MetricMailFailure is an exported constant or variable used by the two-factor engine.
	MetricMailFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by twofactor APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by twofactor APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether the metrics system records increments.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc atomically increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a point-in-time deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
