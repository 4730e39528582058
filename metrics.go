package uart

import (
	"errors"
	"time"

	"go.uber.org/atomic"
)

// Metrics tracks serial communication health statistics for one Adapter.
type Metrics struct {
	// Connection Statistics
	ConnectionAttempts  atomic.Int64
	SuccessfulConnects  atomic.Int64
	ConnectionFailures  atomic.Int64
	Disconnections      atomic.Int64
	LastConnectTime     atomic.Int64 // Unix timestamp
	LastDisconnectTime  atomic.Int64 // Unix timestamp
	TotalUptime         atomic.Int64 // ns, closed sessions only
	ConnectionStartTime atomic.Int64 // UnixNano of the current session

	// Read Operations
	ReadOperations  atomic.Int64
	SuccessfulReads atomic.Int64
	ShortReads      atomic.Int64 // timeout elapsed before size bytes arrived
	ReadErrors      atomic.Int64
	BytesRead       atomic.Int64
	TotalReadTime   atomic.Int64 // ns
	MaxReadTime     atomic.Int64 // ns

	// Write Operations
	WriteOperations  atomic.Int64
	SuccessfulWrites atomic.Int64
	WriteErrors      atomic.Int64
	BytesWritten     atomic.Int64
	TotalWriteTime   atomic.Int64 // ns
	MaxWriteTime     atomic.Int64 // ns

	BufferPoolHits   atomic.Int64
	BufferPoolMisses atomic.Int64

	// Error Categories
	ConfigurationErrors  atomic.Int64
	EnumerationErrors    atomic.Int64
	PortValidationErrors atomic.Int64
	BufferErrors         atomic.Int64
	HardwareErrors       atomic.Int64

	ConsecutiveFailures atomic.Int64
	LastErrorTime       atomic.Int64
}

// HealthStatus represents the overall health of serial communication
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDown      HealthStatus = "down"
)

// MetricsSnapshot is a point-in-time view of Metrics with derived rates.
type MetricsSnapshot struct {
	Timestamp   time.Time
	IsConnected bool

	ConnectionSuccess   float64 // percent
	ReadSuccessRate     float64 // percent
	WriteSuccessRate    float64 // percent
	ShortReadRate       float64 // percent of reads
	ErrorRate           float64 // percent of operations
	AverageReadLatency  time.Duration
	AverageWriteLatency time.Duration
	MaxReadLatency      time.Duration
	MaxWriteLatency     time.Duration
	UptimeSeconds       float64

	TotalReads          int64
	TotalWrites         int64
	TotalBytesRead      int64
	TotalBytesWritten   int64
	TotalErrors         int64
	ConsecutiveFailures int64

	HealthStatus HealthStatus
	HealthScore  float64
}

// Snapshot computes rates and a health assessment. isConnected reflects the
// adapter's current state.
func (m *Metrics) Snapshot(isConnected bool) MetricsSnapshot {
	now := time.Now()
	s := MetricsSnapshot{
		Timestamp:   now,
		IsConnected: isConnected,

		ConnectionSuccess: percent(m.SuccessfulConnects.Load(), m.ConnectionAttempts.Load(), 100),
		ReadSuccessRate:   percent(m.SuccessfulReads.Load(), m.ReadOperations.Load(), 100),
		WriteSuccessRate:  percent(m.SuccessfulWrites.Load(), m.WriteOperations.Load(), 100),
		ShortReadRate:     percent(m.ShortReads.Load(), m.ReadOperations.Load(), 0),

		AverageReadLatency:  average(m.TotalReadTime.Load(), m.ReadOperations.Load()),
		AverageWriteLatency: average(m.TotalWriteTime.Load(), m.WriteOperations.Load()),
		MaxReadLatency:      time.Duration(m.MaxReadTime.Load()),
		MaxWriteLatency:     time.Duration(m.MaxWriteTime.Load()),

		TotalReads:          m.ReadOperations.Load(),
		TotalWrites:         m.WriteOperations.Load(),
		TotalBytesRead:      m.BytesRead.Load(),
		TotalBytesWritten:   m.BytesWritten.Load(),
		TotalErrors:         m.ReadErrors.Load() + m.WriteErrors.Load(),
		ConsecutiveFailures: m.ConsecutiveFailures.Load(),
	}
	s.ErrorRate = percent(s.TotalErrors, s.TotalReads+s.TotalWrites, 0)

	if start := m.ConnectionStartTime.Load(); isConnected && start > 0 {
		if d := now.UnixNano() - start; d > 0 {
			s.UptimeSeconds = float64(d) / float64(time.Second)
		}
	}

	s.HealthStatus = assessHealthStatus(s)
	s.HealthScore = calculateHealthScore(s)
	return s
}

func percent(part, whole int64, empty float64) float64 {
	if whole == 0 {
		return empty
	}
	return float64(part) / float64(whole) * 100
}

func average(total, n int64) time.Duration {
	if n == 0 {
		return 0
	}
	return time.Duration(total / n)
}

func assessHealthStatus(s MetricsSnapshot) HealthStatus {
	if !s.IsConnected {
		return HealthStatusDown
	}
	if s.ErrorRate > 50.0 || s.ConsecutiveFailures > 5 {
		return HealthStatusUnhealthy
	}
	if s.ErrorRate > 10.0 || s.ConsecutiveFailures > 3 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}

func calculateHealthScore(s MetricsSnapshot) float64 {
	if !s.IsConnected {
		return 0.0
	}
	score := 100.0 - s.ErrorRate*2 - float64(s.ConsecutiveFailures)*10
	if score < 0 {
		score = 0
	}
	return score
}

func (m *Metrics) recordConnect(err error) {
	m.ConnectionAttempts.Inc()
	if err != nil {
		m.ConnectionFailures.Inc()
		m.recordError(err)
		return
	}
	now := time.Now()
	m.SuccessfulConnects.Inc()
	m.LastConnectTime.Store(now.Unix())
	m.ConnectionStartTime.Store(now.UnixNano())
	m.ConsecutiveFailures.Store(0)
}

func (m *Metrics) recordDisconnect() {
	now := time.Now()
	if start := m.ConnectionStartTime.Swap(0); start > 0 {
		m.TotalUptime.Add(now.UnixNano() - start)
	}
	m.Disconnections.Inc()
	m.LastDisconnectTime.Store(now.Unix())
}

func (m *Metrics) recordRead(requested, n int, err error, d time.Duration) {
	m.ReadOperations.Inc()
	m.TotalReadTime.Add(d.Nanoseconds())
	storeMax(&m.MaxReadTime, d.Nanoseconds())
	m.BytesRead.Add(int64(n))

	if err != nil {
		m.ReadErrors.Inc()
		m.recordError(err)
		return
	}
	m.SuccessfulReads.Inc()
	if n < requested {
		m.ShortReads.Inc()
	}
	m.ConsecutiveFailures.Store(0)
}

func (m *Metrics) recordWrite(n int, err error, d time.Duration) {
	m.WriteOperations.Inc()
	m.TotalWriteTime.Add(d.Nanoseconds())
	storeMax(&m.MaxWriteTime, d.Nanoseconds())
	m.BytesWritten.Add(int64(n))

	if err != nil {
		m.WriteErrors.Inc()
		m.recordError(err)
		return
	}
	m.SuccessfulWrites.Inc()
	m.ConsecutiveFailures.Store(0)
}

func (m *Metrics) recordError(err error) {
	m.LastErrorTime.Store(time.Now().Unix())

	switch {
	case errors.Is(err, ErrNoPort):
		m.ConfigurationErrors.Inc()
		return
	case errors.Is(err, ErrPortNotOpen):
		// usage error, not a device failure
		return
	case errors.Is(err, ErrInvalidBuffer), errors.Is(err, ErrBufferTooLarge):
		m.BufferErrors.Inc()
	case errors.Is(err, ErrEnumerate):
		m.EnumerationErrors.Inc()
	case errors.Is(err, ErrPortNotFound):
		m.PortValidationErrors.Inc()
	default:
		m.HardwareErrors.Inc()
	}
	m.ConsecutiveFailures.Inc()
}

func storeMax(v *atomic.Int64, n int64) {
	for {
		cur := v.Load()
		if n <= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}
