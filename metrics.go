package posprint

import "go.uber.org/atomic"

// Metrics tracks executor health counters. All fields are safe for concurrent
// reads while the printer is in use.
type Metrics struct {
	Commands          atomic.Int64 // logical commands started
	Connects          atomic.Int64 // successful connection establishments
	Reconnects        atomic.Int64 // reconnect cycles triggered by a failed attempt
	ReconnectFailures atomic.Int64 // connection attempts that failed
	Retries           atomic.Int64 // second attempts issued after a reconnect
	FatalErrors       atomic.Int64 // commands that failed on the retry as well
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Commands          int64
	Connects          int64
	Reconnects        int64
	ReconnectFailures int64
	Retries           int64
	FatalErrors       int64
}

// Snapshot returns a consistent-enough copy of the counters for logging or
// export. Individual loads are atomic; the set as a whole is not.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Commands:          m.Commands.Load(),
		Connects:          m.Connects.Load(),
		Reconnects:        m.Reconnects.Load(),
		ReconnectFailures: m.ReconnectFailures.Load(),
		Retries:           m.Retries.Load(),
		FatalErrors:       m.FatalErrors.Load(),
	}
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.Commands.Store(0)
	m.Connects.Store(0)
	m.Reconnects.Store(0)
	m.ReconnectFailures.Store(0)
	m.Retries.Store(0)
	m.FatalErrors.Store(0)
}
