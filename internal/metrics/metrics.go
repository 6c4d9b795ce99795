// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of the echo server and the bulk join.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one process.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	linesEchoed    atomic.Int64
	linesMalformed atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	tasksFinished  atomic.Int64
	tasksFailed    atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the current number of open sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── Line metrics ─────────────────────────────────────────────────────

// LineEchoed records one line written back unchanged.
func (c *Collector) LineEchoed() {
	if c == nil {
		return
	}
	c.linesEchoed.Add(1)
}

// LineMalformed records one line replaced by the diagnostic.
func (c *Collector) LineMalformed() {
	if c == nil {
		return
	}
	c.linesMalformed.Add(1)
}

// LinesEchoed returns the number of lines echoed unchanged.
func (c *Collector) LinesEchoed() int64 {
	if c == nil {
		return 0
	}
	return c.linesEchoed.Load()
}

// LinesMalformed returns the number of diagnostic substitutions.
func (c *Collector) LinesMalformed() int64 {
	if c == nil {
		return 0
	}
	return c.linesMalformed.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Task metrics ─────────────────────────────────────────────────────

// TaskFinished records the completion of one join unit.  failed is
// true when the unit returned an error or panicked.
func (c *Collector) TaskFinished(failed bool) {
	if c == nil {
		return
	}
	c.tasksFinished.Add(1)
	if failed {
		c.tasksFailed.Add(1)
	}
}

// TasksFinished returns the number of join units that completed.
func (c *Collector) TasksFinished() int64 {
	if c == nil {
		return 0
	}
	return c.tasksFinished.Load()
}

// TasksFailed returns the number of join units that failed.
func (c *Collector) TasksFailed() int64 {
	if c == nil {
		return 0
	}
	return c.tasksFailed.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	LinesEchoed      int64  `json:"lines_echoed"`
	LinesMalformed   int64  `json:"lines_malformed"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	TasksFinished    int64  `json:"tasks_finished,omitempty"`
	TasksFailed      int64  `json:"tasks_failed,omitempty"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		LinesEchoed:    c.linesEchoed.Load(),
		LinesMalformed: c.linesMalformed.Load(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		TasksFinished:  c.tasksFinished.Load(),
		TasksFailed:    c.tasksFailed.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
