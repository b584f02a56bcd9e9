package monitor

import (
	"sync"
	"time"
)

// maxConsecutiveFailures is how many back-to-back failures a job may
// accumulate before it is considered unhealthy.
const maxConsecutiveFailures = 3

// JobMonitor tracks the health of one scheduled background job.
type JobMonitor struct {
	name       string
	maxSilence time.Duration

	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string

	now func() time.Time
}

// NewJobMonitor creates a monitor for the named job. maxSilence bounds how
// long after the last success the job counts as healthy; zero disables the
// staleness check.
func NewJobMonitor(name string, maxSilence time.Duration) *JobMonitor {
	return &JobMonitor{
		name:       name,
		maxSilence: maxSilence,
		now:        time.Now,
	}
}

// Name returns the job name.
func (m *JobMonitor) Name() string { return m.name }

// RecordSuccess records a successful run.
func (m *JobMonitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSuccess = m.now()
	m.lastAttempt = m.lastSuccess
	m.consecutiveErrors = 0
	m.lastError = ""
}

// RecordFailure records a failed run.
func (m *JobMonitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = m.now()
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
}

// IsHealthy reports the job's health. A job that has not run yet is
// healthy: schedules with long intervals would otherwise degrade every
// fresh start until the first tick.
func (m *JobMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthyLocked()
}

func (m *JobMonitor) healthyLocked() bool {
	if m.consecutiveErrors > maxConsecutiveFailures {
		return false
	}
	if !m.lastSuccess.IsZero() && m.maxSilence > 0 &&
		m.now().Sub(m.lastSuccess) > m.maxSilence {
		return false
	}
	return true
}

// JobStatus is the health-endpoint view of one job.
type JobStatus struct {
	Name              string `json:"name"`
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status snapshots the job state for health checks.
func (m *JobMonitor) Status() JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := JobStatus{
		Name:    m.name,
		Healthy: m.healthyLocked(),
	}
	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = m.now().Sub(m.lastSuccess).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}
	return status
}
