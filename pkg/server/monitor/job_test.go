package monitor

import (
	"errors"
	"testing"
	"time"
)

func TestJobMonitor_RecordSuccess(t *testing.T) {
	m := NewJobMonitor("auto-upload", time.Hour)
	m.RecordSuccess()

	status := m.Status()
	if !status.Healthy {
		t.Error("Status should be healthy after success")
	}
	if status.Name != "auto-upload" {
		t.Errorf("Name = %q, want %q", status.Name, "auto-upload")
	}
	if status.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", status.ConsecutiveErrors)
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q, want empty", status.LastError)
	}
}

func TestJobMonitor_RecordFailure(t *testing.T) {
	m := NewJobMonitor("retention", time.Hour)
	m.RecordFailure(errors.New("disk full"))

	status := m.Status()
	if status.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", status.ConsecutiveErrors)
	}
	if status.LastError != "disk full" {
		t.Errorf("LastError = %q, want %q", status.LastError, "disk full")
	}
}

func TestJobMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*JobMonitor)
		expected bool
	}{
		{
			name:     "never attempted",
			setup:    func(*JobMonitor) {},
			expected: true,
		},
		{
			name: "recent success",
			setup: func(m *JobMonitor) {
				m.RecordSuccess()
			},
			expected: true,
		},
		{
			name: "stale success",
			setup: func(m *JobMonitor) {
				m.RecordSuccess()
				m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
			},
			expected: false,
		},
		{
			name: "few failures",
			setup: func(m *JobMonitor) {
				m.RecordSuccess()
				m.RecordFailure(errors.New("x"))
				m.RecordFailure(errors.New("x"))
			},
			expected: true,
		},
		{
			name: "too many consecutive failures",
			setup: func(m *JobMonitor) {
				for i := 0; i < 4; i++ {
					m.RecordFailure(errors.New("x"))
				}
			},
			expected: false,
		},
		{
			name: "recovered after failures",
			setup: func(m *JobMonitor) {
				for i := 0; i < 5; i++ {
					m.RecordFailure(errors.New("x"))
				}
				m.RecordSuccess()
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewJobMonitor("job", time.Hour)
			tt.setup(m)
			if got := m.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJobMonitor_NoSilenceBound(t *testing.T) {
	m := NewJobMonitor("job", 0)
	m.RecordSuccess()
	m.now = func() time.Time { return time.Now().Add(100 * time.Hour) }

	if !m.IsHealthy() {
		t.Error("IsHealthy() = false, want true when maxSilence is disabled")
	}
}
