// Package report provides the centralized error collector that upload and
// export paths forward their failures to. It replaces a process-wide crash
// reporter with an explicitly injected collaborator.
package report

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hefei93/TowerCollector/pkg/config"
)

// Reporter collects failures that should reach an operator. Report always
// forwards; ReportSuppressed deduplicates repeated failures so transient
// network flaps do not flood the log. Custom data pairs are attached to every
// report emitted while they are set.
type Reporter interface {
	Report(err error)
	ReportSuppressed(err error)
	PutCustomData(key, value string)
	RemoveCustomData(key string)
}

// LogReporter writes reports to a structured logger. Each report carries a
// generated report ID so occurrences can be referenced individually.
type LogReporter struct {
	logger *slog.Logger
	window time.Duration

	mu       sync.Mutex
	custom   map[string]string
	lastSeen map[string]time.Time
	dropped  map[string]int

	now func() time.Time
}

// NewLogReporter creates a reporter with the default suppression window.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{
		logger:   logger,
		window:   config.SuppressionWindow,
		custom:   make(map[string]string),
		lastSeen: make(map[string]time.Time),
		dropped:  make(map[string]int),
		now:      time.Now,
	}
}

// Report forwards the error unconditionally.
func (r *LogReporter) Report(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	attrs := r.attrsLocked(err, 0)
	r.mu.Unlock()

	r.logger.Error("error report", attrs...)
}

// ReportSuppressed forwards the error unless the same error text was already
// reported within the suppression window. Drops are counted and surfaced on
// the next report that gets through.
func (r *LogReporter) ReportSuppressed(err error) {
	if err == nil {
		return
	}
	sig := err.Error()

	r.mu.Lock()
	last, seen := r.lastSeen[sig]
	if seen && r.now().Sub(last) < r.window {
		r.dropped[sig]++
		r.mu.Unlock()
		return
	}
	r.lastSeen[sig] = r.now()
	dropped := r.dropped[sig]
	delete(r.dropped, sig)
	attrs := r.attrsLocked(err, dropped)
	r.mu.Unlock()

	r.logger.Error("error report (suppressed)", attrs...)
}

// PutCustomData attaches a key/value pair to subsequent reports.
func (r *LogReporter) PutCustomData(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[key] = value
}

// RemoveCustomData detaches a previously attached pair.
func (r *LogReporter) RemoveCustomData(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.custom, key)
}

func (r *LogReporter) attrsLocked(err error, dropped int) []any {
	attrs := []any{
		slog.String("report_id", uuid.NewString()),
		slog.String("error", err.Error()),
	}
	if dropped > 0 {
		attrs = append(attrs, slog.Int("dropped_duplicates", dropped))
	}
	for k, v := range r.custom {
		attrs = append(attrs, slog.String(k, v))
	}
	return attrs
}
