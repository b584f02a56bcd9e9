package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/model"
	"github.com/hefei93/TowerCollector/pkg/report"
	"github.com/hefei93/TowerCollector/pkg/storage"
)

// dbDumpKey names the custom-data slot that carries a store snapshot on
// inconsistency reports.
const dbDumpKey = "db_dump"

// InconsistencyError reports a store whose count and extremes disagree:
// Count says there are rows but First or Last came back empty.
type InconsistencyError struct {
	Count int
	First *model.Measurement
	Last  *model.Measurement
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("store inconsistency: count=%d first=%v last=%v", e.Count, e.First, e.Last)
}

// Exporter walks the whole measurement store through a Formatter onto a
// Device. One Exporter serves many Generate calls; each call pages through
// the store so memory stays flat regardless of store size.
type Exporter struct {
	store    storage.Store
	reporter report.Reporter
	logger   *slog.Logger

	mu        sync.Mutex
	listeners []Listener
}

// NewExporter creates an exporter over the given store.
func NewExporter(store storage.Store, reporter report.Reporter, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:    store,
		reporter: reporter,
		logger:   logger.With(slog.String("component", "exporter")),
	}
}

// AddProgressListener registers a listener notified during subsequent
// Generate calls. Safe to call concurrently with running exports.
func (e *Exporter) AddProgressListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Exporter) notifyProgress(done, total int) {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, l := range listeners {
		l.Notify(done, total)
	}
}

// Generate runs one export. An empty store short-circuits to no_data with
// the device never opened. Cancelling ctx stops the walk at the next page
// boundary; the footer is still written so the output stays parseable, and
// the result is cancelled rather than failed.
func (e *Exporter) Generate(ctx context.Context, formatter Formatter, device Device) Result {
	count, err := e.store.Count(ctx)
	if err != nil {
		return e.fail(fmt.Errorf("counting measurements: %w", err))
	}
	if count == 0 {
		e.logger.Info("export skipped, no measurements")
		return Result{Status: StatusNoData}
	}

	if err := device.Open(); err != nil {
		return e.fail(fmt.Errorf("opening device: %w", err))
	}
	// Redundant after the explicit close below; covers every early return.
	defer device.Close()

	e.notifyProgress(0, count)

	header, err := e.headerData(ctx, count)
	if err != nil {
		return e.fail(err)
	}

	gen := NewTextGenerator(formatter, device)
	if err := gen.WriteHeader(header); err != nil {
		return e.fail(err)
	}

	gapMillis := config.SegmentGap.Milliseconds()
	pages := (count + config.MeasurementsPerPage - 1) / config.MeasurementsPerPage

	var (
		written   int
		cancelled bool
		prev      int64
		prevKnown bool
	)
	if header.FirstMeasuredAt > 0 {
		prev, prevKnown = header.FirstMeasuredAt, true
	}

	for page := 0; page < pages && !cancelled; page++ {
		rows, err := e.store.Page(ctx, page*config.MeasurementsPerPage, config.MeasurementsPerPage)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				cancelled = true
				break
			}
			return e.fail(fmt.Errorf("reading page %d: %w", page, err))
		}

		for _, m := range rows {
			if prevKnown && m.MeasuredAt-prev > gapMillis {
				if err := gen.WriteNewSegment(); err != nil {
					return e.fail(err)
				}
			}
			if err := gen.WriteEntry(m); err != nil {
				return e.fail(err)
			}
			prev, prevKnown = m.MeasuredAt, true
		}
		written += len(rows)
		e.notifyProgress(written, count)

		if ctx.Err() != nil {
			cancelled = true
		}
	}

	// Written on the cancelled path too, so partial files stay well-formed.
	if err := gen.WriteFooter(); err != nil {
		return e.fail(err)
	}
	if err := device.Close(); err != nil {
		return e.fail(fmt.Errorf("closing device: %w", err))
	}
	e.notifyProgress(count, count)

	if cancelled {
		e.logger.Info("export cancelled",
			slog.Int("written", written), slog.Int("total", count))
		return Result{Status: StatusCancelled}
	}
	e.logger.Info("export finished", slog.Int("written", written))
	return Result{Status: StatusSucceeded}
}

// headerData assembles the export header. A store that counts rows but has
// no extremes gets reported with a snapshot attached and the export carries
// on with zeroed timestamps.
func (e *Exporter) headerData(ctx context.Context, count int) (model.HeaderData, error) {
	first, err := e.store.First(ctx)
	if err != nil {
		return model.HeaderData{}, fmt.Errorf("reading first measurement: %w", err)
	}
	last, err := e.store.Last(ctx)
	if err != nil {
		return model.HeaderData{}, fmt.Errorf("reading last measurement: %w", err)
	}
	if first == nil || last == nil {
		e.reportInconsistency(ctx, &InconsistencyError{Count: count, First: first, Last: last})
	}

	bounds, err := e.store.Boundaries(ctx)
	if err != nil {
		return model.HeaderData{}, fmt.Errorf("reading boundaries: %w", err)
	}

	header := model.HeaderData{
		CollectorVersion: config.Version,
		Boundaries:       bounds,
	}
	if first != nil {
		header.FirstMeasuredAt = first.MeasuredAt
	}
	if last != nil {
		header.LastMeasuredAt = last.MeasuredAt
	}
	return header, nil
}

func (e *Exporter) reportInconsistency(ctx context.Context, incErr *InconsistencyError) {
	dump, err := e.store.QuickDump(ctx)
	if err != nil {
		dump = fmt.Sprintf("dump failed: %v", err)
	}
	if stats, err := e.store.Stats(ctx); err == nil {
		dump += "\n" + stats.String()
	}

	e.reporter.PutCustomData(dbDumpKey, dump)
	defer e.reporter.RemoveCustomData(dbDumpKey)
	e.reporter.Report(incErr)

	e.logger.Warn("store inconsistency detected", slog.Int("count", incErr.Count))
}

// fail reports the error and maps it to a failed result. Device errors
// carry their reason through; everything else is reported as unknown.
func (e *Exporter) fail(err error) Result {
	e.reporter.Report(err)
	e.logger.Error("export failed", slog.String("error", err.Error()))
	return Result{
		Status:  StatusFailed,
		Reason:  deviceReason(err),
		Message: err.Error(),
	}
}
