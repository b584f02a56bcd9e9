package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/report"
	"github.com/hefei93/TowerCollector/pkg/storage"
)

// errTransient feeds the circuit breaker's failure counter. It never
// leaves this package.
var errTransient = errors.New("upload: transient failure")

// Sender posts one CSV payload and classifies the response.
type Sender interface {
	UploadMeasurements(ctx context.Context, csvContent string) RequestResult
}

// UploadSummary describes one drain run.
type UploadSummary struct {
	// Attempted counts rows included in upload requests.
	Attempted int `json:"attempted"`
	// Uploaded counts rows the server accepted.
	Uploaded int `json:"uploaded"`
	// Deleted counts rows removed locally after acceptance.
	Deleted int `json:"deleted"`
	// Batches counts upload requests made.
	Batches int `json:"batches"`

	Result  RequestResult `json:"result"`
	Message string        `json:"message,omitempty"`
}

// Uploader drains the local store oldest-first in fixed-size batches.
// Each batch is formatted as CSV, pushed through the sender behind a
// circuit breaker, and on acceptance deleted locally. The drain stops
// at the first non-success result so a broken endpoint or key is hit
// once per run, not once per batch.
type Uploader struct {
	// BatchSize is the number of rows per upload request.
	BatchSize int

	// KeepAfterUpload leaves accepted rows in the store instead of
	// deleting them.
	KeepAfterUpload bool

	// Progress, when set, is called after every accepted batch with
	// the rows uploaded so far and the total row count.
	Progress func(uploaded, total int)

	store    storage.Store
	sender   Sender
	reporter report.Reporter
	logger   *slog.Logger
	breaker  *gobreaker.CircuitBreaker
}

// NewUploader wires an uploader with default batch size and breaker
// thresholds.
func NewUploader(store storage.Store, sender Sender, reporter report.Reporter, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "measurement-upload",
		MaxRequests: config.BreakerMaxHalfOpenReqs,
		Timeout:     config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upload circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Uploader{
		BatchSize: config.UploadBatchSize,
		store:     store,
		sender:    sender,
		reporter:  reporter,
		logger:    logger,
		breaker:   breaker,
	}
}

// RunOnce drains everything currently in the store. Cancellation is
// honored between batches; a batch in flight is finished first.
func (u *Uploader) RunOnce(ctx context.Context) UploadSummary {
	var summary UploadSummary

	total, err := u.store.Count(ctx)
	if err != nil {
		return u.fail(summary, fmt.Errorf("upload: counting rows: %w", err))
	}
	if total == 0 {
		summary.Result = ResultSuccess
		summary.Message = "nothing to upload"
		return summary
	}

	u.logger.Info("starting upload run", "rows", total, "batch_size", u.BatchSize)

	offset := 0
	for {
		if ctx.Err() != nil {
			summary.Result = ResultFailure
			summary.Message = "cancelled"
			u.logger.Info("upload run cancelled", "uploaded", summary.Uploaded)
			return summary
		}

		page, err := u.store.Page(ctx, offset, u.BatchSize)
		if err != nil {
			return u.fail(summary, fmt.Errorf("upload: reading batch: %w", err))
		}
		if len(page) == 0 {
			break
		}

		payload, err := FormatCSV(page)
		if err != nil {
			return u.fail(summary, err)
		}

		summary.Attempted += len(page)
		summary.Batches++

		value, _ := u.breaker.Execute(func() (interface{}, error) {
			result := u.sender.UploadMeasurements(ctx, payload)
			if result.Retriable() {
				return result, errTransient
			}
			return result, nil
		})
		if value == nil {
			// The breaker refused the call outright.
			summary.Result = ResultFailure
			summary.Message = "circuit breaker open"
			u.logger.Warn("upload run halted", "reason", summary.Message)
			return summary
		}

		result := value.(RequestResult)
		summary.Result = result
		if result != ResultSuccess {
			summary.Message = "stopped on non-success result"
			u.logger.Warn("upload run stopped",
				"result", string(result), "uploaded", summary.Uploaded, "total", total)
			return summary
		}
		summary.Uploaded += len(page)

		if u.KeepAfterUpload {
			offset += len(page)
		} else {
			ids := make([]int64, len(page))
			for i, m := range page {
				ids[i] = m.ID
			}
			deleted, err := u.store.Delete(ctx, ids)
			if err != nil {
				return u.fail(summary, fmt.Errorf("upload: deleting uploaded rows: %w", err))
			}
			summary.Deleted += deleted
		}

		if u.Progress != nil {
			u.Progress(summary.Uploaded, total)
		}
	}

	summary.Result = ResultSuccess
	u.logger.Info("upload run finished",
		"uploaded", summary.Uploaded, "deleted", summary.Deleted, "batches", summary.Batches)
	return summary
}

func (u *Uploader) fail(summary UploadSummary, err error) UploadSummary {
	u.reporter.Report(err)
	u.logger.Error("upload run failed", "error", err)
	summary.Result = ResultFailure
	summary.Message = err.Error()
	return summary
}
