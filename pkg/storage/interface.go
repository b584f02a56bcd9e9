package storage

import (
	"context"
	"errors"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// ErrClosed is returned by operations on a store that was already closed.
var ErrClosed = errors.New("storage: store is closed")

// Store defines the interface for measurement storage backends.
// Implementations: memory (testing/dev), badger (production).
//
// Paging is defined over the canonical order (MeasuredAt, ID) ascending.
// First and Last return the extremes of the same order, or nil when the
// store is empty. Write assigns IDs; callers must treat stored rows as
// immutable.
type Store interface {
	// Write persists measurements and assigns their IDs.
	Write(ctx context.Context, measurements []model.Measurement) error

	// Count returns the number of stored measurements.
	Count(ctx context.Context) (int, error)

	// First returns the oldest measurement, nil if the store is empty.
	First(ctx context.Context) (*model.Measurement, error)

	// Last returns the newest measurement, nil if the store is empty.
	Last(ctx context.Context) (*model.Measurement, error)

	// Page returns up to limit measurements starting at offset in
	// canonical order.
	Page(ctx context.Context, offset, limit int) ([]model.Measurement, error)

	// Boundaries returns the geographic extent of all measurements.
	Boundaries(ctx context.Context) (model.Boundaries, error)

	// Stats returns aggregate statistics for diagnostics.
	Stats(ctx context.Context) (*model.Statistics, error)

	// QuickDump renders a bounded plain-text snapshot of the store for
	// diagnostic reports.
	QuickDump(ctx context.Context) (string, error)

	// Delete removes measurements by ID and returns how many were removed.
	Delete(ctx context.Context, ids []int64) (int, error)

	// DeleteBefore removes measurements measured strictly before the given
	// epoch-millisecond timestamp and returns how many were removed.
	DeleteBefore(ctx context.Context, measuredBefore int64) (int, error)

	// Close cleanly shuts down the storage.
	Close() error
}
