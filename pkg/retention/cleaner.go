// Package retention prunes measurements past their configured age. Rows
// normally leave the store through a successful upload; retention is the
// backstop for instances that never upload or keep local copies.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hefei93/TowerCollector/pkg/storage"
)

// Cleaner deletes measurements older than MaxAge. A zero or negative
// MaxAge disables cleaning.
type Cleaner struct {
	store  storage.Store
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewCleaner creates a cleaner removing rows older than maxAge.
func NewCleaner(store storage.Store, maxAge time.Duration, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		store:  store,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "retention")),
		now:    time.Now,
	}
}

// Enabled reports whether the cleaner will do anything when run.
func (c *Cleaner) Enabled() bool {
	return c.maxAge > 0
}

// RunOnce deletes everything measured before now minus MaxAge.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if !c.Enabled() {
		c.logger.Debug("retention disabled, skipping")
		return nil
	}

	cutoff := c.now().Add(-c.maxAge).UnixMilli()
	deleted, err := c.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: deleting rows before %d: %w", cutoff, err)
	}

	if deleted > 0 {
		c.logger.Info("old measurements removed",
			slog.Int("deleted", deleted), slog.Int64("cutoff", cutoff))
	}
	return nil
}
