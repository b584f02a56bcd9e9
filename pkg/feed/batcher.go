package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/model"
)

// BatcherConfig controls batching behavior.
type BatcherConfig struct {
	// MaxBatchSize triggers an immediate flush when reached.
	MaxBatchSize int
	// FlushEvery is the interval between periodic flushes.
	FlushEvery time.Duration
}

// DefaultBatcherConfig returns the stock batching parameters.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		MaxBatchSize: config.FeedMaxBatchSize,
		FlushEvery:   config.FeedFlushEvery,
	}
}

// Batcher accumulates measurements and flushes them to a Sender either
// when the batch fills up or on a timer. Failed batches are logged and
// dropped; the feeder keeps capturing.
type Batcher struct {
	sender Sender
	cfg    BatcherConfig
	logger *slog.Logger

	mu      sync.Mutex
	pending []model.Measurement

	flushing atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBatcher creates a batcher that submits through sender.
func NewBatcher(sender Sender, cfg BatcherConfig, logger *slog.Logger) *Batcher {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = config.FeedMaxBatchSize
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = config.FeedFlushEvery
	}
	return &Batcher{
		sender: sender,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "feed")),
		done:   make(chan struct{}),
	}
}

// Start launches the periodic flush loop. It returns immediately.
func (b *Batcher) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)
	go b.flushLoop()
}

// Add queues one measurement, flushing in the background if the batch
// is full.
func (b *Batcher) Add(m model.Measurement) {
	b.mu.Lock()
	b.pending = append(b.pending, m)
	full := len(b.pending) >= b.cfg.MaxBatchSize
	b.mu.Unlock()

	if full && b.flushing.CompareAndSwap(false, true) {
		go func() {
			defer b.flushing.Store(false)
			b.Flush(b.ctx)
		}()
	}
}

// Flush submits everything pending right now.
func (b *Batcher) Flush(ctx context.Context) {
	batch := b.take()
	if len(batch) == 0 {
		return
	}
	b.flushOnce(ctx, batch)
}

// Stop halts the flush loop and submits any remaining measurements.
// The final flush runs on its own timeout so it survives the loop
// context being cancelled.
func (b *Batcher) Stop() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.FeedSendTimeout)
	defer cancel()
	b.Flush(ctx)
}

// Pending reports how many measurements await submission.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) flushLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush(b.ctx)
		case <-b.ctx.Done():
			return
		}
	}
}

// take removes and returns the pending batch.
func (b *Batcher) take() []model.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.pending
	b.pending = nil
	return batch
}

func (b *Batcher) flushOnce(ctx context.Context, batch []model.Measurement) {
	if err := b.sender.Send(ctx, batch); err != nil {
		b.logger.Warn("dropping batch after failed submit",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()))
		return
	}
	b.logger.Debug("batch submitted", slog.Int("count", len(batch)))
}
