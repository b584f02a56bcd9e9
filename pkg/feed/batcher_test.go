package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// fakeSender records every batch it receives.
type fakeSender struct {
	mu      sync.Mutex
	batches [][]model.Measurement
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, batch []model.Measurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]model.Measurement, len(batch))
	copy(cp, batch)
	f.batches = append(f.batches, cp)
	return f.sendErr
}

func (f *fakeSender) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeSender) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBatcherFlushesWhenFull(t *testing.T) {
	sender := &fakeSender{}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 5, FlushEvery: time.Hour}, discardLogger())
	b.Start(context.Background())
	defer b.Stop()

	for i := 0; i < 5; i++ {
		b.Add(sampleMeasurement(int64(i + 1)))
	}

	waitFor(t, time.Second, func() bool { return sender.batchCount() == 1 })
	if got := sender.total(); got != 5 {
		t.Errorf("sent %d measurements, want 5", got)
	}
	if got := b.Pending(); got != 0 {
		t.Errorf("pending = %d after flush, want 0", got)
	}
}

func TestBatcherPeriodicFlush(t *testing.T) {
	sender := &fakeSender{}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 1000, FlushEvery: 20 * time.Millisecond}, discardLogger())
	b.Start(context.Background())
	defer b.Stop()

	b.Add(sampleMeasurement(1000))
	b.Add(sampleMeasurement(2000))

	waitFor(t, time.Second, func() bool { return sender.total() == 2 })
}

func TestBatcherStopFlushesPending(t *testing.T) {
	sender := &fakeSender{}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 1000, FlushEvery: time.Hour}, discardLogger())
	b.Start(context.Background())

	for i := 0; i < 4; i++ {
		b.Add(sampleMeasurement(int64(i + 1)))
	}
	b.Stop()

	if got := sender.total(); got != 4 {
		t.Errorf("sent %d measurements after Stop, want 4", got)
	}
}

func TestBatcherStopAfterContextCancel(t *testing.T) {
	sender := &fakeSender{}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 1000, FlushEvery: time.Hour}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	b.Add(sampleMeasurement(1000))
	cancel()

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() hung after context cancellation")
	}

	// The final flush runs on its own context, so the pending
	// measurement still goes out.
	if got := sender.total(); got != 1 {
		t.Errorf("sent %d measurements, want 1", got)
	}
}

func TestBatcherDropsFailedBatch(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("collector offline")}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 1000, FlushEvery: time.Hour}, discardLogger())

	b.Add(sampleMeasurement(1000))
	b.Flush(context.Background())

	if got := b.Pending(); got != 0 {
		t.Errorf("pending = %d after failed flush, want 0 (batch dropped)", got)
	}
	if got := sender.batchCount(); got != 1 {
		t.Errorf("send attempts = %d, want 1", got)
	}
}

func TestBatcherFlushEmpty(t *testing.T) {
	sender := &fakeSender{}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 10, FlushEvery: time.Hour}, discardLogger())

	b.Flush(context.Background())
	if got := sender.batchCount(); got != 0 {
		t.Errorf("empty flush sent %d batches, want 0", got)
	}
}

func TestBatcherConcurrentAdd(t *testing.T) {
	sender := &fakeSender{}
	b := NewBatcher(sender, BatcherConfig{MaxBatchSize: 10, FlushEvery: time.Hour}, discardLogger())
	b.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Add(sampleMeasurement(int64(id*1000 + j + 1)))
			}
		}(i)
	}
	wg.Wait()
	b.Stop()

	// A size-triggered flush may still be in flight when Stop returns.
	waitFor(t, time.Second, func() bool { return sender.total() == 400 })
	waitFor(t, time.Second, func() bool { return !b.flushing.Load() })
}

func TestBatcherDefaults(t *testing.T) {
	b := NewBatcher(&fakeSender{}, BatcherConfig{}, discardLogger())
	if b.cfg.MaxBatchSize <= 0 {
		t.Errorf("MaxBatchSize = %d, want positive default", b.cfg.MaxBatchSize)
	}
	if b.cfg.FlushEvery <= 0 {
		t.Errorf("FlushEvery = %v, want positive default", b.cfg.FlushEvery)
	}
}
