// Command simulator feeds a collector with a synthetic measurement
// stream, useful for demos and for exercising a running instance.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hefei93/TowerCollector/pkg/feed"
)

func main() {
	var (
		endpoint = flag.String("endpoint", "http://localhost:8080/v1/measurements", "collector ingest endpoint")
		apiKey   = flag.String("api-key", "", "bearer token sent with each batch")
		interval = flag.Duration("interval", time.Second, "time between simulated measurements")
		count    = flag.Int("count", 0, "measurements to send before exiting (0 = run until interrupted)")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random walk seed")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	batcher := feed.NewBatcher(feed.NewClient(*endpoint, *apiKey), feed.DefaultBatcherConfig(), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	batcher.Start(ctx)
	defer batcher.Stop()

	w := newWalker(*seed)
	log.Printf("simulating measurements: endpoint=%s interval=%v seed=%d", *endpoint, *interval, *seed)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("interrupted after %d measurements", sent)
			return
		case <-ticker.C:
			batcher.Add(w.step(time.Now().UnixMilli()))
			sent++
			if *count > 0 && sent >= *count {
				log.Printf("done: %d measurements queued", sent)
				return
			}
		}
	}
}
