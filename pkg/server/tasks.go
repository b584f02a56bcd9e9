package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/ingest"
	"github.com/hefei93/TowerCollector/pkg/storage"
)

// BroadcastStats periodically pushes store statistics to WebSocket
// clients. Errors back off exponentially so a broken store does not spam
// the log.
func BroadcastStats(ctx context.Context, store storage.Store, hub *ingest.Hub, logger *slog.Logger) {
	ticker := time.NewTicker(config.StatsBroadcastInterval)
	defer ticker.Stop()

	var consecutiveErrors int
	var lastErrorTime time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Nothing to do when nobody is watching.
			if !hub.HasClients() {
				continue
			}

			stats, err := store.Stats(ctx)
			if err != nil {
				consecutiveErrors++
				now := time.Now()

				backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
				if backoff > config.StatsBroadcastMaxBackoff {
					backoff = config.StatsBroadcastMaxBackoff
				}

				if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
					logger.Warn("stats broadcast failed",
						slog.Int("consecutive_errors", consecutiveErrors),
						slog.Duration("backoff", backoff),
						slog.String("error", err.Error()))
					lastErrorTime = now
				}
				continue
			}

			if consecutiveErrors > 0 {
				logger.Info("stats broadcast recovered",
					slog.Int("errors", consecutiveErrors))
				consecutiveErrors = 0
				lastErrorTime = time.Time{}
			}

			hub.Broadcast(ingest.Event{
				Type:      ingest.EventStatsUpdate,
				Timestamp: time.Now().UnixMilli(),
				Stats:     stats,
			})
		}
	}
}
