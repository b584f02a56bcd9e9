package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/export"
	"github.com/hefei93/TowerCollector/pkg/ingest"
	"github.com/hefei93/TowerCollector/pkg/report"
	"github.com/hefei93/TowerCollector/pkg/retention"
	"github.com/hefei93/TowerCollector/pkg/scheduler"
	"github.com/hefei93/TowerCollector/pkg/server"
	"github.com/hefei93/TowerCollector/pkg/server/monitor"
	"github.com/hefei93/TowerCollector/pkg/upload"
)

func main() {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	store, err := server.InitializeStorage(cfg, logger)
	if err != nil {
		log.Fatalf("initializing storage: %v", err)
	}

	logger.Info("collector starting",
		slog.String("version", config.Version),
		slog.String("backend", cfg.StoreBackend),
		slog.String("data_dir", cfg.DataDir))

	reporter := report.NewLogReporter(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// WebSocket hub for live progress and stats pushes.
	hub := ingest.NewHub(logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.BroadcastStats(ctx, store, hub, logger)
	}()

	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, cfg.MaxStorageBytes)

	ingestHandler := ingest.NewHandler(store, hub, logger)
	if cfg.StoreBackend == "badger" && cfg.MaxStorageBytes > 0 {
		ingestHandler.SetStorageChecker(storageMonitor)
		logger.Info("storage cap enabled", slog.Int64("max_bytes", cfg.MaxStorageBytes))
	}

	exporter := export.NewExporter(store, reporter, logger)
	exporter.AddProgressListener(export.ListenerFunc(hub.ProgressFunc(ingest.EventExportProgress)))
	exportHandler := export.NewHandler(exporter, cfg.ExportsDir, logger)

	// Uploading stays off until an endpoint and key are configured.
	var uploader *upload.Uploader
	if cfg.UploadConfigured() {
		client := upload.NewClient(cfg.UploadURL, cfg.UploadAppID, cfg.UploadAPIKey, reporter, logger)
		uploader = upload.NewUploader(store, client, reporter, logger)
		uploader.KeepAfterUpload = cfg.KeepAfterUpload
		uploader.Progress = hub.ProgressFunc(ingest.EventUploadProgress)
		logger.Info("upload endpoint configured",
			slog.String("url", cfg.UploadURL),
			slog.Bool("keep_local", cfg.KeepAfterUpload))
	}
	uploadHandler := upload.NewHandler(uploader, logger)

	sched := scheduler.New(logger)
	var jobMonitors []*monitor.JobMonitor

	if cfg.AutoUploadEnabled() {
		uploadMon := monitor.NewJobMonitor("auto-upload", 3*cfg.UploadInterval)
		jobMonitors = append(jobMonitors, uploadMon)
		err := sched.Add("auto-upload", cfg.UploadInterval, uploadMon, func(ctx context.Context) error {
			summary := uploader.RunOnce(ctx)
			if summary.Result != upload.ResultSuccess {
				return fmt.Errorf("upload run: %s: %s", summary.Result, summary.Message)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("scheduling auto-upload: %v", err)
		}
	}

	cleaner := retention.NewCleaner(store, cfg.RetentionMaxAge, logger)
	if cleaner.Enabled() {
		retentionMon := monitor.NewJobMonitor("retention", 3*config.RetentionInterval)
		jobMonitors = append(jobMonitors, retentionMon)
		if err := sched.Add("retention", config.RetentionInterval, retentionMon, cleaner.RunOnce); err != nil {
			log.Fatalf("scheduling retention: %v", err)
		}
	}

	sched.Start()
	if n := sched.Len(); n > 0 {
		logger.Info("background jobs scheduled", slog.Int("jobs", n))
	}

	router := mux.NewRouter()
	server.SetupRoutes(router, ingestHandler, exportHandler, uploadHandler, hub,
		storageMonitor, cfg.ExportsDir, cfg.Port, jobMonitors...)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// Stop accepting scheduled work before tearing the rest down.
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", slog.String("error", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("background tasks did not stop in time")
	}

	// The store closes last so in-flight handlers never see a closed DB.
	if err := store.Close(); err != nil {
		logger.Error("closing store", slog.String("error", err.Error()))
	}
	logger.Info("collector stopped")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("TOWER_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
