package server

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/storage"
	"github.com/hefei93/TowerCollector/pkg/storage/badger"
	"github.com/hefei93/TowerCollector/pkg/storage/memory"
)

// Config holds the collector's runtime configuration.
type Config struct {
	Port       string
	DataDir    string
	ExportsDir string

	// StoreBackend selects the storage implementation: badger or memory.
	StoreBackend string

	// MaxStorageBytes caps the data directory size; ingestion is refused
	// beyond it. Zero disables the cap.
	MaxStorageBytes int64

	// Upload endpoint settings. An empty URL leaves uploading off.
	UploadURL       string
	UploadAppID     string
	UploadAPIKey    string
	UploadInterval  time.Duration
	KeepAfterUpload bool

	// RetentionMaxAge prunes rows older than this. Zero disables pruning.
	RetentionMaxAge time.Duration
}

// UploadConfigured reports whether manual uploads can run.
func (c Config) UploadConfigured() bool {
	return c.UploadURL != "" && c.UploadAPIKey != ""
}

// AutoUploadEnabled reports whether the periodic upload job should be
// scheduled.
func (c Config) AutoUploadEnabled() bool {
	return c.UploadConfigured() && c.UploadInterval > 0
}

// LoadConfig reads configuration from TOWER_* environment variables, with
// a .env file autoloaded when present, and prepares the data directories.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Info("no .env file loaded", slog.String("reason", err.Error()))
	}

	cfg := Config{
		Port:            getenvDefault("TOWER_PORT", config.DefaultPort),
		DataDir:         getenvDefault("TOWER_DATA_DIR", config.DefaultDataDir),
		ExportsDir:      getenvDefault("TOWER_EXPORTS_DIR", config.DefaultExportsDir),
		StoreBackend:    getenvDefault("TOWER_STORE", "badger"),
		MaxStorageBytes: getenvInt64("TOWER_MAX_STORAGE_GB", config.DefaultMaxStorageGB) * 1024 * 1024 * 1024,
		UploadURL:       os.Getenv("TOWER_UPLOAD_URL"),
		UploadAppID:     os.Getenv("TOWER_UPLOAD_APP_ID"),
		UploadAPIKey:    os.Getenv("TOWER_UPLOAD_API_KEY"),
		KeepAfterUpload: getenvBool("TOWER_UPLOAD_KEEP_LOCAL", false),
	}

	var err error
	cfg.UploadInterval, err = getenvDuration("TOWER_UPLOAD_INTERVAL", config.DefaultUploadInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionMaxAge, err = getenvDuration("TOWER_RETENTION_MAX_AGE", 0)
	if err != nil {
		return Config{}, err
	}

	if cfg.StoreBackend != "badger" && cfg.StoreBackend != "memory" {
		return Config{}, fmt.Errorf("invalid TOWER_STORE %q: must be badger or memory", cfg.StoreBackend)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportsDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("creating exports directory: %w", err)
	}

	return cfg, nil
}

// InitializeStorage opens the configured storage backend.
func InitializeStorage(cfg Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Info("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	default:
		logger.Info("opening BadgerDB storage", slog.String("dir", cfg.DataDir))
		return badger.New(cfg.DataDir, logger)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
		slog.Warn("invalid integer in environment, using default",
			slog.String("key", key), slog.Int64("default", def))
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}
