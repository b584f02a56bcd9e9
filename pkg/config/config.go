package config

import "time"

// Version is reported in export headers and the health endpoint.
const Version = "1.0.0"

// Server defaults
const (
	DefaultPort       = "8080"
	DefaultDataDir    = "./data/towercollector"
	DefaultExportsDir = "./data/exports"

	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 60 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// Export pipeline
const (
	// MeasurementsPerPage is the fixed page size used when draining the
	// store during an export.
	MeasurementsPerPage = 80

	// SegmentGap is the time gap between consecutive points above which a
	// new track segment is started in segmented formats.
	SegmentGap = 30 * time.Minute

	ExportFilenamePrefix = "TowerCollector_measurements_"
)

// Upload client and uploader service
const (
	UploadConnTimeout = 30 * time.Second
	UploadReadTimeout = 60 * time.Second

	// UploadBatchSize is how many measurements go into one CSV datafile.
	UploadBatchSize = 400

	UploadFieldAPIKey   = "key"
	UploadFieldAppID    = "appId"
	UploadFieldDatafile = "datafile"
)

// Ingest limits
const (
	MaxMeasurementsPerRequest = 1000
	IngestTimeout             = 5 * time.Second
	ListDefaultLimit          = 50
	ListMaxLimit              = 500
)

// Scheduler defaults
const (
	DefaultUploadInterval  = 6 * time.Hour
	RetentionInterval      = 24 * time.Hour
	ScheduledJobTimeout    = 10 * time.Minute
	BreakerOpenTimeout     = 2 * time.Minute
	BreakerMaxHalfOpenReqs = 1
)

// Error reporting
const (
	// SuppressionWindow bounds how often the same suppressed error is
	// forwarded to the report log.
	SuppressionWindow = 5 * time.Minute
)

// WebSocket hub
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// Stats broadcast task
const (
	StatsBroadcastInterval   = 5 * time.Second
	StatsBroadcastMaxBackoff = 5 * time.Minute
)

// Feeder client defaults
const (
	FeedMaxBatchSize = 100
	FeedFlushEvery   = 5 * time.Second
	FeedSendTimeout  = 10 * time.Second
)

// Storage defaults
const (
	DefaultMaxStorageGB  = 1
	DefaultMaxMemoryMB   = 48
	BadgerGCInterval     = 10 * time.Minute
	BadgerGCRatio        = 0.5
	StorageUsageCacheFor = 10 * time.Second
)
