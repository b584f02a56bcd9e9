package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/export"
	"github.com/hefei93/TowerCollector/pkg/httpx"
	"github.com/hefei93/TowerCollector/pkg/ingest"
	"github.com/hefei93/TowerCollector/pkg/server/monitor"
	"github.com/hefei93/TowerCollector/pkg/upload"
)

var startTime = time.Now()

// StorageUsage is the /v1/storage payload.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse is the /v1/health payload.
type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Uptime  string              `json:"uptime"`
	Jobs    []monitor.JobStatus `json:"jobs,omitempty"`
}

// handleHealth reports overall service health. Any unhealthy background
// job degrades the whole service to 503 so orchestrators notice.
func handleHealth(jobMonitors ...*monitor.JobMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overallStatus := "healthy"
		statusCode := http.StatusOK

		jobs := make([]monitor.JobStatus, 0, len(jobMonitors))
		for _, m := range jobMonitors {
			status := m.Status()
			jobs = append(jobs, status)
			if !status.Healthy {
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Version: config.Version,
			Uptime:  time.Since(startTime).String(),
			Jobs:    jobs,
		})
	}
}

// handleStorageUsage reports data-directory usage against the cap.
func handleStorageUsage(storageMonitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := storageMonitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  storageMonitor.GetLimit(),
		})
	}
}

// SetupRoutes wires every HTTP endpoint onto the router.
func SetupRoutes(
	router *mux.Router,
	ingestHandler *ingest.Handler,
	exportHandler *export.Handler,
	uploadHandler *upload.Handler,
	hub *ingest.Hub,
	storageMonitor *monitor.StorageMonitor,
	exportsDir string,
	port string,
	jobMonitors ...*monitor.JobMonitor,
) {
	router.Use(corsMiddleware(port))

	api := router.PathPrefix("/v1").Subrouter()

	// Measurement ingestion and queries
	api.HandleFunc("/measurements", ingestHandler.HandleIngest).Methods("POST")
	api.HandleFunc("/measurements", ingestHandler.HandleList).Methods("GET")
	api.HandleFunc("/measurements", ingestHandler.HandleDelete).Methods("DELETE")
	api.HandleFunc("/stats", ingestHandler.HandleStats).Methods("GET")
	api.HandleFunc("/boundaries", ingestHandler.HandleBoundaries).Methods("GET")

	// Exports and uploads
	api.HandleFunc("/export", exportHandler.HandleDownload).Methods("GET")
	api.HandleFunc("/export/files", exportHandler.HandleExportFile).Methods("POST")
	api.HandleFunc("/upload", uploadHandler.HandleRun).Methods("POST")

	// Diagnostics
	api.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	api.HandleFunc("/health", handleHealth(jobMonitors...)).Methods("GET")

	// WebSocket for live updates
	api.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")

	// Generated export files
	router.PathPrefix("/exports/").Handler(
		http.StripPrefix("/exports/", http.FileServer(http.Dir(exportsDir))))
}

// corsMiddleware restricts cross-origin access to localhost origins.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
