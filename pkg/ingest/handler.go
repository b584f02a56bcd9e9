package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/httpx"
	"github.com/hefei93/TowerCollector/pkg/model"
	"github.com/hefei93/TowerCollector/pkg/storage"
)

// StorageChecker reports disk usage against a configured cap. When the cap
// is reached, ingestion is refused before anything is written.
type StorageChecker interface {
	GetUsage() (int64, error)
	GetLimit() int64
}

// Handler serves the measurement CRUD endpoints.
type Handler struct {
	store          storage.Store
	hub            *Hub
	logger         *slog.Logger
	storageChecker StorageChecker
	now            func() time.Time
}

// NewHandler creates the ingest handler. hub may be nil when no live
// clients are served.
func NewHandler(store storage.Store, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		hub:    hub,
		logger: logger.With(slog.String("component", "ingest")),
		now:    time.Now,
	}
}

// SetStorageChecker enables the storage cap check on writes.
func (h *Handler) SetStorageChecker(checker StorageChecker) {
	h.storageChecker = checker
}

// IngestRequest is the POST /v1/measurements payload.
type IngestRequest struct {
	Measurements []model.Measurement `json:"measurements"`
}

// IngestResponse acknowledges an accepted batch.
type IngestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// HandleIngest handles POST /v1/measurements. The batch is all-or-nothing:
// one invalid row rejects the whole request and nothing is stored.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := ValidateBatch(req.Measurements); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	now := h.now()
	for i, m := range req.Measurements {
		if err := ValidateMeasurement(m, now); err != nil {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("measurement %d: %v", i, err))
			return
		}
	}

	if h.storageChecker != nil {
		usage, err := h.storageChecker.GetUsage()
		if err != nil {
			h.logger.Warn("storage usage check failed", slog.String("error", err.Error()))
		} else if limit := h.storageChecker.GetLimit(); limit > 0 && usage >= limit {
			httpx.RespondErrorString(w, http.StatusInsufficientStorage,
				fmt.Sprintf("storage limit reached (%d/%d bytes)", usage, limit))
			return
		}
	}

	if err := h.store.Write(ctx, req.Measurements); err != nil {
		h.logger.Error("write failed", slog.Int("count", len(req.Measurements)), slog.String("error", err.Error()))
		httpx.RespondErrorString(w, http.StatusInternalServerError, "write failed")
		return
	}

	h.logger.Debug("measurements ingested", slog.Int("count", len(req.Measurements)))
	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:      EventMeasurementsIngested,
			Timestamp: now.UnixMilli(),
			Count:     len(req.Measurements),
		})
	}

	httpx.RespondJSON(w, http.StatusAccepted, IngestResponse{
		Status: "accepted",
		Count:  len(req.Measurements),
	})
}

// ListResponse is the GET /v1/measurements payload.
type ListResponse struct {
	Measurements []model.Measurement `json:"measurements"`
	Offset       int                 `json:"offset"`
	Limit        int                 `json:"limit"`
	Total        int                 `json:"total"`
}

// HandleList handles GET /v1/measurements?offset=&limit=. Rows come back
// in (measured_at, id) order, the same order exports and uploads use.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := queryInt(r, "limit", config.ListDefaultLimit)
	if limit <= 0 {
		limit = config.ListDefaultLimit
	}
	if limit > config.ListMaxLimit {
		limit = config.ListMaxLimit
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError, "count failed")
		return
	}
	page, err := h.store.Page(r.Context(), offset, limit)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError, "read failed")
		return
	}
	if page == nil {
		page = []model.Measurement{}
	}

	httpx.RespondJSON(w, http.StatusOK, ListResponse{
		Measurements: page,
		Offset:       offset,
		Limit:        limit,
		Total:        total,
	})
}

// HandleStats handles GET /v1/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError, "stats failed")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

// HandleBoundaries handles GET /v1/boundaries.
func (h *Handler) HandleBoundaries(w http.ResponseWriter, r *http.Request) {
	bounds, err := h.store.Boundaries(r.Context())
	if err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError, "boundaries failed")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, bounds)
}

// DeleteResponse reports how many rows a delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// HandleDelete handles DELETE /v1/measurements?before=<epoch-ms>.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("before")
	if raw == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "before parameter is required")
		return
	}
	before, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || before <= 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "before must be a positive epoch-millisecond timestamp")
		return
	}

	deleted, err := h.store.DeleteBefore(r.Context(), before)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError, "delete failed")
		return
	}

	h.logger.Info("measurements deleted", slog.Int("deleted", deleted), slog.Int64("before", before))
	httpx.RespondJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
