package upload

import (
	"log/slog"
	"net/http"

	"github.com/hefei93/TowerCollector/pkg/httpx"
)

// Handler exposes manual upload runs over HTTP.
type Handler struct {
	uploader *Uploader
	logger   *slog.Logger
}

// NewHandler creates the upload HTTP handler. uploader may be nil when no
// upload endpoint is configured; requests then get a 503.
func NewHandler(uploader *Uploader, logger *slog.Logger) *Handler {
	return &Handler{
		uploader: uploader,
		logger:   logger.With(slog.String("component", "upload-handler")),
	}
}

// HandleRun handles POST /v1/upload: one synchronous drain of the store.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.uploader == nil {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "upload endpoint not configured")
		return
	}

	summary := h.uploader.RunOnce(r.Context())
	if summary.Result != ResultSuccess {
		httpx.RespondJSON(w, http.StatusBadGateway, summary)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, summary)
}
