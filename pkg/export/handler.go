package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/httpx"
)

// exportFormat describes one downloadable format. The map key doubles as
// the file extension.
type exportFormat struct {
	contentType  string
	newFormatter func() Formatter
}

var exportFormats = map[string]exportFormat{
	"gpx": {
		contentType:  "application/gpx+xml",
		newFormatter: func() Formatter { return NewGPXFormatter() },
	},
	"csv": {
		contentType:  "text/csv",
		newFormatter: func() Formatter { return NewCSVFormatter() },
	},
}

// Handler serves the export endpoints.
type Handler struct {
	exporter   *Exporter
	exportsDir string
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates the export HTTP handler. Files produced by
// HandleExportFile land in exportsDir.
func NewHandler(exporter *Exporter, exportsDir string, logger *slog.Logger) *Handler {
	return &Handler{
		exporter:   exporter,
		exportsDir: exportsDir,
		logger:     logger.With(slog.String("component", "export-handler")),
		now:        time.Now,
	}
}

// HandleDownload handles GET /v1/export?format=gpx|csv. The export is
// streamed straight into the response; once the first byte is out, errors
// can only be logged and the client sees a truncated body.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name, f, ok := requestedFormat(r)
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "format must be gpx or csv")
		return
	}

	filename := h.exportFilename(name)
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	device := NewWriterDevice(w)
	result := h.exporter.Generate(r.Context(), f.newFormatter(), device)

	switch result.Status {
	case StatusNoData:
		// The device was never opened, so headers are still ours.
		w.Header().Del("Content-Disposition")
		httpx.RespondErrorString(w, http.StatusNotFound, "no measurements to export")
	case StatusFailed:
		if device.Written() == 0 {
			w.Header().Del("Content-Disposition")
			httpx.RespondErrorString(w, http.StatusInternalServerError, result.Message)
			return
		}
		h.logger.Error("export download failed mid-stream",
			slog.String("reason", string(result.Reason)),
			slog.String("error", result.Message))
	case StatusCancelled:
		h.logger.Info("export download cancelled", slog.String("format", name))
	}
}

// fileExportResponse is the body returned by HandleExportFile.
type fileExportResponse struct {
	Result
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// HandleExportFile handles POST /v1/export/files?format=gpx|csv. The
// export is written into the exports directory and served under
// /exports/ afterwards.
func (h *Handler) HandleExportFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name, f, ok := requestedFormat(r)
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "format must be gpx or csv")
		return
	}

	filename := h.exportFilename(name)
	device := NewFileDevice(filepath.Join(h.exportsDir, filename))
	result := h.exporter.Generate(r.Context(), f.newFormatter(), device)

	switch result.Status {
	case StatusNoData:
		httpx.RespondErrorString(w, http.StatusNotFound, "no measurements to export")
	case StatusFailed:
		httpx.RespondJSON(w, http.StatusInternalServerError, result)
	default:
		h.logger.Info("export file written",
			slog.String("filename", filename), slog.String("status", string(result.Status)))
		httpx.RespondJSON(w, http.StatusCreated, fileExportResponse{
			Result:   result,
			Filename: filename,
			URL:      "/exports/" + filename,
		})
	}
}

func (h *Handler) exportFilename(ext string) string {
	return config.ExportFilenamePrefix + strconv.FormatInt(h.now().UnixMilli(), 10) + "." + ext
}

func requestedFormat(r *http.Request) (string, exportFormat, bool) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = "gpx"
	}
	f, ok := exportFormats[name]
	return name, f, ok
}
