// Package upload sends measurement batches to an OpenCellID-compatible
// collection endpoint and classifies each response.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/report"
)

const (
	// acceptedBody is the exact (case-insensitive) body the server
	// returns when a batch is accepted.
	acceptedBody = "0,OK"

	// invalidTokenBody marks a credential rejection regardless of the
	// status code it arrives with.
	invalidTokenBody = "Err: Invalid token"

	// maxResponseBytes bounds how much of a response body is read. The
	// endpoint answers with short status lines, anything bigger is a
	// proxy or portal page.
	maxResponseBytes = 1 << 20
)

// Client posts CSV measurement batches to a collection endpoint.
//
// An http.Client is built per call. Upload attempts are minutes apart,
// so there is no connection worth pooling, and a fresh client picks up
// network changes between attempts.
type Client struct {
	url      string
	appID    string
	apiKey   string
	reporter report.Reporter
	logger   *slog.Logger

	now func() time.Time
}

// NewClient creates an upload client for the given endpoint. appID
// identifies this collector to the server, apiKey authenticates it.
func NewClient(url, appID, apiKey string, reporter report.Reporter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:      url,
		appID:    appID,
		apiKey:   apiKey,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
}

// UploadMeasurements posts one CSV payload and classifies the response.
// Transport failures are reported with suppression and come back as
// ResultFailure; they never surface as errors.
func (c *Client) UploadMeasurements(ctx context.Context, csvContent string) RequestResult {
	c.logger.Debug("sending upload request", "url", c.url, "bytes", len(csvContent))

	body, contentType, err := c.buildBody(csvContent)
	if err != nil {
		c.reporter.ReportSuppressed(fmt.Errorf("upload: build request body: %w", err))
		return ResultFailure
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		c.reporter.ReportSuppressed(fmt.Errorf("upload: build request: %w", err))
		return ResultFailure
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := newPerCallClient().Do(req)
	if err != nil {
		c.logger.Debug("upload request failed", "error", err)
		c.reporter.ReportSuppressed(fmt.Errorf("upload: %w", err))
		return ResultFailure
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Debug("reading upload response failed", "error", err)
		c.reporter.ReportSuppressed(fmt.Errorf("upload: read response: %w", err))
		return ResultFailure
	}

	result := c.classify(resp.StatusCode, string(raw))
	c.logger.Debug("upload response classified", "status", resp.StatusCode, "result", string(result))
	return result
}

// classify maps a response to a RequestResult. Rule order matters: an
// accepted body wins, then server errors, then credential rejections
// (by status or by body token), then request-shape errors, and finally
// everything else is a connection problem. Captive portal redirects
// (302) are not reported, they are routine on public networks.
func (c *Client) classify(statusCode int, body string) RequestResult {
	body = strings.TrimSpace(body)

	if statusCode == http.StatusOK && strings.EqualFold(body, acceptedBody) {
		return ResultSuccess
	}
	if statusCode >= 500 && statusCode <= 599 {
		return ResultServerError
	}
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden ||
		strings.EqualFold(body, invalidTokenBody) {
		c.reporter.Report(&RequestError{StatusCode: statusCode, Body: body})
		return ResultInvalidAPIKey
	}
	if statusCode == http.StatusBadRequest {
		c.reporter.Report(&RequestError{StatusCode: statusCode, Body: body})
		return ResultConfigurationError
	}
	if statusCode != http.StatusFound {
		c.reporter.Report(&RequestError{StatusCode: statusCode, Body: body})
	}
	return ResultConnectionError
}

// buildBody assembles the multipart form: the API key, the application
// ID, and the CSV payload as a text/csv file part whose name embeds the
// current epoch milliseconds.
func (c *Client) buildBody(csvContent string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField(config.UploadFieldAPIKey, c.apiKey); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(config.UploadFieldAppID, c.appID); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("%s%d.csv", config.ExportFilenamePrefix, c.now().UnixMilli())
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, config.UploadFieldDatafile, filename))
	header.Set("Content-Type", "text/csv")

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, csvContent); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func newPerCallClient() *http.Client {
	return &http.Client{
		Timeout: config.UploadConnTimeout + config.UploadReadTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: config.UploadConnTimeout,
			}).DialContext,
			ResponseHeaderTimeout: config.UploadReadTimeout,
		},
		// Redirects are classified, not followed. A captive portal 302
		// must reach classify as a 302.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
