package upload

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleRunWithoutUploader(t *testing.T) {
	h := NewHandler(nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", nil)
	rec := httptest.NewRecorder()
	h.HandleRun(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "not configured")
}

func TestHandleRunWrongMethod(t *testing.T) {
	h := NewHandler(nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/upload", nil)
	rec := httptest.NewRecorder()
	h.HandleRun(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRunDrains(t *testing.T) {
	store := seedStore(t, 6)
	sender := &scriptedSender{results: []RequestResult{ResultSuccess}}
	u := NewUploader(store, sender, newRecordingReporter(), testLogger())
	h := NewHandler(u, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", nil)
	rec := httptest.NewRecorder()
	h.HandleRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary UploadSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, ResultSuccess, summary.Result)
	require.Equal(t, 6, summary.Uploaded)
	require.Equal(t, 6, summary.Deleted)
}

func TestHandleRunReportsFailure(t *testing.T) {
	store := seedStore(t, 6)
	sender := &scriptedSender{results: []RequestResult{ResultServerError}}
	u := NewUploader(store, sender, newRecordingReporter(), testLogger())
	h := NewHandler(u, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", nil)
	rec := httptest.NewRecorder()
	h.HandleRun(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var summary UploadSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, ResultServerError, summary.Result)
	require.Zero(t, summary.Uploaded)
}
