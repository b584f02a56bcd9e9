package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hefei93/TowerCollector/pkg/model"
)

func sampleMeasurement(measuredAt int64) model.Measurement {
	return model.Measurement{
		MCC:        260,
		MNC:        2,
		LAC:        10100,
		CellID:     424242,
		SignalDBM:  -87,
		Latitude:   52.2297,
		Longitude:  21.0122,
		MeasuredAt: measuredAt,
	}
}

func TestClientSend(t *testing.T) {
	var receivedPayload map[string]json.RawMessage
	var receivedAuth, receivedContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %v, want POST", r.Method)
		}
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		if err := json.Unmarshal(body, &receivedPayload); err != nil {
			t.Fatalf("parsing body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key")
	batch := []model.Measurement{sampleMeasurement(1000), sampleMeasurement(2000)}

	if err := client.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if receivedContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", receivedContentType)
	}
	if receivedAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want Bearer secret-key", receivedAuth)
	}

	raw, ok := receivedPayload["measurements"]
	if !ok {
		t.Fatal("payload does not contain measurements array")
	}
	var sent []model.Measurement
	if err := json.Unmarshal(raw, &sent); err != nil {
		t.Fatalf("parsing measurements: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("received %d measurements, want 2", len(sent))
	}
	if sent[0].MeasuredAt != 1000 || sent[1].MeasuredAt != 2000 {
		t.Errorf("measurements arrived out of order: %v", sent)
	}
}

func TestClientSendNoAPIKey(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if err := client.Send(context.Background(), []model.Measurement{sampleMeasurement(1000)}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if receivedAuth != "" {
		t.Errorf("Authorization = %q, want empty", receivedAuth)
	}
}

func TestClientSendEmptyBatch(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if err := client.Send(context.Background(), nil); err != nil {
		t.Errorf("Send(nil) error = %v", err)
	}
	if err := client.Send(context.Background(), []model.Measurement{}); err != nil {
		t.Errorf("Send(empty) error = %v", err)
	}
	if called {
		t.Error("empty batch should not reach the server")
	}
}

func TestClientSendRejected(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
		wantInErr  string
	}{
		{name: "202 accepted", statusCode: http.StatusAccepted},
		{name: "200 ok", statusCode: http.StatusOK},
		{name: "400 bad request", statusCode: http.StatusBadRequest, body: `{"error":"validation_failed"}`, wantErr: true, wantInErr: "status 400"},
		{name: "507 storage full", statusCode: http.StatusInsufficientStorage, wantErr: true, wantInErr: "status 507"},
		{name: "500 server error", statusCode: http.StatusInternalServerError, wantErr: true, wantInErr: "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if tt.body != "" {
					io.WriteString(w, tt.body)
				}
			}))
			defer server.Close()

			client := NewClient(server.URL, "")
			err := client.Send(context.Background(), []model.Measurement{sampleMeasurement(1000)})

			if !tt.wantErr {
				if err != nil {
					t.Errorf("Send() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Send() expected error for status %d, got nil", tt.statusCode)
			}
			if !strings.Contains(err.Error(), tt.wantInErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantInErr)
			}
			if tt.body != "" && !strings.Contains(err.Error(), "validation_failed") {
				t.Errorf("error = %v, want response body included", err)
			}
		})
	}
}

func TestClientSendContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Send(ctx, []model.Measurement{sampleMeasurement(1000)})
	if err == nil {
		t.Error("Send() expected error for cancelled context, got nil")
	}
}
