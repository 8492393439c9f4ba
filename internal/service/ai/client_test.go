package ai

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inventorycounter/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.InferenceURL = server.URL
	cfg.InferenceModel = "shelf/4"
	cfg.InferenceAPIKey = "secret"
	cfg.InferenceTimeout = timeout

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestDetect_Success(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/shelf/4" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "secret" || r.URL.Query().Get("format") != "json" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Unexpected content type %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != base64.StdEncoding.EncodeToString(jpeg) {
			t.Errorf("Body is not the base64 frame: %s", body)
		}

		w.Write([]byte(`{"predictions":[
			{"x":100,"y":120.5,"width":40,"height":60,"confidence":0.93,"class":"box","class_id":0},
			{"x":10,"y":12,"width":4,"height":6,"confidence":0.5,"class":"apple"}
		],"image":{"width":640,"height":480}}`))
	}, time.Second)

	detections, err := client.Detect(context.Background(), jpeg)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(detections))
	}
	d := detections[0]
	if d.Class != "box" || d.Confidence != 0.93 || d.X != 100 || d.Y != 120.5 || d.Width != 40 || d.Height != 60 {
		t.Errorf("Unexpected detection %+v", d)
	}
}

func TestDetect_EmptyPredictions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	}, time.Second)

	detections, err := client.Detect(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("Expected no detections, got %d", len(detections))
	}
}

func TestDetect_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := client.Detect(context.Background(), []byte("jpeg"))
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if IsContractError(err) {
		t.Errorf("Timeout must not be a contract violation: %v", err)
	}
}

func TestDetect_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, time.Second)

	_, err := client.Detect(context.Background(), []byte("jpeg"))
	if err == nil || IsContractError(err) {
		t.Errorf("Expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestDetect_MalformedIsContractError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[{"x":1,"y":2,"width":3,"confidence":0.9,"class":"box"}]}`))
	}, time.Second)

	_, err := client.Detect(context.Background(), []byte("jpeg"))
	if !IsContractError(err) {
		t.Errorf("Expected contract error for missing height, got %v", err)
	}
}

func TestParsePredictions_Violations(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", `{"predictions":`, "body"},
		{"missing envelope", `{"message":"Forbidden"}`, "predictions"},
		{"not array", `{"predictions":{"x":1}}`, "predictions"},
		{"prediction not object", `{"predictions":[3]}`, "prediction"},
		{"missing class", `{"predictions":[{"x":1,"y":2,"width":3,"height":4,"confidence":0.9}]}`, "class"},
		{"class not string", `{"predictions":[{"x":1,"y":2,"width":3,"height":4,"confidence":0.9,"class":7}]}`, "class"},
		{"string number", `{"predictions":[{"x":"1","y":2,"width":3,"height":4,"confidence":0.9,"class":"box"}]}`, "x"},
		{"confidence too high", `{"predictions":[{"x":1,"y":2,"width":3,"height":4,"confidence":1.5,"class":"box"}]}`, "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePredictions([]byte(tt.body))
			ce, ok := err.(*ContractError)
			if !ok {
				t.Fatalf("Expected *ContractError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Expected field %s, got %s (%v)", tt.field, ce.Field, ce)
			}
		})
	}
}
