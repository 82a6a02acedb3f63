package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agleyzer/seqplay/internal/metrics"
	"github.com/agleyzer/seqplay/internal/playout"
	"github.com/agleyzer/seqplay/internal/sequence"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func createTestPlayer(t *testing.T, m *metrics.Metrics) *playout.Player {
	t.Helper()

	seq := sequence.New("test", []sequence.Descriptor{
		{
			Name:       "seg1",
			Source:     "https://example.com/seg1.ts",
			Duration:   300 * time.Millisecond,
			Transition: &sequence.TransitionSpec{Duration: 100 * time.Millisecond},
		},
		{Name: "seg2", Source: "https://example.com/seg2.ts", Duration: 300 * time.Millisecond},
	})

	p, err := playout.New(seq, 10, m, createTestLogger())
	if err != nil {
		t.Fatalf("Failed to create test player: %v", err)
	}
	if err := p.Start(0); err != nil {
		t.Fatalf("Failed to start test player: %v", err)
	}
	return p
}

type failingSource struct{}

func (failingSource) Generate() (string, error) { return "", errors.New("broken") }

func (failingSource) GetStats() map[string]any { return map[string]any{"error": "broken"} }

func TestNew(t *testing.T) {
	p := createTestPlayer(t, nil)
	logger := createTestLogger()

	srv := New(p, 8080, nil, logger)

	if srv.source != p {
		t.Error("Source not set correctly")
	}
	if srv.port != 8080 {
		t.Error("Port not set correctly")
	}
	if srv.logger != logger {
		t.Error("Logger not set correctly")
	}
}

func TestHandlePlaylist(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 8080, nil, createTestLogger())

	req := httptest.NewRequest("GET", "/playlist.m3u8", nil)
	w := httptest.NewRecorder()

	srv.handlePlaylist(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Expected Content-Type 'application/vnd.apple.mpegurl', got '%s'", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-cache") {
		t.Errorf("Expected Cache-Control with 'no-cache', got '%s'", cc)
	}
	if cors := resp.Header.Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Errorf("Expected CORS header '*', got '%s'", cors)
	}

	body := w.Body.String()
	if !strings.Contains(body, "#EXTM3U") {
		t.Error("Response body missing #EXTM3U tag")
	}
	if !strings.Contains(body, "https://example.com/seg1.ts") {
		t.Error("Response body missing the playing clip")
	}
}

func TestHandlePlaylist_Error(t *testing.T) {
	srv := New(failingSource{}, 8080, nil, createTestLogger())

	w := httptest.NewRecorder()
	srv.handlePlaylist(w, httptest.NewRequest("GET", "/playlist.m3u8", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 8080, nil, createTestLogger())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	srv.handleHealth(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}

	var health map[string]any
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", health["status"])
	}

	stats, ok := health["stats"].(map[string]any)
	if !ok {
		t.Fatal("Stats is not a map")
	}

	expectedFields := []string{"sequence", "phase", "index", "clips", "promotions", "overlap_start", "surfaces"}
	for _, field := range expectedFields {
		if _, ok := stats[field]; !ok {
			t.Errorf("Stats missing field '%s'", field)
		}
	}
}

func TestHandleHealth_AfterPromotion(t *testing.T) {
	p := createTestPlayer(t, nil)
	srv := New(p, 8080, nil, createTestLogger())

	for i := 0; i < 4; i++ {
		p.Advance()
	}

	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]any
	json.NewDecoder(w.Body).Decode(&health)
	stats := health["stats"].(map[string]any)

	if index := stats["index"].(float64); index != 1 {
		t.Errorf("Expected index 1, got %v", index)
	}
	if promotions := stats["promotions"].(float64); promotions != 1 {
		t.Errorf("Expected promotions 1, got %v", promotions)
	}
}

func TestHandleHealth_Error(t *testing.T) {
	srv := New(failingSource{}, 8080, nil, createTestLogger())

	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]any
	json.NewDecoder(w.Body).Decode(&health)
	if health["status"] != "error" {
		t.Errorf("Expected status 'error', got '%v'", health["status"])
	}
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := createTestPlayer(t, metrics.New(reg))
	srv := New(p, 8080, reg, createTestLogger())
	p.Advance()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"seqplay_frames_total 1", "seqplay_clips_started_total 1", "seqplay_live_clips 2"} {
		if !strings.Contains(body, name) {
			t.Errorf("Metrics output missing %q", name)
		}
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 8080, nil, createTestLogger())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without a gatherer, got %d", w.Code)
	}
}

func TestHandleClusterStatus(t *testing.T) {
	p := createTestPlayer(t, nil)
	p.SetClusterInfo(func() map[string]any {
		return map[string]any{"node_id": "node1", "is_leader": true, "cursor": 0}
	})
	srv := New(p, 8080, nil, createTestLogger())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/cluster/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var status map[string]any
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode cluster status: %v", err)
	}
	if status["node_id"] != "node1" {
		t.Errorf("Expected node_id node1, got %v", status["node_id"])
	}
	if status["is_leader"] != true {
		t.Errorf("Expected is_leader true, got %v", status["is_leader"])
	}
}

func TestHandleClusterStatus_NotClustered(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 8080, nil, createTestLogger())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/cluster/status", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without cluster mode, got %d", w.Code)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 8080, nil, createTestLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test"))
	})

	wrapped := srv.loggingMiddleware(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "test" {
		t.Errorf("Expected body 'test', got '%s'", w.Body.String())
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	wrapped := &responseWriter{
		ResponseWriter: httptest.NewRecorder(),
		statusCode:     http.StatusOK,
	}

	wrapped.WriteHeader(http.StatusNotFound)

	if wrapped.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code 404, got %d", wrapped.statusCode)
	}
}

func TestServer_Integration(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 0, nil, createTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Expected nil or ErrServerClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not stop within timeout")
	}
}

func TestHandlePlaylist_WhilePlaying(t *testing.T) {
	p := createTestPlayer(t, nil)
	srv := New(p, 8080, nil, createTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		srv.handlePlaylist(w, httptest.NewRequest("GET", "/playlist.m3u8", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}

		time.Sleep(50 * time.Millisecond)
	}

	cancel()
}

func TestHandleHealth_ConcurrentRequests(t *testing.T) {
	srv := New(createTestPlayer(t, nil), 8080, nil, createTestLogger())

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			w := httptest.NewRecorder()
			srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
