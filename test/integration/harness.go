// Package integration provides integration testing utilities for seqplay.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestHarness manages the test environment for integration tests.
type TestHarness struct {
	t           *testing.T
	httpServer  *http.Server
	httpPort    int
	seqplayCmd  *exec.Cmd
	seqplayPort int
	tempDir     string
	cancel      context.CancelFunc
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	return &TestHarness{
		t:           t,
		httpPort:    findAvailablePort(t),
		seqplayPort: findAvailablePort(t),
		tempDir:     t.TempDir(),
	}
}

// WriteFile writes content into the harness temp directory and returns its path.
func (h *TestHarness) WriteFile(name, content string) string {
	h.t.Helper()

	path := filepath.Join(h.tempDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// StartHTTPServer serves the temp directory and returns the URL of name.
func (h *TestHarness) StartHTTPServer(playlistContent string, playlistName string) string {
	h.t.Helper()

	h.WriteFile(playlistName, playlistContent)

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(h.tempDir)))

	h.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", h.httpPort),
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		if err := h.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.t.Logf("HTTP server error: %v", err)
		}
	}()

	waitForServer(h.t, fmt.Sprintf("http://localhost:%d", h.httpPort), 5*time.Second)
	h.t.Logf("HTTP server started on port %d", h.httpPort)

	return fmt.Sprintf("http://localhost:%d/%s", h.httpPort, playlistName)
}

// StartSeqplay starts the seqplay binary playing source with extra flags.
func (h *TestHarness) StartSeqplay(source string, args ...string) {
	h.t.Helper()

	binaryPath := findSeqplayBinary(h.t)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	cmdArgs := append([]string{"--port", fmt.Sprintf("%d", h.seqplayPort)}, args...)
	cmdArgs = append(cmdArgs, source)
	h.seqplayCmd = exec.CommandContext(ctx, binaryPath, cmdArgs...)

	// Run from the temp dir so no stray seqplay.yaml is picked up
	h.seqplayCmd.Dir = h.tempDir
	h.seqplayCmd.Stdout = os.Stdout
	h.seqplayCmd.Stderr = os.Stderr

	if err := h.seqplayCmd.Start(); err != nil {
		h.t.Fatalf("failed to start seqplay: %v", err)
	}

	waitForServer(h.t, fmt.Sprintf("http://localhost:%d/health", h.seqplayPort), 10*time.Second)
	h.t.Logf("seqplay started on port %d", h.seqplayPort)
}

// FetchPlaylist fetches the as-run playlist from seqplay.
func (h *TestHarness) FetchPlaylist() string {
	h.t.Helper()
	return h.fetch("/playlist.m3u8")
}

// FetchHealth fetches the health endpoint and decodes the JSON response.
func (h *TestHarness) FetchHealth() map[string]any {
	h.t.Helper()

	var health map[string]any
	if err := json.Unmarshal([]byte(h.fetch("/health")), &health); err != nil {
		h.t.Fatalf("failed to decode health: %v", err)
	}
	return health
}

// FetchMetrics fetches the Prometheus exposition text.
func (h *TestHarness) FetchMetrics() string {
	h.t.Helper()
	return h.fetch("/metrics")
}

func (h *TestHarness) fetch(path string) string {
	h.t.Helper()

	url := fmt.Sprintf("http://localhost:%d%s", h.seqplayPort, path)
	resp, err := http.Get(url)
	if err != nil {
		h.t.Fatalf("failed to fetch %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("unexpected status code for %s: %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("failed to read %s body: %v", path, err)
	}

	return string(body)
}

// Cleanup stops all running services.
func (h *TestHarness) Cleanup() {
	h.t.Helper()

	if h.cancel != nil {
		h.cancel()
	}
	if h.seqplayCmd != nil && h.seqplayCmd.Process != nil {
		h.seqplayCmd.Process.Kill()
		h.seqplayCmd.Wait()
	}

	if h.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.httpServer.Shutdown(ctx)
	}
}

// WaitForCondition polls until a condition is met or timeout occurs.
func (h *TestHarness) WaitForCondition(condition func() bool, timeout time.Duration, description string) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}

		<-ticker.C
		if time.Now().After(deadline) {
			h.t.Fatalf("timeout waiting for condition: %s", description)
		}
	}
}

// findSeqplayBinary locates the seqplay binary.
func findSeqplayBinary(t *testing.T) string {
	t.Helper()

	candidates := []string{
		"../../seqplay",         // From test/integration
		"./seqplay",             // From project root
		"../seqplay",            // From test directory
		"./cmd/seqplay/seqplay", // Built in place
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, _ := filepath.Abs(path)
			t.Logf("Found seqplay binary at: %s", absPath)
			return absPath
		}
	}

	t.Fatal("seqplay binary not found. Run 'go build -o seqplay ./cmd/seqplay' first")
	return ""
}

// waitForServer waits for a server to become available.
func waitForServer(t *testing.T, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server at %s did not become available within %v", url, timeout)
}

// findAvailablePort finds an available TCP port.
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// ParsedPlaylist represents a parsed HLS playlist for testing.
type ParsedPlaylist struct {
	Version        int
	TargetDuration int
	MediaSequence  uint64
	PlaylistType   string
	Segments       []PlaylistSegment
	HasEndList     bool
}

// PlaylistSegment represents a segment in a playlist.
type PlaylistSegment struct {
	Duration      float64
	Title         string
	URL           string
	Discontinuity bool
}

// ParsePlaylist parses an HLS playlist into a structured format.
func ParsePlaylist(content string) *ParsedPlaylist {
	playlist := &ParsedPlaylist{
		Segments: []PlaylistSegment{},
	}

	var currentSegment *PlaylistSegment
	var nextSegmentHasDiscontinuity bool

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			fmt.Sscanf(line, "#EXT-X-VERSION:%d", &playlist.Version)

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			fmt.Sscanf(line, "#EXT-X-TARGETDURATION:%d", &playlist.TargetDuration)

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			fmt.Sscanf(line, "#EXT-X-MEDIA-SEQUENCE:%d", &playlist.MediaSequence)

		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			playlist.PlaylistType = strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:")

		case line == "#EXT-X-ENDLIST":
			playlist.HasEndList = true

		case line == "#EXT-X-DISCONTINUITY":
			nextSegmentHasDiscontinuity = true

		case strings.HasPrefix(line, "#EXTINF:"):
			currentSegment = &PlaylistSegment{}
			info := strings.TrimPrefix(line, "#EXTINF:")
			durationPart, title, _ := strings.Cut(info, ",")
			fmt.Sscanf(durationPart, "%f", &currentSegment.Duration)
			currentSegment.Title = title
			if nextSegmentHasDiscontinuity {
				currentSegment.Discontinuity = true
				nextSegmentHasDiscontinuity = false
			}

		case !strings.HasPrefix(line, "#"):
			if currentSegment != nil {
				currentSegment.URL = line
				playlist.Segments = append(playlist.Segments, *currentSegment)
				currentSegment = nil
			}
		}
	}

	return playlist
}
