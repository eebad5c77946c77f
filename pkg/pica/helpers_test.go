package pica

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

// testLogger discards everything; tests assert behavior, not log output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a client pointed at a test server. Extra options are
// applied after the test defaults so callers can override them.
func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBaseURL(serverURL),
		WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
		WithLogger(testLogger()),
	}
	c, err := New("test-secret", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

// writePage writes one {rows, total} page.
func writePage(t *testing.T, w http.ResponseWriter, rows any, total int) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"rows": rows, "total": total}); err != nil {
		t.Errorf("failed to encode page: %v", err)
	}
}
