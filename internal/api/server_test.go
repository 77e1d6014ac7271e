package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atelierhq/critique/internal/config"
	"github.com/atelierhq/critique/internal/journal"
	"github.com/atelierhq/critique/internal/model"
	"github.com/atelierhq/critique/internal/runner"
)

// stubSampler returns fixed draws so handlers behave deterministically.
type stubSampler struct {
	delay   time.Duration
	success bool
	noise   float64
}

func (s *stubSampler) Delay() time.Duration { return s.delay }
func (s *stubSampler) Succeeds() bool       { return s.success }
func (s *stubSampler) Noise() float64       { return s.noise }

// stubDeliverer counts delivery attempts instead of calling anything.
type stubDeliverer struct {
	mu    sync.Mutex
	calls []model.Outcome
}

func (d *stubDeliverer) Deliver(_ context.Context, out model.Outcome) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, out)
	return "test-attempt", nil
}

func (d *stubDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func newTestServer(t *testing.T) (*Server, *stubDeliverer) {
	t.Helper()
	return newTestServerWith(t, &stubSampler{delay: 5 * time.Millisecond, success: true, noise: 1.0})
}

func newTestServerWith(t *testing.T, s runner.Sampler) (*Server, *stubDeliverer) {
	t.Helper()
	j, err := journal.NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	d := &stubDeliverer{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	run := runner.New(s, d, j, logger)

	cfg := config.Config{
		ListenAddr: ":0",
		MinDelay:   5 * time.Second,
		MaxDelay:   10 * time.Second,
	}
	return NewServer(cfg, j, run, logger), d
}

// waitForDeliveries polls until the deliverer has seen n attempts.
func waitForDeliveries(t *testing.T, d *stubDeliverer, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("saw %d deliveries, want %d within %v", d.count(), n, timeout)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPanicRecovery(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/health", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /health: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Make a request to generate metrics.
	http.Get(ts.URL + "/health")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") && !strings.Contains(contentType, "text/openmetrics") {
		t.Errorf("Content-Type = %q, expected prometheus format", contentType)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	body := string(bodyBytes)

	if !strings.Contains(body, "critique_http_requests_total") {
		t.Error("metrics output missing critique_http_requests_total")
	}
	if !strings.Contains(body, "critique_http_request_duration_seconds") {
		t.Error("metrics output missing critique_http_request_duration_seconds")
	}
}
