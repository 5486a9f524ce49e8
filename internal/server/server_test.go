package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Koba-gh/bedrock-json-cdk/internal/metrics"
	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
	"github.com/Koba-gh/bedrock-json-cdk/internal/table"
	"github.com/Koba-gh/bedrock-json-cdk/internal/testutil"
)

type fakeProcessor struct {
	err error
	got storage.ObjectRef
}

func (p *fakeProcessor) Process(ctx context.Context, ref storage.ObjectRef) (*pipeline.Result, error) {
	p.got = ref
	if p.err != nil {
		return nil, p.err
	}
	return &pipeline.Result{Ref: ref, Item: table.Item{Name: ref.Key}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, New(Config{}).Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want %q", health.Status, "ok")
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		code   int
		status string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{
			"all healthy",
			map[string]Check{"table": func(context.Context) error { return nil }},
			http.StatusOK, "ok",
		},
		{
			"one failing",
			map[string]Check{
				"table":   func(context.Context) error { return nil },
				"storage": func(context.Context) error { return errors.New("dial tcp: refused") },
			},
			http.StatusServiceUnavailable, "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(Config{Checks: tt.checks}).Handler(), http.MethodGet, "/ready", "")
			if rec.Code != tt.code {
				t.Fatalf("ready status = %d, want %d", rec.Code, tt.code)
			}
			var health HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if health.Status != tt.status {
				t.Errorf("health.Status = %q, want %q", health.Status, tt.status)
			}
			if tt.status == "degraded" && health.Checks["storage"] != "unhealthy" {
				t.Errorf("health.Checks = %v", health.Checks)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.RecordObject("image", "", time.Second)

	resp := do(t, New(Config{Registry: rec.Registry()}).Handler(), http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `pcspecs_objects_processed_total{media="image",status="success"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", resp.Body.String())
	}

	if code := do(t, New(Config{}).Handler(), http.MethodGet, "/metrics", "").Code; code != http.StatusNotFound {
		t.Errorf("metrics without registry = %d, want 404", code)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"ok", `{"bucket":"uploads","key":"a.png"}`, nil, http.StatusOK},
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"missing key", `{"bucket":"uploads"}`, nil, http.StatusBadRequest},
		{"input error", `{"bucket":"b","key":"a.docx"}`, fmt.Errorf("x: %w", pipeline.ErrUnsupportedMedia), http.StatusUnprocessableEntity},
		{"extraction error", `{"bucket":"b","key":"a.png"}`, pipeline.ErrNoToolCall, http.StatusBadGateway},
		{"upstream error", `{"bucket":"b","key":"a.png"}`, errors.New("throttled"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{err: tt.err}
			rec := do(t, New(Config{Processor: proc}).Handler(), http.MethodPost, "/extract", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.code, rec.Body.String())
			}
			if tt.code == http.StatusOK {
				var res pipeline.Result
				if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if res.Item.Name != "a.png" || proc.got.Bucket != "uploads" {
					t.Errorf("result = %+v, processed %+v", res, proc.got)
				}
			}
		})
	}
}

func TestServer_Lifecycle(t *testing.T) {
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	srv := New(Config{Addr: "127.0.0.1:" + port})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	url := "http://" + srv.Addr() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d: %s", resp.StatusCode, body)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}
	if err := srv.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	cancel()
	if err := testutil.WaitForShutdown(done, 5*time.Second); err != nil {
		t.Fatalf("Start() returned %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestCORS(t *testing.T) {
	origin := "http://localhost:3000"
	h := New(Config{CORSOrigins: []string{origin}}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
		t.Errorf("allowed origin = %q, want %q", got, origin)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got %q, want no CORS header", got)
	}

	rec = do(t, New(Config{}).Handler(), http.MethodGet, "/health", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS disabled but header = %q", got)
	}
}
