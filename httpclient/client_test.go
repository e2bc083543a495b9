package httpclient

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/llmstream/document"
	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/logger"
	"github.com/kbukum/llmstream/resilience"
	"github.com/kbukum/llmstream/testutil"
)

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestClient_Do_PostDocument(t *testing.T) {
	var gotBody, gotCT, gotID, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotCT = r.Header.Get("Content-Type")
		gotID = r.Header.Get(HeaderRequestID)
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL + "/", Auth: BearerAuth("sk-test")})
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/v1/chat/completions",
		Body:   document.MustParse(`{"model":"m","stream":false}`),
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if !resp.IsSuccess() || string(resp.Body) != `{"ok":true}` {
		t.Errorf("response = %d %s", resp.StatusCode, resp.Body)
	}
	if gotBody != `{"model":"m","stream":false}` {
		t.Errorf("body = %s", gotBody)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if _, err := uuid.Parse(gotID); err != nil {
		t.Errorf("X-Request-ID %q is not a uuid", gotID)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_Do_PropagatesContextRequestID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderRequestID)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})
	ctx := logger.ContextWithRequestID(context.Background(), "req-42")
	if _, err := c.Do(ctx, Request{Path: "/"}); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if gotID != "req-42" {
		t.Errorf("got %q, want %q", gotID, "req-42")
	}
}

func TestClient_Do_RetriesRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Retry: &resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}})
	resp, err := c.Do(context.Background(), Request{Path: "/"})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if string(resp.Body) != "ok" || calls.Load() != 3 {
		t.Errorf("body=%q calls=%d", resp.Body, calls.Load())
	}
}

func TestClient_Do_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Retry: &resilience.RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}})
	_, err := c.Do(context.Background(), Request{Path: "/"})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeUnauthorized {
		t.Fatalf("got %v, want UNAUTHORIZED", err)
	}
	if appErr.Message != "bad key" {
		t.Errorf("message = %q", appErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_DoStream(t *testing.T) {
	srv := testutil.SSEServer(t, "data: {\"a\":1}\n\n", "data: [DONE]\n\n")
	c := newClient(t, Config{BaseURL: srv.URL, Timeout: time.Millisecond})

	stream, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Path: "/stream", Body: "{}"})
	if err != nil {
		t.Fatalf("DoStream() error: %v", err)
	}
	defer stream.Close()
	if !stream.IsEventStream() {
		t.Errorf("content type = %q", stream.ContentType())
	}
	body, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.HasSuffix(string(body), "data: [DONE]\n\n") {
		t.Errorf("body = %q", body)
	}
}

func TestClient_DoStream_ErrorStatus(t *testing.T) {
	srv := testutil.JSONServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)
	c := newClient(t, Config{BaseURL: srv.URL, Retry: DefaultRetryConfig()})

	_, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Path: "/"})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeRateLimited {
		t.Fatalf("got %v, want RATE_LIMITED", err)
	}
	if appErr.Details["provider_message"] != "slow down" {
		t.Errorf("details = %v", appErr.Details)
	}
}

func TestClient_QueryAndHeaders(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
	}))
	defer srv.Close()

	c := newClient(t, Config{
		BaseURL: srv.URL,
		Headers: map[string]string{"anthropic-version": "2023-06-01", "X-Trace": "client"},
		Auth:    APIKeyAuthQuery("g-key", "key"),
	})
	_, err := c.Do(context.Background(), Request{
		Path:    "/v1beta/models/m:streamGenerateContent",
		Query:   map[string]string{"alt": "sse"},
		Headers: map[string]string{"X-Trace": "request"},
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if got.URL.Query().Get("alt") != "sse" || got.URL.Query().Get("key") != "g-key" {
		t.Errorf("query = %q", got.URL.RawQuery)
	}
	if got.Header.Get("anthropic-version") != "2023-06-01" {
		t.Error("default header missing")
	}
	if got.Header.Get("X-Trace") != "request" {
		t.Errorf("request header should override default, got %q", got.Header.Get("X-Trace"))
	}
	if !strings.HasPrefix(got.Header.Get("User-Agent"), "llmstream/") {
		t.Errorf("User-Agent = %q", got.Header.Get("User-Agent"))
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Timeout != defaultTimeout || cfg.ReadIdleTimeout != defaultReadIdleTimeout {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if _, err := New(Config{BaseURL: "not a url"}); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestClient_Do_CircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 2, OpenTimeout: time.Hour}})
	for i := 0; i < 2; i++ {
		if _, err := c.Do(context.Background(), Request{Path: "/"}); err == nil {
			t.Fatal("expected upstream error")
		}
	}

	_, err := c.Do(context.Background(), Request{Path: "/"})
	if !stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	appErr, _ := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.ErrCodeServiceUnavailable || appErr.Retryable {
		t.Errorf("got %+v, want non-retryable SERVICE_UNAVAILABLE", appErr)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hits = %d, want 2", got)
	}
}

func TestClient_CircuitBreaker_IgnoresClientErrors(t *testing.T) {
	srv := testutil.JSONServer(t, http.StatusBadRequest, `{"error":{"message":"bad model"}}`)
	c := newClient(t, Config{BaseURL: srv.URL, CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 1}})

	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), Request{Path: "/"})
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			t.Fatalf("attempt %d: circuit opened on a client error", i)
		}
	}
}

func TestClient_DoStream_CircuitBreaker(t *testing.T) {
	srv := testutil.JSONServer(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`)
	c := newClient(t, Config{BaseURL: srv.URL, CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 1, OpenTimeout: time.Hour}})

	if _, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Path: "/"}); stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("first open: got %v, want upstream error", err)
	}
	if _, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Path: "/"}); !stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("got %v, want ErrCircuitOpen", err)
	}
}

func TestClient_RateLimiter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, RateLimiter: &resilience.RateLimiterConfig{Rate: 0.01, Burst: 1}})
	if _, err := c.Do(context.Background(), Request{Path: "/"}); err != nil {
		t.Fatalf("first Do() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Do(ctx, Request{Path: "/"}); err == nil {
		t.Fatal("expected the limiter to hold the second request past its deadline")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}
}
