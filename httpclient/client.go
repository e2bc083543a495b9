package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/net/http2"

	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/logger"
	"github.com/kbukum/llmstream/resilience"
	"github.com/kbukum/llmstream/version"
)

// HeaderRequestID carries the per-request correlation ID.
const HeaderRequestID = "X-Request-ID"

// Client is a configurable HTTP client with auth, retry and streaming support.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	config       Config
	service      string
	cb           *resilience.CircuitBreaker
	rl           *resilience.RateLimiter
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	h2, err := http2.ConfigureTransports(transport)
	if err != nil {
		return nil, fmt.Errorf("httpclient: configure http2: %w", err)
	}
	h2.ReadIdleTimeout = cfg.ReadIdleTimeout

	service := "upstream"
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		service = u.Host
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		// Streams outlive any fixed timeout; the context bounds them.
		streamClient: &http.Client{Transport: transport},
		config:       cfg,
		service:      service,
	}
	if cfg.CircuitBreaker != nil {
		cbCfg := *cfg.CircuitBreaker
		if cbCfg.Name == "" {
			cbCfg.Name = service
		}
		if cbCfg.FailureIf == nil {
			cbCfg.FailureIf = apperrors.IsRetryable
		}
		if cbCfg.OnStateChange == nil {
			log := logger.Get("httpclient")
			cbCfg.OnStateChange = func(name string, from, to resilience.State) {
				log.Warn("circuit state changed", logger.Fields("service", name, "from", from.String(), "to", to.String()))
			}
		}
		c.cb = resilience.NewCircuitBreaker(cbCfg)
	}
	if cfg.RateLimiter != nil {
		c.rl = resilience.NewRateLimiter(*cfg.RateLimiter)
	}
	return c, nil
}

// Do executes an HTTP request and returns the complete response. Retryable
// failures are retried when the config carries a retry policy.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.config.Retry != nil {
		cfg := *c.config.Retry
		if cfg.RetryIf == nil {
			cfg.RetryIf = apperrors.IsRetryable
		}
		if cfg.OnRetry == nil {
			log := logger.Get("httpclient").WithContext(ctx)
			cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
				log.Warn("retrying request", logger.Fields("attempt", attempt, "path", req.Path, "delay_ms", delay.Milliseconds(), logger.FieldError, err.Error()))
			}
		}
		return resilience.Retry(ctx, cfg, func() (*Response, error) {
			return c.doOnce(ctx, req)
		})
	}
	return c.doOnce(ctx, req)
}

// DoStream executes an HTTP request and returns the open response. The caller
// must close it. A non-2xx status is read in full and returned as an error.
// Only opening the stream counts toward the circuit breaker.
func (c *Client) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.admit(ctx); err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		appErr := classifyTransport(ctx, c.service, err)
		c.record(appErr)
		return nil, appErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		appErr := ClassifyStatusCode(c.service, resp.StatusCode, body)
		c.record(appErr)
		return nil, appErr
	}
	c.record(nil)
	return &StreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
	}, nil
}

// Unwrap returns the underlying *http.Client used for buffered requests.
func (c *Client) Unwrap() *http.Client {
	return c.httpClient
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) doOnce(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.admit(ctx); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, httpReq)
	c.record(err)
	return resp, err
}

// admit waits for the rate limiter and reserves a circuit breaker call. A
// nil return must be followed by one record.
func (c *Client) admit(ctx context.Context) error {
	if c.rl != nil {
		if err := c.rl.Wait(ctx); err != nil {
			return classifyTransport(ctx, c.service, err)
		}
	}
	if c.cb != nil {
		if err := c.cb.Allow(); err != nil {
			appErr := apperrors.ServiceUnavailable(c.service).WithCause(err)
			appErr.Retryable = false
			return appErr
		}
	}
	return nil
}

func (c *Client) record(err error) {
	if c.cb != nil {
		c.cb.Record(err)
	}
}

func (c *Client) send(ctx context.Context, httpReq *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, c.service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ConnectionFailed(c.service).WithCause(fmt.Errorf("read response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}
	if classErr := ClassifyStatusCode(c.service, resp.StatusCode, body); classErr != nil {
		return result, classErr
	}
	return result, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := req.Path
	if c.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		target = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, apperrors.InvalidInput("body", err.Error())
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperrors.InvalidInput("path", err.Error())
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	httpReq.Header.Set("User-Agent", "llmstream/"+version.Version)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get(HeaderRequestID) == "" {
		id := logger.RequestIDFromContext(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		httpReq.Header.Set(HeaderRequestID, id)
	}

	auth := c.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	auth.apply(httpReq)

	return httpReq, nil
}

// encodeBody converts a body value into an io.Reader and content type.
func encodeBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "application/json", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
