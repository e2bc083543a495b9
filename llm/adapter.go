package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/httpclient"
	"github.com/kbukum/llmstream/logger"
	"github.com/kbukum/llmstream/observability"
)

// Sentinel errors.
var (
	ErrNoDialect    = errors.New("llm: dialect is required")
	ErrNoStreamBody = errors.New("llm: expected stream body but got nil")
)

// Adapter is a config-driven LLM client that works with any provider via the Dialect pattern.
//
// It composes the HTTP client (auth, retry, HTTP/2, request IDs) with a
// Dialect that handles provider-specific request/response mapping and stream
// merging.
type Adapter struct {
	client    *httpclient.Client
	dialect   Dialect
	name      string
	model     string
	temp      float64
	maxTokens int
	metrics   *observability.StreamMetrics
	log       *logger.Logger
}

// New creates an LLM adapter from config using the global dialect registry.
// The config's Dialect field must match a registered dialect name.
func New(cfg Config) (*Adapter, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := GetDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	return newAdapter(dialect, cfg)
}

// NewWithDialect creates an LLM adapter with an explicit dialect instance.
// Use this when you don't want to rely on the global dialect registry.
func NewWithDialect(dialect Dialect, cfg Config) (*Adapter, error) {
	if dialect == nil {
		return nil, ErrNoDialect
	}
	if cfg.Dialect == "" {
		cfg.Dialect = dialect.Name()
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newAdapter(dialect, cfg)
}

func newAdapter(dialect Dialect, cfg Config) (*Adapter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = dialect.DefaultBaseURL()
	}
	auth := cfg.Auth
	if auth == nil && cfg.APIKey != "" {
		auth = dialect.Auth(cfg.APIKey)
	}
	headers := map[string]string{}
	if hp, ok := dialect.(HeaderProvider); ok {
		maps.Copy(headers, hp.Headers())
	}
	maps.Copy(headers, cfg.Headers)

	client, err := httpclient.New(httpclient.Config{
		BaseURL:         baseURL,
		Timeout:         cfg.Timeout,
		ReadIdleTimeout: cfg.ReadIdleTimeout,
		Auth:            auth,
		Headers:         headers,
		Retry:           cfg.Retry,
		CircuitBreaker:  cfg.CircuitBreaker,
		RateLimiter:     cfg.RateLimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create http client: %w", err)
	}

	metrics, err := observability.NewStreamMetrics(observability.Meter(observability.InstrumentationName))
	if err != nil {
		logger.Warn("stream metrics disabled", logger.ErrorFields("new_stream_metrics", err))
	}

	return &Adapter{
		client:    client,
		dialect:   dialect,
		name:      cfg.Name,
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
		metrics:   metrics,
		log:       logger.Get("llm").WithFields(logger.Fields(logger.FieldDialect, dialect.Name())),
	}, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return a.name }

// IsAvailable checks if the LLM provider is reachable through the dialect's
// health endpoint. Dialects without one are assumed available.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	hp := a.dialect.HealthPath()
	if hp == "" {
		return true
	}
	_, err := a.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: hp})
	return err == nil
}

// Close releases resources.
func (a *Adapter) Close(_ context.Context) error {
	a.client.Close()
	return nil
}

// Execute sends a completion request and returns the full response.
func (a *Adapter) Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	a.applyDefaults(&req)
	req.Stream = false

	ctx, span := observability.StartSpan(ctx, observability.SpanExecute, a.dialect.Name(), req.Model)
	resp, err := a.execute(ctx, req)
	if resp != nil {
		span.SetAttributes(attribute.String(observability.AttrFinishReason, resp.FinishReason))
	}
	observability.EndSpan(span, err)
	if err != nil {
		return CompletionResponse{}, err
	}
	return *resp, nil
}

func (a *Adapter) execute(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body, err := a.dialect.BuildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}

	httpResp, err := a.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   a.dialect.ChatPath(req),
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: execute: %w", err)
	}

	doc, err := document.Parse(httpResp.Body)
	if err != nil {
		return nil, apperrors.StreamDecode(err)
	}
	if err := providerError(a.dialect.Name(), doc); err != nil {
		return nil, err
	}

	result, err := a.dialect.ParseResponse(doc)
	if err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}
	return result, nil
}

// StreamTo sends a streaming completion request and writes generated text to
// sink as it arrives. It blocks until the stream ends and returns the response
// assembled from every delta, which equals what Execute would have returned.
//
// When the stream fails after deltas were merged, the best-effort response
// read from the partial document is returned together with the error.
func (a *Adapter) StreamTo(ctx context.Context, req CompletionRequest, sink io.Writer) (*CompletionResponse, error) {
	a.applyDefaults(&req)
	req.Stream = true

	body, err := a.open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()
	return a.consume(ctx, req, body, sink)
}

// Stream sends a completion request and returns a channel of streamed chunks.
// The final chunk has Done set and carries the assembled Response, or carries
// Err. The channel is closed after the final chunk.
func (a *Adapter) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	a.applyDefaults(&req)
	req.Stream = true

	body, err := a.open(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = body.Close() }()

		resp, err := a.consume(ctx, req, body, chanSink(ctx, ch))
		final := StreamChunk{Done: err == nil, Response: resp, Err: err}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Dialect returns the dialect used by this adapter.
func (a *Adapter) Dialect() Dialect { return a.dialect }

// HTTP returns the underlying HTTP client for advanced use cases.
func (a *Adapter) HTTP() *httpclient.Client { return a.client }

// --- internal ---

func (a *Adapter) applyDefaults(req *CompletionRequest) {
	if req.Model == "" {
		req.Model = a.model
	}
	if req.Temperature == 0 {
		req.Temperature = a.temp
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = a.maxTokens
	}
}

// open sends the streaming request and returns the live response body.
func (a *Adapter) open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	body, err := a.dialect.BuildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("llm: build stream request: %w", err)
	}

	accept := "text/event-stream"
	if a.dialect.StreamFormat() == StreamNDJSON {
		accept = "application/x-ndjson"
	}
	resp, err := a.client.DoStream(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    a.dialect.ChatPath(req),
		Headers: map[string]string{"Accept": accept},
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: stream: %w", err)
	}
	if resp.Body == nil {
		return nil, ErrNoStreamBody
	}
	return resp.Body, nil
}

// consume runs the tokenizer and merge engine over body, records telemetry
// and maps the cumulative document to a response.
func (a *Adapter) consume(ctx context.Context, req CompletionRequest, body io.Reader, sink io.Writer) (*CompletionResponse, error) {
	name := a.dialect.Name()
	ctx, span := observability.StartSpan(ctx, observability.SpanStream, name, req.Model)
	log := a.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldModel, req.Model))
	log.Debug("stream started", logger.Fields("format", a.dialect.StreamFormat().String()))
	start := time.Now()

	st := newStreamState(name, a.dialect.NewMerger(sink))
	parser := st.parser(a.dialect.StreamFormat())
	_, err := parser.ReadFrom(body)
	parser.Free()

	var resp *CompletionResponse
	switch {
	case err != nil:
		if _, ok := apperrors.AsAppError(err); !ok {
			err = fmt.Errorf("llm: read stream: %w", err)
		}
		if st.deltas > 0 {
			resp, _ = a.dialect.ParseResponse(st.engine.Body())
		}
	case st.deltas == 0:
		err = apperrors.StreamIncomplete("stream ended before any delta")
	default:
		resp, err = a.dialect.ParseResponse(st.engine.Body())
		if err != nil {
			err = fmt.Errorf("llm: parse response: %w", err)
		}
	}

	stats := observability.StreamStats{
		Events:   parser.Events(),
		Deltas:   st.deltas,
		Bytes:    parser.Bytes(),
		Duration: time.Since(start),
	}
	if e, ok := st.engine.(interface{ Emitted() int }); ok {
		stats.EmittedBytes = e.Emitted()
	}
	a.metrics.RecordStream(ctx, name, req.Model, stats, err)

	span.SetAttributes(
		attribute.Int(observability.AttrEvents, stats.Events),
		attribute.Int(observability.AttrDeltas, stats.Deltas),
		attribute.Int(observability.AttrEmittedBytes, stats.EmittedBytes),
	)
	if resp != nil {
		span.SetAttributes(attribute.String(observability.AttrFinishReason, resp.FinishReason))
	}
	observability.EndSpan(span, err)

	fields := logger.Fields(
		logger.FieldEvents, stats.Events,
		logger.FieldDeltas, stats.Deltas,
		logger.FieldBytes, stats.Bytes,
		logger.FieldEmitted, stats.EmittedBytes,
		logger.FieldDuration, stats.Duration.Milliseconds(),
	)
	if err != nil {
		log.WithError(err).Warn("stream failed", fields)
	} else {
		log.Debug("stream finished", fields)
	}
	return resp, err
}

// providerError returns the error object a provider embedded in a payload,
// if any: {"error": {"message": ...}} or {"error": "..."}.
func providerError(provider string, doc *document.Value) error {
	e := doc.Get("error")
	if e == nil || e.IsNull() {
		return nil
	}
	msg := e.Get("message").Text()
	if msg == "" {
		msg = e.Text()
	}
	if msg == "" {
		msg = e.String()
	}
	return apperrors.ProviderError(provider, msg)
}

// chanSink forwards each text fragment to a StreamChunk channel.
func chanSink(ctx context.Context, ch chan<- StreamChunk) delta.SinkFunc {
	return func(text string) error {
		select {
		case ch <- StreamChunk{Content: text}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
