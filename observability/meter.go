package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StreamStats summarizes one finished stream.
type StreamStats struct {
	Events       int
	Deltas       int
	Bytes        int64
	EmittedBytes int
	Duration     time.Duration
}

// StreamMetrics holds the instruments recorded once per stream.
type StreamMetrics struct {
	events       metric.Int64Counter
	deltas       metric.Int64Counter
	emittedBytes metric.Int64Counter
	duration     metric.Float64Histogram
	errors       metric.Int64Counter
}

// NewStreamMetrics creates the stream instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	events, err := meter.Int64Counter("llm.stream.events",
		metric.WithDescription("Frame tokenizer events dispatched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.stream.events counter: %w", err)
	}
	deltas, err := meter.Int64Counter("llm.stream.deltas",
		metric.WithDescription("Deltas merged into the cumulative document"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.stream.deltas counter: %w", err)
	}
	emitted, err := meter.Int64Counter("llm.stream.emitted_bytes",
		metric.WithDescription("Text bytes written to the sink"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.stream.emitted_bytes counter: %w", err)
	}
	duration, err := meter.Float64Histogram("llm.stream.duration",
		metric.WithDescription("Duration of streams in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.stream.duration histogram: %w", err)
	}
	errs, err := meter.Int64Counter("llm.stream.errors",
		metric.WithDescription("Streams that ended with an error, by code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.stream.errors counter: %w", err)
	}
	return &StreamMetrics{
		events:       events,
		deltas:       deltas,
		emittedBytes: emitted,
		duration:     duration,
		errors:       errs,
	}, nil
}

// RecordStream records one finished stream. A nil receiver records nothing.
func (m *StreamMetrics) RecordStream(ctx context.Context, dialect, model string, s StreamStats, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrDialect, dialect),
		attribute.String(AttrModel, model),
	)
	m.events.Add(ctx, int64(s.Events), attrs)
	m.deltas.Add(ctx, int64(s.Deltas), attrs)
	m.emittedBytes.Add(ctx, int64(s.EmittedBytes), attrs)
	m.duration.Record(ctx, s.Duration.Seconds(), attrs)
	if err != nil {
		code := string(apperrors.From(err).Code)
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrDialect, dialect),
			attribute.String("error.code", code),
		))
	}
}
