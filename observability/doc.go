// Package observability wires OpenTelemetry tracing and metrics for streams.
//
// Setup installs global tracer and meter providers that export over OTLP/HTTP:
//
//	shutdown, err := observability.Setup(ctx, cfg)
//	defer shutdown(context.Background())
//
// Stream instruments record per-stream event counts, emitted bytes and
// duration:
//
//	m, err := observability.NewStreamMetrics(observability.Meter(observability.InstrumentationName))
//	m.RecordStream(ctx, "openai", "gpt-4o", stats, err)
//
// Health:
//
//	health := observability.NewServiceHealth("llmstream", version.Version)
//	health.AddComponent(observability.Health{Name: "llm", Status: observability.HealthStatusUp})
package observability
