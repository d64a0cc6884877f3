package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanExporter writes finished spans to a slog.Logger at debug level. Failed
// spans carry their status; the error itself reaches the log through the Sink.
type SpanExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*SpanExporter)(nil)

// NewSpanExporter returns a SpanExporter writing to logger.
func NewSpanExporter(logger *slog.Logger) *SpanExporter {
	return &SpanExporter{logger: logger}
}

// NewTracerProvider returns a provider that exports every span synchronously
// through a SpanExporter. Callers shut it down when done.
func NewTracerProvider(logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewSpanExporter(logger)))
}

// ExportSpans logs one record per span.
func (e *SpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []slog.Attr{
			slog.String("span", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}

		if st := s.Status(); st.Code == codes.Error {
			attrs = append(attrs, slog.String("status", st.Description))
		}
		e.logger.LogAttrs(ctx, slog.LevelDebug, "span ended", attrs...)
	}
	return nil
}

// Shutdown is a no-op; records are written as spans end.
func (e *SpanExporter) Shutdown(context.Context) error {
	return nil
}
