package gateway

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestSpanName    = "function.request"
	requestEventName   = "function.request.metrics"
	requestEventDomain = "blinders.gateway"
	tracerName         = "github.com/peakee-labs/blinders/gateway"
)

type metricsKey struct{}

type requestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	route           string
	start           time.Time
	authDuration    time.Duration
	handlerDuration time.Duration
	errorStage      string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*requestMetrics, context.Context) {
	m := &requestMetrics{logger: logger, route: route, start: time.Now()}
	ctx, m.span = otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	return m, context.WithValue(ctx, metricsKey{}, m)
}

func metricsFrom(ctx context.Context) *requestMetrics {
	m, _ := ctx.Value(metricsKey{}).(*requestMetrics)
	return m
}

// ObserveAuth records how long authentication took for the current request.
func ObserveAuth(ctx context.Context, d time.Duration) {
	if m := metricsFrom(ctx); m != nil && d > 0 {
		m.authDuration = d
	}
}

// SetErrorStage records where the current request was rejected.
func SetErrorStage(ctx context.Context, stage string) {
	if m := metricsFrom(ctx); m != nil && stage != "" {
		m.errorStage = stage
	}
}

func (m *requestMetrics) ObserveHandler(d time.Duration) {
	if d > 0 {
		m.handlerDuration = d
	}
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("function.total_ms", total),
	}
	fields := map[string]any{
		"http.route":        m.route,
		"http.status_code":  status,
		"function.total_ms": total,
	}
	if m.authDuration > 0 {
		v := durationToMillis(m.authDuration)
		attrs = append(attrs, attribute.Float64("function.auth_ms", v))
		fields["function.auth_ms"] = v
	}
	if m.handlerDuration > 0 {
		v := durationToMillis(m.handlerDuration)
		attrs = append(attrs, attribute.Float64("function.handler_ms", v))
		fields["function.handler_ms"] = v
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("function.error_stage", m.errorStage))
		fields["function.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
		fields["error.message"] = err.Error()
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(append(attrs,
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
	)...))
	switch {
	case err != nil:
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		m.span.SetStatus(codes.Error, http.StatusText(status))
	default:
		m.span.SetStatus(codes.Ok, "")
	}
	traceID := m.span.SpanContext().TraceID()
	m.span.End()

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      fields,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	})
	if traceID.IsValid() {
		entry = entry.WithField("trace_id", traceID.String())
	}
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
