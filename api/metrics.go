package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "visual-task-quest/api"
	movesSpanName    = "board.task.move"
	movesEventName   = "move.request.metrics"
	movesEventDomain = "vtq"
	movesRoute       = "/api/boards/:boardID/tasks/:taskID/move"
)

// moveRequestMetrics collects timing and outcome data for one move request
// and emits it as both a span and a structured log event.
type moveRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	authDuration   time.Duration
	fetchDuration  time.Duration
	commitDuration time.Duration
	intercepted    bool
	errorStage     string
}

func newMoveRequestMetrics(ctx context.Context, logger *log.Logger) (*moveRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, movesSpanName)
	return &moveRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *moveRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *moveRequestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *moveRequestMetrics) ObserveCommit(d time.Duration) {
	if d > 0 {
		m.commitDuration = d
	}
}

func (m *moveRequestMetrics) SetIntercepted(intercepted bool) {
	m.intercepted = intercepted
}

func (m *moveRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finalizes the span and writes the observability event. It must be
// called exactly once per request.
func (m *moveRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", movesRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64("vtq.move.total_ms", totalMs),
		attribute.Bool("vtq.move.intercepted", m.intercepted),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("vtq.move.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("vtq.move.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.commitDuration > 0 {
		attrs = append(attrs, attribute.Float64("vtq.move.commit_ms", durationToMillis(m.commitDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("vtq.move.error_stage", m.errorStage))
	}

	severityText := "INFO"
	severityNumber := 9
	if err != nil || status >= 500 {
		severityText = "ERROR"
		severityNumber = 17
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(attrs...))
		if err != nil || status >= 500 {
			m.span.SetStatus(codes.Error, m.errorStage)
			if err != nil {
				m.span.RecordError(err)
			}
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      movesEventName,
		"event.domain":    movesEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	if severityText == "ERROR" {
		entry.Error("observability.event")
	} else {
		entry.Info("observability.event")
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
