package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	notificationmodels "workguard/internal/notification/models"
	"workguard/pkg/attrs"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/requestcontext"
)

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks server-side failures as span errors. Expected rejections
// (bad password, invalidated session) are recorded as an attribute only.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if de, ok := dErrors.From(err); ok && de.Code != dErrors.CodeInternal {
			span.SetAttributes(attribute.String("workguard.error_code", string(de.Code)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func (s *Service) observeLogin(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome, start)
	}
}

// gateRejected logs, counts and marks the span for one refused request. kv
// are extra slog key/value pairs.
func (s *Service) gateRejected(ctx context.Context, reason string, kv ...any) {
	if s.metrics != nil {
		s.metrics.IncGateRejection(reason)
	}
	event := []attribute.KeyValue{attribute.String("workguard.reject_reason", reason)}
	if status, ok := attrs.String(kv, "status"); ok {
		event = append(event, attribute.String("workguard.session_status", status))
	}
	trace.SpanFromContext(ctx).AddEvent("gate.rejected", trace.WithAttributes(event...))

	args := append([]any{"reason", reason, "request_id", requestcontext.RequestID(ctx)}, kv...)
	s.logger.InfoContext(ctx, "session gate rejected request", args...)
}

// notifyAdmins never fails the caller: errors are logged and counted.
func (s *Service) notifyAdmins(ctx context.Context, draft notificationmodels.Draft) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.FanOut(ctx, draft); err != nil {
		if s.metrics != nil {
			s.metrics.IncFanOutFailure(string(draft.Type))
		}
		s.logger.ErrorContext(ctx, "failed to notify admins",
			"error", err,
			"type", draft.Type,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
