// Package publisher streams fan-out events to Kafka so other consumers (a
// realtime push gateway, a SIEM) can react without polling the inbox.
// Publishing is best-effort: the database rows are the source of truth.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workguard/internal/notification/metrics"
	"workguard/internal/notification/models"
	"workguard/internal/platform/kafka"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/circuit"
	"workguard/pkg/requestcontext"
)

//go:generate mockgen -source=publisher.go -destination=mocks/mocks.go -package=mocks Producer

// Producer is the slice of the Kafka client the publisher needs.
type Producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// ErrCircuitOpen is returned while the stream is considered down.
var ErrCircuitOpen = errors.New("notification publisher circuit open")

// Event is the record written for one fan-out.
type Event struct {
	EventID        string             `json:"eventId"`
	Type           models.Type        `json:"type"`
	Priority       models.Priority    `json:"priority"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	ActionRequired bool               `json:"actionRequired"`
	RelatedData    models.RelatedData `json:"relatedData,omitempty"`
	Recipients     []id.UserID        `json:"recipients"`
	CreatedAt      time.Time          `json:"createdAt"`
}

type Publisher struct {
	producer Producer
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func New(producer Producer, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		breaker:  circuit.New("notification-publisher"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes one event describing the batch. All rows in a batch come
// from the same draft.
func (p *Publisher) Publish(ctx context.Context, batch []*models.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	if !p.breaker.Allow() {
		if p.metrics != nil {
			p.metrics.IncPublishDropped()
		}
		return ErrCircuitOpen
	}

	first := batch[0]
	event := Event{
		EventID:        first.ID.String(),
		Type:           first.Type,
		Priority:       first.Priority,
		Title:          first.Title,
		Message:        first.Message,
		ActionRequired: first.ActionRequired,
		RelatedData:    first.RelatedData,
		CreatedAt:      first.CreatedAt,
	}
	for _, n := range batch {
		event.Recipients = append(event.Recipients, n.UserID)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification event: %w", err)
	}

	headers := map[string]string{"event-type": string(event.Type)}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		headers["request-id"] = requestID
	}
	err = p.producer.Publish(ctx, kafka.Message{
		Key:     []byte(event.Type),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		_, change := p.breaker.RecordFailure()
		if p.metrics != nil {
			p.metrics.IncPublishFailures()
			if change.Opened {
				p.metrics.SetCircuitOpen(true)
			}
		}
		if change.Opened {
			p.logger.WarnContext(ctx, "notification publisher circuit opened",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return fmt.Errorf("publish notification event: %w", err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		if p.metrics != nil {
			p.metrics.SetCircuitOpen(false)
		}
		p.logger.InfoContext(ctx, "notification publisher circuit closed")
	}
	return nil
}
