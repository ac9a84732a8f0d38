package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is how many failed deliveries an event gets before it stays FAILED.
	MaxRetries int
	// Channel is the broker channel events are published on.
	Channel string
}

// EventHandler runs after an event has been published.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *model.OutboxEvent) error
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	handler EventHandler
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	handler EventHandler,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.Channel == "" {
		config.Channel = "appointments"
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		handler: handler,
		config:  config,
		logger:  logger.With("outbox"),
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor",
		"batch_size", p.config.BatchSize,
		"channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessEvents claims one batch of pending events and delivers it.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
	}
	if len(events) > 0 {
		p.logger.Debug("Processed outbox batch", "claimed", len(events))
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(pending))
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:      event.ID.String(),
		Type:    event.EventType,
		Payload: json.RawMessage(event.Payload),
	}

	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, p.config.Channel, msg)
	})
	if err != nil {
		p.metrics.BrokerPublishes.WithLabelValues("error").Inc()
		return p.fail(ctx, event, fmt.Errorf("failed to publish event: %w", err))
	}
	p.metrics.BrokerPublishes.WithLabelValues("success").Inc()

	if p.handler != nil {
		if err := p.handler.HandleEvent(ctx, event); err != nil {
			return p.fail(ctx, event, err)
		}
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("mark_processed", "error").Inc()
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	p.metrics.DatabaseOperations.WithLabelValues("mark_processed", "success").Inc()
	return nil
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) error {
	p.metrics.OutboxEventsFailed.Inc()
	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()

	if err := p.repo.MarkFailed(ctx, event.ID, cause.Error(), p.config.MaxRetries); err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("mark_failed", "error").Inc()
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
	return cause
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
