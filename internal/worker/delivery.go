package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/email"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/sms"
	pkgworker "github.com/jwalitptl/hospital-api/pkg/worker"
)

// NewBroker connects to redis when a URL is configured and falls back to
// dropping messages otherwise.
func NewBroker(ctx context.Context, cfg config.RedisConfig) (messaging.Broker, error) {
	if cfg.URL == "" {
		log.Warn().Msg("redis.url not set, events will not be published")
		return messaging.NopBroker{}, nil
	}
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, log.Logger)
	if err != nil {
		return nil, err
	}
	return broker, nil
}

// NewNotifier wires whichever delivery channels are configured.
func NewNotifier(cfg *config.Config, m *metrics.Metrics, l *logger.Logger) *notification.Service {
	var emailSvc email.Service
	if cfg.SMTP.Enabled() {
		emailSvc = email.NewSMTPService(cfg.SMTP)
	}

	var smsSvc sms.Sender
	if cfg.Twilio.Enabled() {
		smsSvc = sms.NewTwilioSender(sms.Config{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
		})
	}

	return notification.NewService(emailSvc, smsSvc, m, l)
}

// Delivery runs the outbox processor and the retention cleanup together.
type Delivery struct {
	processor *pkgworker.OutboxProcessor
	cleanup   *OutboxCleanupWorker
}

func NewDelivery(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	handler pkgworker.EventHandler,
	cfg *config.Config,
	l *logger.Logger,
	m *metrics.Metrics,
) *Delivery {
	processor := pkgworker.NewOutboxProcessor(repo, broker, handler, pkgworker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
		Channel:       cfg.Redis.Channel,
	}, l, m)

	var cleanup *OutboxCleanupWorker
	if cfg.Outbox.Retention > 0 && cfg.Outbox.CleanupInterval > 0 {
		cleanup = NewOutboxCleanupWorker(repo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, l, m)
	}

	return &Delivery{processor: processor, cleanup: cleanup}
}

// Run blocks until ctx is cancelled and both loops have returned.
func (d *Delivery) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.processor.Start(ctx)
	}()

	if d.cleanup != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.cleanup.Start(ctx)
		}()
	}

	wg.Wait()
}
