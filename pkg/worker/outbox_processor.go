package worker

import (
	"context"
	"time"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/messaging"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: 5 * time.Second,
		MaxRetries:   3,
	}
}

// OutboxProcessor drains pending outbox events and publishes them to the
// message broker. Events that exhaust their retries are marked failed and
// left in the table for inspection.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
	config  OutboxProcessorConfig
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	config OutboxProcessorConfig,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxProcessorConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultOutboxProcessorConfig().PollInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultOutboxProcessorConfig().MaxRetries
	}
	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		logger:  logger,
		metrics: metrics,
		config:  config,
	}
}

// Start blocks until ctx is cancelled, polling for pending events on
// every tick.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("outbox processor started",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox batch")
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	events, err := p.repo.GetPending(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		start := time.Now()
		if err := p.processEvent(ctx, event); err != nil {
			p.metrics.OutboxEventsFailed.Inc()
			p.logger.Error(err, "failed to process outbox event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount,
			)
			continue
		}
		p.metrics.OutboxEventsProcessed.Inc()
		p.metrics.OutboxProcessingLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.broker.Publish(ctx, event.EventType, event.Payload); err != nil {
		mark := p.repo.MarkRetry
		if event.RetryCount+1 >= p.config.MaxRetries {
			mark = p.repo.MarkFailed
		}
		if markErr := mark(ctx, event.ID, err.Error()); markErr != nil {
			p.logger.Error(markErr, "failed to record outbox event failure",
				"event_id", event.ID.String(),
			)
		}
		return err
	}
	return p.repo.MarkProcessed(ctx, event.ID)
}
