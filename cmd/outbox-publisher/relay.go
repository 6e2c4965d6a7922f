package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type outcome string

const (
	outcomePublished    outcome = "published"
	outcomeRetry        outcome = "retry"
	outcomeDeadLettered outcome = "dead_lettered"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicLookup interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams bundles what the notification relay needs.
type RelayParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          txRunner
	PubSub      topicLookup
	Repository  outboxRepository
	Registry    eventResolver
	DLQ         dlqRepository
	Metrics     *metrics.FulfillmentMetrics
	PublisherOf func(topic string) publisher
}

// Relay moves committed outbox rows to the notifications topic. Rows are
// locked per batch so several replicas can drain the table together.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      topicLookup
	repo        outboxRepository
	registry    eventResolver
	dlq         dlqRepository
	metrics     *metrics.FulfillmentMetrics
	publisherOf func(topic string) publisher
	batchSize   int
	maxAttempts int
	interval    time.Duration
	now         func() time.Time
}

type batchStats struct {
	fetched      int
	published    int
	retried      int
	deadLettered int
}

func (b *batchStats) record(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeDeadLettered:
		b.deadLettered++
	}
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	}

	publisherOf := params.PublisherOf
	if publisherOf == nil {
		publisherOf = orderedPublisherFor(params.PubSub)
	}

	cfg := params.Config.Outbox
	relay := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		registry:    params.Registry,
		dlq:         params.DLQ,
		metrics:     params.Metrics,
		publisherOf: publisherOf,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		interval:    defaultPollInterval,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if cfg.BatchSize > 0 {
		relay.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		relay.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		relay.interval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return relay, nil
}

// Run drains the outbox until ctx is canceled. Full batches are followed
// immediately by the next one; failures back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		r.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		r.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	backoff := r.interval
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		stats, err := r.drain(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox batch failed", err)
			backoff = nextBackoff(backoff, r.interval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = r.interval

		if stats.fetched > 0 {
			r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
				"fetched":       stats.fetched,
				"published":     stats.published,
				"retried":       stats.retried,
				"dead_lettered": stats.deadLettered,
			}), "outbox.batch")
		}
		if stats.fetched == r.batchSize {
			continue
		}
		if err := sleep(ctx, withJitter(r.interval)); err != nil {
			return err
		}
	}
}

// drain publishes one locked batch. A failed event never blocks the rest.
func (r *Relay) drain(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		stats.fetched = len(events)
		for _, event := range events {
			result, err := r.deliver(ctx, tx, event)
			if err != nil {
				return err
			}
			stats.record(result)
			r.metrics.IncOutbox(string(event.EventType), string(result))
		}
		return nil
	})
	return stats, err
}

func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	})

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	publishErr := r.publish(ctx, event, resolved)
	if publishErr == nil {
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.logg.Info(ctx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(publishErr, &nonRetryable) {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, publishErr)
	}
	if event.AttemptCount+1 >= r.maxAttempts {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", publishErr))
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", publishErr.Error()), "outbox publish failed")
	if err := r.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      r.now(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publisherOf(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  messageAttributes(event, resolved),
		OrderingKey: orderingKey(event),
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

// orderingKey keeps one order's notifications in commit order. Restock
// events fan out unordered.
func orderingKey(event models.OutboxEvent) string {
	if event.AggregateType != enums.AggregateOrder {
		return ""
	}
	return "order:" + event.AggregateID.String()
}

// messageAttributes are what notification subscribers filter on, so the SMS
// sender can subscribe to out_for_delivery without decoding payloads.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	attrs := map[string]string{
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	if resolved.Envelope.EventID != "" {
		attrs["event_id"] = resolved.Envelope.EventID
		attrs["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}

	switch payload := resolved.Payload.(type) {
	case *payloads.OrderCreatedEvent:
		attrs["order_number"] = payload.OrderNumber
		attrs["user_id"] = payload.UserID.String()
		attrs["payment_method"] = string(payload.PaymentMethod)
	case *payloads.OrderStatusChangedEvent:
		attrs["order_number"] = payload.OrderNumber
		attrs["user_id"] = payload.UserID.String()
		attrs["status"] = string(payload.To)
	case *payloads.InventoryRestockedEvent:
		attrs["variant_id"] = payload.VariantID.String()
		attrs["sku"] = payload.SKU
	}
	return attrs
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int64N(int64(jitterWindow)))
}

func orderedPublisherFor(client topicLookup) func(topic string) publisher {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

func (g gcpPublisher) ResumePublish(key string) {
	g.p.ResumePublish(key)
}
