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

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	sendTimeout        = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	maxJitter          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// sender delivers one message to a topic and waits for the server ack.
type sender interface {
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type PublisherParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Sender   sender
	Outbox   outboxStore
	DLQ      deadLetterStore
	Registry resolver
	Metrics  *metrics.OutboxMetrics
	Now      func() time.Time
}

// Publisher drains outbox_events into Pub/Sub. Rows are claimed with
// FOR UPDATE SKIP LOCKED so several publishers can run side by side.
type Publisher struct {
	logg        *logger.Logger
	db          txRunner
	sender      sender
	outbox      outboxStore
	dlq         deadLetterStore
	registry    resolver
	metrics     *metrics.OutboxMetrics
	now         func() time.Time
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewPublisher(p PublisherParams) (*Publisher, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Sender == nil:
		return nil, errors.New("pubsub sender is required")
	case p.Outbox == nil:
		return nil, errors.New("outbox repository is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	pub := &Publisher{
		logg:        p.Logger,
		db:          p.DB,
		sender:      p.Sender,
		outbox:      p.Outbox,
		dlq:         p.DLQ,
		registry:    p.Registry,
		metrics:     p.Metrics,
		now:         p.Now,
		batchSize:   p.Config.BatchSize,
		maxAttempts: p.Config.MaxAttempts,
		poll:        time.Duration(p.Config.PollIntervalMS) * time.Millisecond,
	}
	if pub.now == nil {
		pub.now = time.Now
	}
	if pub.batchSize <= 0 {
		pub.batchSize = defaultBatchSize
	}
	if pub.maxAttempts <= 0 {
		pub.maxAttempts = defaultMaxAttempts
	}
	if pub.poll <= 0 {
		pub.poll = defaultPoll
	}
	return pub, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch or a database error backs off.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := p.sender.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := p.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := p.drain(ctx)
		switch {
		case err != nil:
			p.metrics.BatchError()
			p.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled > 0:
			wait = p.poll
			continue
		default:
			wait = p.poll
		}

		if err := sleep(ctx, wait+time.Duration(rand.Int64N(int64(maxJitter)))); err != nil {
			return err
		}
	}
}

type outcome string

const (
	outcomePublished    outcome = metrics.OutboxPublished
	outcomeRetry        outcome = metrics.OutboxRetry
	outcomeDeadLettered outcome = metrics.OutboxDeadLettered
)

// drain handles one batch inside a single transaction and reports how many
// rows it touched. A row failing to publish never aborts the batch.
func (p *Publisher) drain(ctx context.Context) (int, error) {
	handled := 0
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := p.outbox.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		for _, row := range rows {
			result, err := p.handle(ctx, tx, row)
			if err != nil {
				return err
			}
			p.metrics.Event(string(row.EventType), string(result))
			handled++
		}
		return nil
	})
	return handled, err
}

func (p *Publisher) handle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	ctx = p.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := p.registry.Resolve(row)
	if err != nil {
		return outcomeDeadLettered, p.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}

	sendErr := p.send(ctx, row, resolved)
	if sendErr == nil {
		if err := p.outbox.MarkPublishedTx(tx, row.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		p.logg.Debug(ctx, "outbox event published")
		return outcomePublished, nil
	}

	var permanent registry.NonRetryableError
	if errors.As(sendErr, &permanent) {
		return outcomeDeadLettered, p.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, sendErr)
	}
	if row.AttemptCount+1 >= p.maxAttempts {
		return outcomeDeadLettered, p.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, sendErr))
	}

	p.logg.Warn(p.logg.WithField(ctx, "error", sendErr.Error()), "outbox publish failed, will retry")
	if err := p.outbox.MarkFailedTx(tx, row.ID, sendErr); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return outcomeRetry, nil
}

func (p *Publisher) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
		OrderingKey: row.AggregateID.String(),
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return p.sender.Send(sendCtx, resolved.Descriptor.Topic, msg)
}

// deadLetter copies the row into outbox_dlq and retires it.
func (p *Publisher) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      p.now().UTC(),
	}
	if err := p.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := p.outbox.MarkTerminalTx(tx, row.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
