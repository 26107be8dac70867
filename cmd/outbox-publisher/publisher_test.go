package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type fakeTx struct{ pingErr error }

func (f fakeTx) Ping(context.Context) error { return f.pingErr }

func (fakeTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeSender struct {
	errs   []error
	sent   []*gcppubsub.Message
	topics []string
}

func (*fakeSender) Ping(context.Context) error { return nil }

func (f *fakeSender) Send(_ context.Context, topic string, msg *gcppubsub.Message) error {
	f.sent = append(f.sent, msg)
	f.topics = append(f.topics, topic)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeOutbox) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct{ entries []models.OutboxDLQ }

func (f *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

func orderCreatedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderCreatedEvent{OrderID: orderID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

type harness struct {
	pub    *Publisher
	sender *fakeSender
	outbox *fakeOutbox
	dlq    *fakeDLQ
	reg    *prometheus.Registry
}

func newHarness(t *testing.T, rows []models.OutboxEvent, sendErrs ...error) harness {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "storefront-order-events"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h := harness{
		sender: &fakeSender{errs: sendErrs},
		outbox: &fakeOutbox{rows: rows},
		dlq:    &fakeDLQ{},
		reg:    prometheus.NewRegistry(),
	}
	h.pub, err = NewPublisher(PublisherParams{
		Config:   config.OutboxConfig{BatchSize: 10, MaxAttempts: 3, PollIntervalMS: 5},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Format: "json"}),
		DB:       fakeTx{},
		Sender:   h.sender,
		Outbox:   h.outbox,
		DLQ:      h.dlq,
		Registry: reg,
		Metrics:  metrics.NewOutboxMetrics(h.reg),
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return h
}

func (h harness) count(t *testing.T, outcome string) float64 {
	t.Helper()
	mfs, err := h.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != "storefront_outbox_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestDrainContinuesAfterTransientFailure(t *testing.T) {
	rows := []models.OutboxEvent{orderCreatedRow(t, 0), orderCreatedRow(t, 0)}
	h := newHarness(t, rows, errors.New("unavailable"), nil)

	handled, err := h.pub.drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 rows handled, got %d", handled)
	}
	if len(h.outbox.failed) != 1 || h.outbox.failed[0] != rows[0].ID {
		t.Fatalf("first row should be marked failed: %v", h.outbox.failed)
	}
	if len(h.outbox.published) != 1 || h.outbox.published[0] != rows[1].ID {
		t.Fatalf("second row should be published: %v", h.outbox.published)
	}
	if len(h.dlq.entries) != 0 {
		t.Fatal("transient failure must not dead-letter")
	}
	if h.count(t, metrics.OutboxRetry) != 1 || h.count(t, metrics.OutboxPublished) != 1 {
		t.Fatal("outcome counters not recorded")
	}
}

func TestSendCarriesAttributesAndOrderingKey(t *testing.T) {
	row := orderCreatedRow(t, 0)
	h := newHarness(t, []models.OutboxEvent{row})

	if _, err := h.pub.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(h.sender.sent))
	}
	msg := h.sender.sent[0]
	if h.sender.topics[0] != "storefront-order-events" {
		t.Fatalf("unexpected topic %q", h.sender.topics[0])
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("missing event_type attribute: %v", msg.Attributes)
	}
	if msg.Attributes["event_id"] == "" {
		t.Fatal("missing event_id attribute")
	}
	if msg.OrderingKey != row.AggregateID.String() {
		t.Fatalf("ordering key should be the aggregate id, got %q", msg.OrderingKey)
	}
}

func TestUnresolvableRowIsDeadLettered(t *testing.T) {
	row := orderCreatedRow(t, 0)
	row.EventType = "bogus"
	h := newHarness(t, []models.OutboxEvent{row})

	if _, err := h.pub.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(h.sender.sent) != 0 {
		t.Fatal("unresolvable row must not be sent")
	}
	if len(h.dlq.entries) != 1 || h.dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non-retryable dlq entry, got %+v", h.dlq.entries)
	}
	if len(h.outbox.terminal) != 1 || h.outbox.terminal[0] != row.ID {
		t.Fatal("row should be marked terminal")
	}
}

func TestPermanentSendErrorIsDeadLettered(t *testing.T) {
	row := orderCreatedRow(t, 0)
	h := newHarness(t, []models.OutboxEvent{row}, registry.NewNonRetryableError(errors.New("no publisher")))

	if _, err := h.pub.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(h.dlq.entries) != 1 || h.dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non-retryable dlq entry, got %+v", h.dlq.entries)
	}
	if len(h.outbox.failed) != 0 {
		t.Fatal("permanent failure must not be retried")
	}
}

func TestLastAttemptIsDeadLettered(t *testing.T) {
	row := orderCreatedRow(t, 2)
	h := newHarness(t, []models.OutboxEvent{row}, errors.New("deadline exceeded"))

	if _, err := h.pub.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(h.dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(h.dlq.entries))
	}
	entry := h.dlq.entries[0]
	if entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts, got %s", entry.ErrorReason)
	}
	if entry.EventID != row.ID || entry.AttemptCount != 2 {
		t.Fatalf("dlq entry does not mirror the row: %+v", entry)
	}
	if h.count(t, metrics.OutboxDeadLettered) != 1 {
		t.Fatal("dead-letter counter not recorded")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := h.pub.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunFailsWhenDatabaseUnreachable(t *testing.T) {
	h := newHarness(t, nil)
	h.pub.db = fakeTx{pingErr: errors.New("refused")}
	if err := h.pub.Run(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestNewPublisherValidates(t *testing.T) {
	if _, err := NewPublisher(PublisherParams{}); err == nil {
		t.Fatal("expected error for empty params")
	}
}
