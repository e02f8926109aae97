// Package consumer turns meeting events from Kafka into notifications.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/kafkax"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/notify"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink stores notifications for an event and dedupes by event id.
type Sink interface {
	Deliver(ctx context.Context, eventID, eventType string, recs []notify.Record) (bool, error)
}

type Consumer struct {
	reader Reader
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
	retry  time.Duration
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, sink Sink, cfg Config) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(logger, sink, reader)
}

func NewWithReader(logger *slog.Logger, sink Sink, reader Reader) *Consumer {
	return &Consumer{
		reader: reader,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		retry:  time.Second,
	}
}

// Run commits a message only after it was handled. Messages that can never
// be handled (bad payload, unknown type) are logged and committed.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			c.sleep(ctx)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error("event handling failed, will retry", "err", err, "topic", msg.Topic, "offset", msg.Offset)
			c.sleep(ctx)
			// Without a commit the group redelivers from the last committed offset.
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	recs, err := notify.Build(meta.EventType, msg.Value, c.now())
	if err != nil {
		c.logger.Warn("event dropped", "event_id", meta.EventID, "event_type", meta.EventType, "err", err)
		span.SetStatus(codes.Error, "dropped")
		return nil
	}

	fresh, err := c.sink.Deliver(ctxSpan, meta.EventID, meta.EventType, recs)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	c.logger.Info("notifications stored", "event_id", meta.EventID, "event_type", meta.EventType, "count", len(recs))
	return nil
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.retry)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
