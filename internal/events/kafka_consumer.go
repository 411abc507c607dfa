package events

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. An error means the message could not be handled yet and must
// be delivered again; messages that can never be handled should be logged and return nil.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Default retry delays for a failing handler.
const (
	DefaultRetryBackoff    = time.Second
	DefaultMaxRetryBackoff = 30 * time.Second
)

// KafkaConsumer reads the order topic as part of a consumer group.
type KafkaConsumer struct {
	reader     MessageReader
	logger     *zap.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewKafkaConsumer joins groupID on topic.
func NewKafkaConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaConsumer {
	return NewKafkaConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), logger)
}

func NewKafkaConsumerWithReader(reader MessageReader, logger *zap.Logger) *KafkaConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaConsumer{
		reader:     reader,
		logger:     logger,
		backoff:    DefaultRetryBackoff,
		maxBackoff: DefaultMaxRetryBackoff,
	}
}

// SetRetryBackoff sets the first delay before a failed message is retried and the cap the
// doubling delay stops at.
func (c *KafkaConsumer) SetRetryBackoff(initial, maxDelay time.Duration) {
	c.backoff = initial
	c.maxBackoff = maxDelay
}

// Run hands every message to handler until ctx is cancelled. A message is committed only
// after the handler succeeds; a failing handler is retried with a growing delay, holding the
// partition, until it succeeds or ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context, handler Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		routingKey := string(m.Key)
		for _, h := range m.Headers {
			if h.Key == "routing_key" {
				routingKey = string(h.Value)
			}
		}

		if !c.handle(ctx, handler, routingKey, m) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle runs handler until it succeeds. It reports false if ctx ended first.
func (c *KafkaConsumer) handle(ctx context.Context, handler Handler, routingKey string, m kafka.Message) bool {
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, routingKey, m.Value)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("order event handler failed, retrying",
			zap.String("routing_key", routingKey),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay *= 2
		if delay > c.maxBackoff {
			delay = c.maxBackoff
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
