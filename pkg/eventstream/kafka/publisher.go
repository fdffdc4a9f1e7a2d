// Package kafka publishes turn events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/eduspark/portal/pkg/eventstream"
)

const headerEventType = "event_type"

// MessageWriter is the part of kafka-go's Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Zero uses 10 seconds.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Publisher writes turn events as JSON messages keyed by turn id, so every
// event for a turn lands on the same partition.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher returns a Publisher writing to cfg.Topic on cfg.Brokers.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, cfg), nil
}

// NewPublisherWithWriter returns a Publisher over an existing writer.
func NewPublisherWithWriter(w MessageWriter, cfg Config) *Publisher {
	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	l := cfg.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &Publisher{writer: w, timeout: timeout, logger: l}
}

func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding turn event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.TurnID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing turn event: %w", err)
	}

	p.logger.Debug("published turn event", "event_id", event.EventID, "turn_id", event.TurnID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
