package eventstreamutils

import (
	"log/slog"

	"github.com/eduspark/portal/pkg/eventstream"
	"github.com/eduspark/portal/pkg/eventstream/kafka"
	"github.com/eduspark/portal/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// Brokers enables Kafka publishing when non-empty.
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured and the
// no-op publisher otherwise.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	if len(o.Brokers) == 0 {
		return nop.NewPublisher(o.Logger), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: o.Brokers,
		Topic:   o.Topic,
		Logger:  o.Logger,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
