// Package nop provides the publisher used when no event stream is configured.
package nop

import (
	"context"
	"log/slog"

	"github.com/eduspark/portal/pkg/eventstream"
	"github.com/eduspark/portal/pkg/logger"
)

// Publisher discards turn events.
type Publisher struct {
	logger *slog.Logger
}

// NewPublisher returns a Publisher that logs discarded events at debug level.
// A nil logger discards silently.
func NewPublisher(l *slog.Logger) *Publisher {
	if l == nil {
		l = logger.Nop()
	}
	return &Publisher{logger: l}
}

// PublishTurn validates input and otherwise does nothing.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.logger.Debug("event stream disabled, dropping turn event", "event_id", event.EventID)
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
