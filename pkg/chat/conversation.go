package chat

import (
	"context"
	"strings"
	"sync"
)

// Conversation is the in-memory history of one chat session. Only one turn
// may stream at a time.
type Conversation struct {
	streamer Streamer

	mu       sync.Mutex
	messages []Message
	inFlight bool
	cancel   context.CancelFunc
}

// NewConversation returns an empty Conversation that sends turns through s.
func NewConversation(s Streamer) *Conversation {
	return &Conversation{streamer: s}
}

// Restore replaces the history with messages, dropping entries whose role a
// client may not send. It fails while a turn is streaming.
func (c *Conversation) Restore(messages []Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrTurnInFlight
	}

	c.messages = c.messages[:0]
	for _, m := range messages {
		if m.Role.Valid() {
			c.messages = append(c.messages, m)
		}
	}
	return nil
}

// Send appends input as a user message and streams the assistant reply.
// The assistant message is created on the first delta and its content grows
// in place as deltas arrive; onDelta, when non-nil, sees each delta too.
//
// On failure the whole turn is removed from the history and the error is
// returned. Use UserMessage to turn it into a notice for the user.
func (c *Conversation) Send(ctx context.Context, input string, onDelta func(string)) (Message, error) {
	if strings.TrimSpace(input) == "" {
		return Message{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Message{}, ErrTurnInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	c.inFlight = true
	c.cancel = cancel
	start := len(c.messages)
	c.messages = append(c.messages, Message{Role: RoleUser, Content: input})
	history := append([]Message(nil), c.messages...)
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.inFlight = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	var reply strings.Builder
	err := c.streamer.Stream(ctx, history,
		func(delta string) {
			reply.WriteString(delta)
			c.appendDelta(start, delta)
			if onDelta != nil {
				onDelta(delta)
			}
		},
		nil,
	)
	if err != nil {
		c.rollback(start)
		return Message{}, err
	}

	return Message{Role: RoleAssistant, Content: reply.String()}, nil
}

// appendDelta extends the assistant message of the turn that starts at
// index start, creating it on the first delta.
func (c *Conversation) appendDelta(start int, delta string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := len(c.messages) - 1
	if last > start && c.messages[last].Role == RoleAssistant {
		c.messages[last].Content += delta
		return
	}
	c.messages = append(c.messages, Message{Role: RoleAssistant, Content: delta})
}

func (c *Conversation) rollback(start int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = c.messages[:start]
}

// Cancel abandons the turn that is currently streaming, if any.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Busy reports whether a turn is streaming.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}
