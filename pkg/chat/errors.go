package chat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited classifies a 429 response from the chat backend.
	ErrRateLimited = errors.New("chat backend rate limit exceeded")

	// ErrQuotaExceeded classifies a 402 response from the chat backend.
	ErrQuotaExceeded = errors.New("chat backend quota exhausted")

	// ErrEmptyInput is returned when the user message is blank.
	ErrEmptyInput = errors.New("message is empty")

	// ErrTurnInFlight is returned when a turn is sent while another one is
	// still streaming.
	ErrTurnInFlight = errors.New("a response is already streaming")
)

const (
	msgRateLimited = "Rate limit exceeded. Please try again later."
	msgUnavailable = "AI service unavailable. Please contact support."
	msgFailed      = "Failed to get response. Please try again."
)

// StatusError is returned when the chat backend answers with a non-2xx
// status. The stream decoder is never entered for these responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat backend returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps the status code onto ErrRateLimited or ErrQuotaExceeded.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExceeded
	default:
		return nil
	}
}

// UserMessage returns the notice shown to the user for a failed turn.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, ErrQuotaExceeded):
		return msgUnavailable
	default:
		return msgFailed
	}
}
