// Package notify carries user-facing events from the aggregation and
// retry layers to the UI without either side knowing about the other.
package notify

import "github.com/google/uuid"

type Kind string

const (
	// KindRateLimited announces a scheduled retry; the UI renders a
	// countdown seeded from RetryIn and decrements it locally.
	KindRateLimited Kind = "rate_limited"
	// KindError is a dismissible failure message.
	KindError Kind = "error"
)

type Event struct {
	ID      string
	Kind    Kind
	Message string

	// Rate-limit fields, set when Kind == KindRateLimited.
	Attempt    int
	MaxRetries int
	RetryIn    int // seconds
	Category   string
}

// RateLimited builds a countdown event for one retry attempt.
func RateLimited(attempt, maxRetries, retryIn int, category string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindRateLimited,
		Attempt:    attempt,
		MaxRetries: maxRetries,
		RetryIn:    retryIn,
		Category:   category,
	}
}

// Error builds a dismissible error event.
func Error(message string) Event {
	return Event{ID: uuid.NewString(), Kind: KindError, Message: message}
}

// Bus is a small buffered fan-in the UI drains. Publishing never blocks;
// when the buffer is full the oldest event is dropped, since a stale
// toast is worthless.
type Bus struct {
	ch chan Event
}

func NewBus() *Bus {
	return &Bus{ch: make(chan Event, 16)}
}

func (b *Bus) Publish(e Event) {
	for {
		select {
		case b.ch <- e:
			return
		default:
			select {
			case <-b.ch:
			default:
			}
		}
	}
}

// Events returns the receive side for the UI's wait loop.
func (b *Bus) Events() <-chan Event {
	return b.ch
}
