// Package retry absorbs server-side rate limiting. It wraps transport
// calls and, on a 429, schedules bounded re-issues with a user-visible
// countdown. Every other failure propagates immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khirayama/reader-sub001/internal/api"
	"github.com/khirayama/reader-sub001/internal/notify"
)

// DefaultMaxRetries is the retry budget after the initial attempt.
const DefaultMaxRetries = 3

// Coordinator re-issues rate-limited calls. The caller stays blocked
// until the call succeeds, a non-rate-limit failure occurs, or the
// budget is exhausted, so there is never more than one outstanding
// timer per logical call.
type Coordinator struct {
	maxRetries int
	notify     func(notify.Event)
	log        *zap.Logger

	// timer is injectable for tests; defaults to time.After.
	timer func(d time.Duration) <-chan time.Time
}

type Option func(*Coordinator)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Coordinator) { c.maxRetries = n }
}

// WithNotifier routes countdown events to the UI surface.
func WithNotifier(fn func(notify.Event)) Option {
	return func(c *Coordinator) { c.notify = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func withTimer(fn func(d time.Duration) <-chan time.Time) Option {
	return func(c *Coordinator) { c.timer = fn }
}

func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		maxRetries: DefaultMaxRetries,
		notify:     func(notify.Event) {},
		log:        zap.NewNop(),
		timer:      time.After,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// session tracks one logical call across successive rate-limited
// responses. It dies on success, on a non-rate-limit failure, on budget
// exhaustion, or when ctx is cancelled.
type session struct {
	attempt int
}

// Do runs call, transparently retrying rate-limited responses up to the
// budget. On exhaustion the final *api.RateLimitedError is returned.
func (c *Coordinator) Do(ctx context.Context, call func(context.Context) error) error {
	var s session
	for {
		err := call(ctx)

		var rl *api.RateLimitedError
		if !errors.As(err, &rl) {
			return err
		}

		s.attempt++
		if s.attempt > c.maxRetries {
			c.log.Warn("rate limit retry budget exhausted",
				zap.String("category", rl.Category),
				zap.Int("attempts", s.attempt))
			c.notify(notify.Error(fmt.Sprintf("rate limited (%s): gave up after %d attempts", rl.Category, s.attempt)))
			return err
		}

		c.log.Info("rate limited, retrying",
			zap.String("category", rl.Category),
			zap.Int("attempt", s.attempt),
			zap.Int("retry_after_s", rl.RetryAfter))
		c.notify(notify.RateLimited(s.attempt, c.maxRetries, rl.RetryAfter, rl.Category))

		select {
		case <-c.timer(time.Duration(rl.RetryAfter) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
