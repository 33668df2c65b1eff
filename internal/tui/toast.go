package tui

import (
	"fmt"

	"github.com/khirayama/reader-sub001/internal/notify"
)

// toast is the countdown notification for a scheduled rate-limit retry.
// The countdown runs on the UI's own ticker, seeded from the event's
// RetryIn — it never polls the retry coordinator.
type toast struct {
	event       notify.Event
	secondsLeft int
}

func newToast(ev notify.Event) *toast {
	return &toast{event: ev, secondsLeft: ev.RetryIn}
}

// tick advances the countdown one second; it reports whether the toast
// should stay visible.
func (t *toast) tick() bool {
	t.secondsLeft--
	return t.secondsLeft > -2 // linger briefly on "retrying"
}

func (t *toast) render() string {
	ev := t.event
	if t.secondsLeft <= 0 {
		return toastStyle.Render(fmt.Sprintf(" rate limited (%s) · retrying now · attempt %d/%d ",
			ev.Category, ev.Attempt, ev.MaxRetries))
	}
	return toastStyle.Render(fmt.Sprintf(" rate limited (%s) · retrying in %ds · attempt %d/%d ",
		ev.Category, t.secondsLeft, ev.Attempt, ev.MaxRetries))
}
