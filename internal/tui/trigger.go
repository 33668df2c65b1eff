package tui

// loadMoreMargin is how close (in list rows) the cursor must be to the
// bottom of the loaded list before the next page is requested.
const loadMoreMargin = 3

// continuation is the one-shot guard between scroll proximity and
// loadMore. A single proximity crossing fires at most once; the trigger
// re-arms only after the in-flight load completes, so bursty cursor
// movement cannot stack requests. This flag is deliberately separate
// from the view's own loading flag.
type continuation struct {
	margin int
	fired  bool
}

func newContinuation(margin int) continuation {
	return continuation{margin: margin}
}

// Crossed reports whether proximity to the bottom should fire a load,
// consuming the trigger when it does.
func (t *continuation) Crossed(distanceFromBottom int) bool {
	if t.fired || distanceFromBottom > t.margin {
		return false
	}
	t.fired = true
	return true
}

// Complete re-arms the trigger once the in-flight load has finished.
func (t *continuation) Complete() {
	t.fired = false
}
