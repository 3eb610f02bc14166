package negotiation

import "time"

const (
	// DefaultRetryBaseDelay is the backoff base between reconnection
	// attempts: 2s, 4s, 8s, 16s.
	DefaultRetryBaseDelay = 2 * time.Second

	// DefaultMaxRetryAttempts bounds reconnection attempts per peer
	// before the link is abandoned.
	DefaultMaxRetryAttempts = 4
)

// RetryPolicy controls exponential-backoff recovery for one peer. It
// also owns the single scheduled reconnection task, so a superseding
// attempt can cancel a stale pending one instead of racing it.
type RetryPolicy struct {
	baseDelay   time.Duration
	maxAttempts int
	attempts    int
	timer       *time.Timer
}

func NewRetryPolicy(baseDelay time.Duration, maxAttempts int) *RetryPolicy {
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetryAttempts
	}
	return &RetryPolicy{baseDelay: baseDelay, maxAttempts: maxAttempts}
}

// Exhausted reports whether the retry budget is spent.
func (r *RetryPolicy) Exhausted() bool {
	return r.attempts >= r.maxAttempts
}

// NextDelay consumes one attempt and returns the backoff to wait before
// it: base<<0, base<<1, ... Callers must check Exhausted first.
func (r *RetryPolicy) NextDelay() time.Duration {
	d := r.baseDelay << uint(r.attempts)
	r.attempts++
	return d
}

func (r *RetryPolicy) Attempts() int {
	return r.attempts
}

// Reset zeroes the attempt counter. Called when the link reaches
// connected.
func (r *RetryPolicy) Reset() {
	r.attempts = 0
}

// Schedule arms the reconnection task, cancelling any pending one. fn
// runs on a timer goroutine and must re-enter through the owner's event
// queue.
func (r *RetryPolicy) Schedule(delay time.Duration, fn func()) {
	r.Cancel()
	r.timer = time.AfterFunc(delay, fn)
}

// Cancel stops a pending reconnection task, if any.
func (r *RetryPolicy) Cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
