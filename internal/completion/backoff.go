package completion

import (
	"math/rand"
	"time"

	"assistd/internal/provider"
)

// Policy computes retry delays. It holds no mutable state and is safe for
// concurrent use.
type Policy struct {
	// Base delay for attempt 0. Doubles per attempt.
	Base time.Duration
	// Upper bound (exclusive) for the random jitter added to each delay.
	// Zero disables jitter.
	MaxJitter time.Duration
	// RetryTransport controls whether generic transport errors are
	// retryable. Rate limits and timeouts always are.
	RetryTransport bool
}

// maxShift caps the exponential factor so the shift cannot overflow.
const maxShift = 16

// Delay returns the backoff before retrying the given 0-indexed attempt and
// whether the error is retryable at all. A false second return means the
// caller must surface err unchanged instead of retrying.
func (p Policy) Delay(attempt int, err error) (time.Duration, bool) {
	if !p.retryable(err) {
		return 0, false
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	d := p.Base * (1 << uint(attempt))
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return d, true
}

func (p Policy) retryable(err error) bool {
	switch {
	case provider.IsRateLimited(err), provider.IsTimeout(err):
		return true
	case provider.IsTransport(err):
		return p.RetryTransport
	default:
		return false
	}
}
