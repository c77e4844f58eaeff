package completion

import "fmt"

// retriesExhaustedError is terminal for a call and flips the service offline.
type retriesExhaustedError struct {
	attempts int
	last     error
}

func (e retriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.attempts, e.last)
}

func (e retriesExhaustedError) Unwrap() error { return e.last }

// ErrRetriesExhausted wraps the last underlying error after the retry budget
// is spent.
func ErrRetriesExhausted(attempts int, last error) error {
	return retriesExhaustedError{attempts: attempts, last: last}
}

// IsRetriesExhausted reports whether err indicates a spent retry budget.
func IsRetriesExhausted(err error) bool {
	_, ok := err.(retriesExhaustedError)
	return ok
}

// streamInterruptedError is terminal for a stream; re-issuing the stream is
// the caller's decision.
type streamInterruptedError struct{ cause error }

func (e streamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.cause)
}

func (e streamInterruptedError) Unwrap() error { return e.cause }

// ErrStreamInterrupted wraps a mid-stream transport failure.
func ErrStreamInterrupted(cause error) error { return streamInterruptedError{cause: cause} }

// IsStreamInterrupted reports whether err indicates a broken stream.
func IsStreamInterrupted(err error) bool {
	_, ok := err.(streamInterruptedError)
	return ok
}

// noOfflineFallbackError is returned while offline with no cached result.
// It is user-facing and never fatal to the process.
type noOfflineFallbackError struct{ fingerprint string }

func (e noOfflineFallbackError) Error() string {
	return "offline and no cached result for request " + e.fingerprint
}

// ErrNoOfflineFallback constructs the offline-miss error for a fingerprint.
func ErrNoOfflineFallback(fingerprint string) error {
	return noOfflineFallbackError{fingerprint: fingerprint}
}

// IsNoOfflineFallback reports whether err indicates an offline cache miss.
func IsNoOfflineFallback(err error) bool {
	_, ok := err.(noOfflineFallbackError)
	return ok
}
