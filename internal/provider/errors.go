package provider

// rateLimitedError signals the remote rejected the call due to rate limits.
type rateLimitedError struct{ msg string }

func (e rateLimitedError) Error() string { return "rate limited: " + e.msg }

// ErrRateLimited constructs a rate-limit error.
func ErrRateLimited(msg string) error { return rateLimitedError{msg: msg} }

// IsRateLimited reports whether err indicates a remote rate limit.
func IsRateLimited(err error) bool {
	_, ok := err.(rateLimitedError)
	return ok
}

// timeoutError signals an attempt exceeded its deadline.
type timeoutError struct{ msg string }

func (e timeoutError) Error() string { return "timeout: " + e.msg }

// ErrTimeout constructs a timeout error.
func ErrTimeout(msg string) error { return timeoutError{msg: msg} }

// IsTimeout reports whether err indicates an attempt timeout.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}

// transportError covers every other remote failure (connection reset,
// unexpected status, malformed payload).
type transportError struct{ msg string }

func (e transportError) Error() string { return "transport: " + e.msg }

// ErrTransport constructs a transport error.
func ErrTransport(msg string) error { return transportError{msg: msg} }

// IsTransport reports whether err is a generic transport failure.
func IsTransport(err error) bool {
	_, ok := err.(transportError)
	return ok
}
