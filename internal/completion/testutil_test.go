package completion

import (
	"context"
	"io"
	"sync"

	"assistd/internal/provider"
)

// fakeProvider scripts remote behavior per call. fn receives the 1-based
// call number.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	fn       func(call int, req provider.Request) (string, error)
	streamFn func(req provider.Request) (provider.Stream, error)
	// gate, when set, blocks Complete until the channel closes. Used to
	// test duplicate in-flight requests.
	gate chan struct{}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req provider.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.fn(n, req)
}

func (f *fakeProvider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	if f.streamFn != nil {
		return f.streamFn(req)
	}
	return nil, provider.ErrTransport("no stream scripted")
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStream yields scripted chunks, then failWith (or EOF when nil).
type fakeStream struct {
	chunks   []string
	failWith error
	pos      int
	closed   bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.failWith != nil {
		return "", s.failWith
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}
