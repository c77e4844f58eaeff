package completion

import (
	"context"
	"io"

	"assistd/internal/provider"
)

// Stream is a finite, single-pass sequence of completion chunks. Recv
// returns io.EOF after the final chunk; any transport failure mid-stream is
// reported as stream-interrupted, never silently truncated.
type Stream struct {
	inner  provider.Stream
	cancel context.CancelFunc
	done   bool
	err    error
}

func newStream(inner provider.Stream, cancel context.CancelFunc) *Stream {
	return &Stream{inner: inner, cancel: cancel}
}

// Recv returns the next chunk.
func (s *Stream) Recv() (string, error) {
	if s.done {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	chunk, err := s.inner.Recv()
	if err == nil {
		return chunk, nil
	}
	s.done = true
	if err != io.EOF {
		s.err = ErrStreamInterrupted(err)
	}
	s.release()
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

// Close abandons the stream and releases the underlying transport. Safe to
// call at any point and more than once.
func (s *Stream) Close() error {
	s.done = true
	return s.release()
}

func (s *Stream) release() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.inner == nil {
		return nil
	}
	err := s.inner.Close()
	s.inner = nil
	return err
}

// replayStream serves a cached result as a single chunk. Used while offline.
type replayStream struct {
	text string
	sent bool
}

func (r *replayStream) Recv() (string, error) {
	if r.sent {
		return "", io.EOF
	}
	r.sent = true
	return r.text, nil
}

func (r *replayStream) Close() error {
	r.sent = true
	return nil
}
