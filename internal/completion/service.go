package completion

import (
	"context"
	"sync"
)

// Mode is the online/offline state of a Service.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Result is a resolved completion.
type Result struct {
	Text string
	// Cached is true when the result came from the response cache.
	Cached bool
	// Stale is true when a cached result was served while offline.
	Stale bool
	// Fingerprint identifies the request for cache diagnostics.
	Fingerprint string
}

// call is one in-flight remote computation shared across duplicate
// concurrent requests for the same fingerprint.
type call struct {
	done chan struct{}
	text string
	err  error
}

// ServiceConfig carries construction parameters for a Service.
type ServiceConfig struct {
	// CacheBound is the maximum number of cached responses.
	CacheBound int
}

// Service is the single entry point callers use for completions. It
// composes the cache, the retrying client and the online/offline mode flag.
// Construct one Service per logical session; the mode flag is owned by the
// instance, never process-wide.
type Service struct {
	client *Client
	cache  *Cache

	mu       sync.Mutex
	mode     Mode
	inflight map[string]*call
}

// NewService builds a Service around client.
func NewService(client *Client, cfg ServiceConfig) *Service {
	return &Service{
		client:   client,
		cache:    NewCache(cfg.CacheBound),
		mode:     ModeOnline,
		inflight: make(map[string]*call),
	}
}

// Mode returns the current service mode.
func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetOnline explicitly returns the service to online mode. The service never
// flips back automatically; probing availability would spend another retry
// budget and defeat the point of going offline.
func (s *Service) SetOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeOnline
	offlineMode.Set(0)
}

// Cache exposes the response cache for invalidation and diagnostics.
func (s *Service) Cache() *Cache { return s.cache }

// GetCompletion resolves a completion for prompt plus ordered context
// entries. While online it is cache-first; a spent retry budget flips the
// service offline and falls back to the cache. Duplicate concurrent requests
// for the same fingerprint share a single remote call.
func (s *Service) GetCompletion(ctx context.Context, prompt string, entries []string) (Result, error) {
	fp := Fingerprint(prompt, entries)

	s.mu.Lock()
	if s.mode == ModeOffline {
		s.mu.Unlock()
		return s.offlineLookup(fp)
	}
	if e, ok := s.cache.Get(fp); ok {
		s.mu.Unlock()
		return Result{Text: e.Text, Cached: true, Fingerprint: fp}, nil
	}
	if c, ok := s.inflight[fp]; ok {
		s.mu.Unlock()
		return s.await(ctx, fp, c)
	}
	c := &call{done: make(chan struct{})}
	s.inflight[fp] = c
	s.mu.Unlock()

	text, err := s.client.Complete(ctx, prompt, entries)

	s.mu.Lock()
	delete(s.inflight, fp)
	if err == nil {
		s.cache.Put(fp, text)
	} else if IsRetriesExhausted(err) && s.mode == ModeOnline {
		s.mode = ModeOffline
		offlineTransitionsTotal.Inc()
		offlineMode.Set(1)
	}
	s.mu.Unlock()
	c.text, c.err = text, err
	close(c.done)

	if err == nil {
		return Result{Text: text, Fingerprint: fp}, nil
	}
	if IsRetriesExhausted(err) {
		// Freshly offline: fall through to the cache-or-no-fallback path.
		return s.offlineLookup(fp)
	}
	return Result{}, err
}

// await blocks a duplicate caller on the leader's in-flight computation.
func (s *Service) await(ctx context.Context, fp string, c *call) (Result, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if c.err == nil {
		return Result{Text: c.text, Fingerprint: fp}, nil
	}
	if IsRetriesExhausted(c.err) {
		return s.offlineLookup(fp)
	}
	return Result{}, c.err
}

// offlineLookup serves the offline path: cached values are returned
// annotated as stale, misses report a user-facing no-fallback error.
func (s *Service) offlineLookup(fp string) (Result, error) {
	if e, ok := s.cache.Get(fp); ok {
		return Result{Text: e.Text, Cached: true, Stale: true, Fingerprint: fp}, nil
	}
	return Result{}, ErrNoOfflineFallback(fp)
}

// StreamCompletion opens a streaming completion. Streams bypass the retry
// budget and never flip the mode. While offline a cached result is replayed
// as a single chunk; an offline miss reports no-fallback.
func (s *Service) StreamCompletion(ctx context.Context, prompt string, entries []string) (*Stream, error) {
	fp := Fingerprint(prompt, entries)
	s.mu.Lock()
	offline := s.mode == ModeOffline
	s.mu.Unlock()
	if offline {
		if e, ok := s.cache.Get(fp); ok {
			return newStream(&replayStream{text: e.Text}, nil), nil
		}
		return nil, ErrNoOfflineFallback(fp)
	}
	return s.client.StreamComplete(ctx, prompt, entries)
}
