package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"assistd/internal/completion"
	"assistd/internal/plugin"
	"assistd/internal/provider"
	"assistd/internal/tasks"
	"assistd/pkg/types"
)

type scriptedProvider struct {
	complete func(req provider.Request) (string, error)
	chunks   []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req provider.Request) (string, error) {
	return p.complete(req)
}

func (p *scriptedProvider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	return &scriptedStream{chunks: append([]string(nil), p.chunks...)}, nil
}

type scriptedStream struct{ chunks []string }

func (s *scriptedStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	next := s.chunks[0]
	s.chunks = s.chunks[1:]
	return next, nil
}

func (s *scriptedStream) Close() error { return nil }

type echoCap struct{}

func (echoCap) Name() string { return "echo" }
func (echoCap) Info() string { return "echoes its arguments" }
func (echoCap) Run(ctx context.Context, args []string) (string, error) {
	return strings.Join(args, " "), nil
}

func testDeps(t *testing.T, p provider.Provider) (Deps, *tasks.Queue) {
	t.Helper()
	client := completion.NewClient(p, completion.ClientConfig{
		MaxAttempts: 2,
		Policy:      completion.Policy{Base: time.Millisecond, RetryTransport: true},
	})
	svc := completion.NewService(client, completion.ServiceConfig{CacheBound: 8})
	q := tasks.New(zerolog.Nop(), 16)
	t.Cleanup(q.Close)

	reg := plugin.Preload(zerolog.Nop(), plugin.Deps{}, map[string]plugin.Builder{
		"echo": func(plugin.Deps) (plugin.Capability, error) { return echoCap{}, nil },
	})
	return Deps{
		Completions: svc,
		Queue:       q,
		Plugins:     reg,
		SubmitIndex: func(dir string) (string, error) {
			return q.Submit("index "+dir, func(ctx context.Context) error { return nil }), nil
		},
		Provider: "scripted",
		Model:    "test-model",
	}, q
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompleteReturnsJSON(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "answer to " + req.Prompt, nil },
	})
	h := NewMux(deps)

	rec := postJSON(t, h, "/complete", types.CompleteRequest{Prompt: "q"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.CompleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "answer to q" || resp.Cached {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Fingerprint == "" {
		t.Fatalf("expected fingerprint in response")
	}

	// identical request is served from cache
	rec = postJSON(t, h, "/complete", types.CompleteRequest{Prompt: "q"})
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Cached {
		t.Fatalf("expected cached result, got %+v", resp)
	}
}

func TestCompleteValidation(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "x", nil },
	})
	h := NewMux(deps)

	rec := postJSON(t, h, "/complete", types.CompleteRequest{Prompt: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank prompt should be 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/complete", strings.NewReader(`{"prompt":"q"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("wrong content type should be 415, got %d", w.Code)
	}
}

func TestCompleteOfflineMissReturns503(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) {
			return "", provider.ErrTimeout("remote down")
		},
	})
	h := NewMux(deps)

	rec := postJSON(t, h, "/complete", types.CompleteRequest{Prompt: "q"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("offline miss should be 503, got %d: %s", rec.Code, rec.Body.String())
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if er.Code != http.StatusServiceUnavailable || er.Error == "" {
		t.Fatalf("unexpected error payload %+v", er)
	}
}

func TestCompleteStreamsNDJSON(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "ab", nil },
		chunks:   []string{"a", "b"},
	})
	h := NewMux(deps)

	rec := postJSON(t, h, "/complete", types.CompleteRequest{Prompt: "q", Stream: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("expected ndjson content type, got %q", ct)
	}

	var lines []types.StreamChunk
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var line types.StreamChunk
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("line decode: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 2 chunks plus terminator, got %d lines", len(lines))
	}
	if lines[0].Text != "a" || lines[1].Text != "b" {
		t.Fatalf("unexpected chunk order: %+v", lines)
	}
	last := lines[2]
	if !last.Done || last.Error != "" {
		t.Fatalf("expected clean terminator, got %+v", last)
	}
}

func TestIndexAccepted(t *testing.T) {
	deps, q := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "x", nil },
	})
	h := NewMux(deps)

	rec := postJSON(t, h, "/index", types.IndexRequest{Dir: "/some/dir"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.IndexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskID == "" {
		t.Fatalf("expected task id")
	}

	found := false
	deadline := time.Now().Add(2 * time.Second)
	for !found && time.Now().Before(deadline) {
		for _, r := range q.Records() {
			if r.ID == resp.TaskID {
				found = true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !found {
		t.Fatalf("task %s never listed", resp.TaskID)
	}

	rec = postJSON(t, h, "/index", types.IndexRequest{Dir: ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank dir should be 400, got %d", rec.Code)
	}
}

func TestTasksListing(t *testing.T) {
	deps, q := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "x", nil },
	})
	h := NewMux(deps)

	id := q.Submit("sample", func(ctx context.Context) error { return nil })
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done := false
		for _, r := range q.Records() {
			if r.ID == id && r.State == tasks.StateCompleted {
				done = true
			}
		}
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp types.TasksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, ts := range resp.Tasks {
		if ts.ID == id {
			found = true
			if ts.Name != "sample" || ts.State != string(tasks.StateCompleted) {
				t.Fatalf("unexpected task status %+v", ts)
			}
			if ts.SubmittedUnix == 0 || ts.FinishedUnix == 0 {
				t.Fatalf("missing timestamps %+v", ts)
			}
		}
	}
	if !found {
		t.Fatalf("submitted task absent from listing: %+v", resp.Tasks)
	}
}

func TestPluginsListAndRun(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "x", nil },
	})
	h := NewMux(deps)

	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var list types.PluginsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Plugins) != 1 || list.Plugins[0].Name != "echo" {
		t.Fatalf("unexpected plugin list %+v", list)
	}

	rec2 := postJSON(t, h, "/plugins/echo", types.PluginRunRequest{Args: []string{"a", "b"}})
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
	var out types.PluginRunResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Output != "a b" {
		t.Fatalf("unexpected output %q", out.Output)
	}

	rec3 := postJSON(t, h, "/plugins/missing", types.PluginRunRequest{})
	if rec3.Code != http.StatusNotFound {
		t.Fatalf("unknown plugin should be 404, got %d", rec3.Code)
	}
}

func TestStatusAndModeReset(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) {
			return "", provider.ErrTimeout("remote down")
		},
	})
	h := NewMux(deps)

	// drive the service offline
	_ = postJSON(t, h, "/complete", types.CompleteRequest{Prompt: "q"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var st types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Mode != string(completion.ModeOffline) {
		t.Fatalf("expected offline mode in status, got %+v", st)
	}
	if st.Provider != "scripted" || st.Model != "test-model" || st.CacheBound != 8 {
		t.Fatalf("unexpected status %+v", st)
	}

	ready := httptest.NewRecorder()
	h.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if ready.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz should be 503 while offline, got %d", ready.Code)
	}

	reset := httptest.NewRecorder()
	h.ServeHTTP(reset, httptest.NewRequest(http.MethodPost, "/mode/online", nil))
	if reset.Code != http.StatusOK {
		t.Fatalf("mode reset: %d", reset.Code)
	}
	var mode map[string]string
	if err := json.Unmarshal(reset.Body.Bytes(), &mode); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mode["mode"] != string(completion.ModeOnline) {
		t.Fatalf("expected online after reset, got %v", mode)
	}

	ready2 := httptest.NewRecorder()
	h.ServeHTTP(ready2, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if ready2.Code != http.StatusOK {
		t.Fatalf("readyz should recover after reset, got %d", ready2.Code)
	}
}

func TestHealthz(t *testing.T) {
	deps, _ := testDeps(t, &scriptedProvider{
		complete: func(req provider.Request) (string, error) { return "x", nil },
	})
	h := NewMux(deps)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}
