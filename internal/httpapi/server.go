package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assistd/internal/completion"
	"assistd/internal/plugin"
	"assistd/internal/tasks"
	"assistd/pkg/types"
)

// Completions is the slice of the completion service the HTTP layer needs.
type Completions interface {
	GetCompletion(ctx context.Context, prompt string, entries []string) (completion.Result, error)
	StreamCompletion(ctx context.Context, prompt string, entries []string) (*completion.Stream, error)
	Mode() completion.Mode
	SetOnline()
	Cache() *completion.Cache
}

// Deps wires the collaborators behind the HTTP surface.
type Deps struct {
	Completions Completions
	Queue       *tasks.Queue
	Plugins     *plugin.Registry
	// SubmitIndex queues an indexing task for dir and returns its task id.
	SubmitIndex func(dir string) (string, error)
	// Provider and Model are reported by GET /status.
	Provider string
	Model    string
}

var serverStart = time.Now()

func NewMux(d Deps) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/complete", d.handleComplete)
	r.Post("/index", d.handleIndex)
	r.Get("/tasks", d.handleTasks)
	r.Get("/plugins", d.handlePlugins)
	r.Post("/plugins/{name}", d.handlePluginRun)
	r.Get("/status", d.handleStatus)
	r.Post("/mode/online", d.handleSetOnline)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Completions.Mode() == completion.ModeOnline {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("offline"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSON enforces content type and body size before decoding into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (d Deps) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	start := time.Now()
	lg := requestLogger(r)
	lg.Info().Bool("stream", req.Stream).Msg("complete start")

	if req.Stream {
		d.streamComplete(ctx, w, r, req, start)
		return
	}

	res, err := d.Completions.GetCompletion(ctx, req.Prompt, req.Context)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := statusForError(err)
		writeJSONError(w, status, err.Error())
		lg.Info().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("complete end")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.CompleteResponse{
		Text:        res.Text,
		Cached:      res.Cached,
		Stale:       res.Stale,
		Fingerprint: res.Fingerprint,
	})
	lg.Info().Int("status", 200).Bool("cached", res.Cached).Bool("stale", res.Stale).
		Dur("dur", time.Since(start)).Msg("complete end")
}

// streamComplete writes chunks as NDJSON lines. Errors after the first chunk
// go out as a final NDJSON error line; the status is already committed.
func (d Deps) streamComplete(ctx context.Context, w http.ResponseWriter, r *http.Request, req types.CompleteRequest, start time.Time) {
	lg := requestLogger(r)
	s, err := d.Completions.StreamCompletion(ctx, req.Prompt, req.Context)
	if err != nil {
		status := statusForError(err)
		writeJSONError(w, status, err.Error())
		lg.Info().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("complete end")
		return
	}
	defer s.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	enc := json.NewEncoder(w)
	for {
		chunk, err := s.Recv()
		if err != nil {
			line := types.StreamChunk{Done: true}
			if !isEOF(err) {
				line.Error = err.Error()
			}
			_ = enc.Encode(line)
			if flush != nil {
				flush()
			}
			lg.Info().Dur("dur", time.Since(start)).Err(ignoreEOF(err)).Msg("complete end")
			return
		}
		if err := enc.Encode(types.StreamChunk{Text: chunk}); err != nil {
			// client went away
			return
		}
		if flush != nil {
			flush()
		}
	}
}

func (d Deps) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req types.IndexRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Dir) == "" {
		writeJSONError(w, http.StatusBadRequest, "dir is required")
		return
	}
	id, err := d.SubmitIndex(req.Dir)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(types.IndexResponse{TaskID: id})
}

func (d Deps) handleTasks(w http.ResponseWriter, r *http.Request) {
	recs := d.Queue.Records()
	out := types.TasksResponse{Tasks: make([]types.TaskStatus, 0, len(recs))}
	for _, rec := range recs {
		ts := types.TaskStatus{
			ID:            rec.ID,
			Name:          rec.Name,
			State:         string(rec.State),
			SubmittedUnix: rec.Submitted.Unix(),
			Error:         rec.Err,
		}
		if !rec.Started.IsZero() {
			ts.StartedUnix = rec.Started.Unix()
		}
		if !rec.Finished.IsZero() {
			ts.FinishedUnix = rec.Finished.Unix()
		}
		out.Tasks = append(out.Tasks, ts)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (d Deps) handlePlugins(w http.ResponseWriter, r *http.Request) {
	out := types.PluginsResponse{Plugins: []types.PluginInfo{}}
	for _, name := range d.Plugins.Names() {
		if c, ok := d.Plugins.Get(name); ok {
			out.Plugins = append(out.Plugins, types.PluginInfo{Name: name, Info: c.Info()})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (d Deps) handlePluginRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cap, ok := d.Plugins.Get(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown plugin: "+name)
		return
	}
	var req types.PluginRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	out, err := cap.Run(ctx, req.Args)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.PluginRunResponse{Output: out})
}

func (d Deps) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	resp := types.StatusResponse{
		Mode:           string(d.Completions.Mode()),
		Provider:       d.Provider,
		Model:          d.Model,
		CacheLen:       d.Completions.Cache().Len(),
		CacheBound:     d.Completions.Cache().Bound(),
		QueueDepth:     d.Queue.Depth(),
		UptimeSeconds:  int64(now.Sub(serverStart).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (d Deps) handleSetOnline(w http.ResponseWriter, r *http.Request) {
	d.Completions.SetOnline()
	lg := requestLogger(r)
	lg.Info().Msg("service mode reset to online")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"mode": string(d.Completions.Mode())})
}
