package types

// CompleteRequest is the payload for POST /complete.
type CompleteRequest struct {
	// Required prompt text to complete.
	// example: Explain this function.
	Prompt string `json:"prompt" example:"Explain this function."`
	// Optional ordered context entries (code snippets, index chunks).
	Context []string `json:"context,omitempty"`
	// If true, stream chunks as NDJSON instead of returning one JSON object.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// CompleteResponse is returned by POST /complete when not streaming.
type CompleteResponse struct {
	// Completion text.
	Text string `json:"text"`
	// True when the result was served from the response cache.
	// example: false
	Cached bool `json:"cached" example:"false"`
	// True when the result is a cached value served while offline.
	// example: false
	Stale bool `json:"stale" example:"false"`
	// Fingerprint of the request, useful for cache diagnostics.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// StreamChunk is one NDJSON line of a streamed completion.
type StreamChunk struct {
	// Chunk of completion text. Empty on the final line.
	Text string `json:"text,omitempty"`
	// Set on the final line.
	Done bool `json:"done,omitempty"`
	// Error message when the stream terminated early.
	Error string `json:"error,omitempty"`
}

// IndexRequest is the payload for POST /index.
type IndexRequest struct {
	// Directory to index.
	// example: ./src
	Dir string `json:"dir" example:"./src"`
}

// IndexResponse acknowledges an accepted indexing task.
type IndexResponse struct {
	// ID of the queued background task.
	TaskID string `json:"task_id"`
}

// TaskStatus summarizes one background task for GET /tasks.
type TaskStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Lifecycle state: queued, running, completed, failed.
	// example: completed
	State string `json:"state" example:"completed"`
	// Submission time in unix seconds.
	SubmittedUnix int64 `json:"submitted_unix"`
	// Start time in unix seconds (0 while queued).
	StartedUnix int64 `json:"started_unix,omitempty"`
	// Finish time in unix seconds (0 until terminal).
	FinishedUnix int64 `json:"finished_unix,omitempty"`
	// Error message for failed tasks.
	Error string `json:"error,omitempty"`
}

// TasksResponse wraps the task list returned by GET /tasks.
type TasksResponse struct {
	Tasks []TaskStatus `json:"tasks"`
}

// PluginInfo describes one registered capability for GET /plugins.
type PluginInfo struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

// PluginsResponse wraps the plugin list.
type PluginsResponse struct {
	Plugins []PluginInfo `json:"plugins"`
}

// PluginRunRequest is the payload for POST /plugins/{name}.
type PluginRunRequest struct {
	Args []string `json:"args,omitempty"`
}

// PluginRunResponse carries a capability's output.
type PluginRunResponse struct {
	Output string `json:"output"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Service mode: online or offline.
	// example: online
	Mode string `json:"mode" example:"online"`
	// Configured remote provider name.
	// example: openai
	Provider string `json:"provider" example:"openai"`
	// Model identifier sent to the provider.
	Model string `json:"model,omitempty"`
	// Current number of cached responses.
	// example: 12
	CacheLen int `json:"cache_len" example:"12"`
	// Configured cache bound.
	// example: 128
	CacheBound int `json:"cache_bound" example:"128"`
	// Number of queued (not yet started) background tasks.
	// example: 0
	QueueDepth int `json:"queue_depth" example:"0"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
