package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"assistd/internal/common/fsutil"
	"assistd/internal/completion"
	"assistd/internal/config"
	"assistd/internal/indexer"
	"assistd/internal/plugin"
	"assistd/internal/provider"
	"assistd/internal/provider/ollama"
	"assistd/internal/provider/openai"
	"assistd/internal/tasks"
)

// Known OpenAI-compatible endpoints and their default models, used when the
// config leaves base_url/model unset.
var providerDefaults = map[string]struct {
	baseURL string
	model   string
	keyEnv  string
}{
	"openai":     {baseURL: "", model: "gpt-4o-mini", keyEnv: "OPENAI_API_KEY"},
	"groq":       {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.1-8b-instant", keyEnv: "GROQ_API_KEY"},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", model: "qwen/qwen2-7b-instruct:free", keyEnv: "OPENROUTER_API_KEY"},
}

// app bundles the wired core so the daemon and the one-shot commands build
// the exact same service.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	svc     *completion.Service
	queue   *tasks.Queue
	plugins *plugin.Registry
	model   string
}

func newProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	if name == "ollama" {
		return ollama.New(cfg.BaseURL, cfg.Model), nil
	}
	d, ok := providerDefaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = d.model
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = d.keyEnv
	}
	return openai.New(name, cfg.BaseURL, cfg.APIKey(), cfg.Model), nil
}

func buildApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	p, err := newProvider(&cfg)
	if err != nil {
		return nil, err
	}
	client := completion.NewClient(p, completion.ClientConfig{
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		Policy: completion.Policy{
			Base:           time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
			MaxJitter:      time.Duration(cfg.BackoffMaxJitterMS) * time.Millisecond,
			RetryTransport: !cfg.DisableTransportRetry,
		},
	})
	svc := completion.NewService(client, completion.ServiceConfig{CacheBound: cfg.CacheBound})
	queue := tasks.New(log, cfg.TaskHistory)

	indexStore, err := fsutil.ExpandHome(cfg.IndexStore)
	if err != nil {
		return nil, err
	}
	cfg.IndexStore = indexStore

	plugins := plugin.Preload(log, plugin.Deps{
		Completions: svc,
		IndexPath:   cfg.IndexStore,
	}, plugin.DefaultManifest())

	return &app{
		cfg:     cfg,
		log:     log,
		svc:     svc,
		queue:   queue,
		plugins: plugins,
		model:   cfg.Model,
	}, nil
}

// submitIndex queues a background index build for dir and returns the task id.
func (a *app) submitIndex(dir string) (string, error) {
	root, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if !fsutil.PathExists(root) {
		return "", fmt.Errorf("directory not found: %s", root)
	}
	cfg := a.indexConfig(root)
	id := a.queue.Submit("index "+root, func(ctx context.Context) error {
		ix, err := indexer.Build(ctx, cfg)
		if err != nil {
			return err
		}
		a.log.Info().Str("root", ix.Root).Int("files", ix.Files).
			Int("chunks", len(ix.Chunks)).Msg("index built")
		return nil
	})
	return id, nil
}

func (a *app) indexConfig(root string) indexer.Config {
	return indexer.Config{
		Root:      root,
		Include:   a.cfg.IndexInclude,
		Exclude:   a.cfg.IndexExclude,
		StorePath: a.cfg.IndexStore,
	}
}

func (a *app) close() {
	a.queue.Close()
}
