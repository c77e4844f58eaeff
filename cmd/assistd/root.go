package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"assistd/internal/completion"
	"assistd/internal/config"
	"assistd/internal/httpapi"
	"assistd/internal/indexer"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// rootFlags holds persistent flag values merged over the config file.
type rootFlags struct {
	configPath string
	provider   string
	model      string
	logLevel   string
}

func buildRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var cfg config.Config
	var log zerolog.Logger

	root := &cobra.Command{
		Use:           "assistd",
		Short:         "Local assistant daemon with a resilient completion core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", envOr("ASSISTD_CONFIG", ""), "Path to config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&flags.provider, "provider", envOr("ASSISTD_PROVIDER", ""), "Remote provider: openai|groq|openrouter|ollama")
	root.PersistentFlags().StringVar(&flags.model, "model", envOr("ASSISTD_MODEL", ""), "Model identifier for the provider")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", envOr("ASSISTD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(flags)
		if err != nil {
			return err
		}
		log = newLogger(cfg.LogLevel)
		return nil
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg, log)
		},
	}

	var streamFlag bool
	var contextEntries []string
	var useIndex bool
	complete := &cobra.Command{
		Use:   "complete [flags] PROMPT...",
		Short: "Resolve one completion and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cfg, log, strings.Join(args, " "), contextEntries, streamFlag, useIndex)
		},
	}
	complete.Flags().BoolVar(&streamFlag, "stream", false, "Stream chunks as they arrive")
	complete.Flags().StringArrayVar(&contextEntries, "context", nil, "Context entry to send with the prompt (repeatable)")
	complete.Flags().BoolVar(&useIndex, "use-index", false, "Pull context entries from the built index")

	index := &cobra.Command{
		Use:   "index DIR",
		Short: "Build the chunk index for a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cfg, log, args[0])
		},
	}

	plugins := &cobra.Command{
		Use:   "plugins",
		Short: "List registered plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlugins(cfg, log)
		},
	}
	pluginsRun := &cobra.Command{
		Use:   "run NAME [ARGS...]",
		Short: "Run a plugin by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlugin(cfg, log, args[0], args[1:])
		},
	}
	plugins.AddCommand(pluginsRun)

	root.AddCommand(serve, complete, index, plugins)
	return root
}

// loadConfig reads the optional config file and overlays flag values.
func loadConfig(flags *rootFlags) (config.Config, error) {
	var cfg config.Config
	if flags.configPath != "" {
		var err error
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if flags.provider != "" {
		cfg.Provider = flags.provider
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if cfg.Addr == "" {
		cfg.Addr = envOr("ASSISTD_ADDR", ":8090")
	}
	if cfg.IndexStore == "" {
		cfg.IndexStore = "~/.assistd/index.json"
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runServe(cfg config.Config, log zerolog.Logger) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	baseCtx, stopBase := context.WithCancel(context.Background())
	defer stopBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)

	mux := httpapi.NewMux(httpapi.Deps{
		Completions: a.svc,
		Queue:       a.queue,
		Plugins:     a.plugins,
		SubmitIndex: a.submitIndex,
		Provider:    providerName(cfg),
		Model:       a.model,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("provider", providerName(cfg)).Msg("assistd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	stopBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func providerName(cfg config.Config) string {
	if cfg.Provider == "" {
		return "openai"
	}
	return cfg.Provider
}

func runComplete(cfg config.Config, log zerolog.Logger, prompt string, entries []string, stream, useIndex bool) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if useIndex {
		ix, err := indexer.Load(a.cfg.IndexStore)
		if err != nil {
			return fmt.Errorf("load index (run 'assistd index' first): %w", err)
		}
		entries = append(entries, ix.TopK(prompt, 3)...)
	}

	if stream {
		s, err := a.svc.StreamCompletion(ctx, prompt, entries)
		if err != nil {
			return err
		}
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			if err != nil {
				fmt.Println()
				return err
			}
			fmt.Print(chunk)
		}
	}

	res, err := a.svc.GetCompletion(ctx, prompt, entries)
	if err != nil {
		if completion.IsNoOfflineFallback(err) {
			return fmt.Errorf("service is offline and this request has no cached result")
		}
		return err
	}
	if res.Stale {
		fmt.Fprintln(os.Stderr, "(offline: serving cached result)")
	}
	fmt.Println(res.Text)
	return nil
}

func runIndex(cfg config.Config, log zerolog.Logger, dir string) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ix, err := indexer.Build(ctx, a.indexConfig(dir))
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d files (%d chunks) -> %s\n", ix.Files, len(ix.Chunks), a.cfg.IndexStore)
	return nil
}

func runPlugins(cfg config.Config, log zerolog.Logger) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()
	for _, name := range a.plugins.Names() {
		if c, ok := a.plugins.Get(name); ok {
			fmt.Printf("%s\t%s\n", name, c.Info())
		}
	}
	return nil
}

func runPlugin(cfg config.Config, log zerolog.Logger, name string, args []string) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	cap, ok := a.plugins.Get(name)
	if !ok {
		return fmt.Errorf("unknown plugin: %s", name)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out, err := cap.Run(ctx, args)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
