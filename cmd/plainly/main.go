// Command plainly runs the Plainly voice-note processing server: it
// transcribes captured audio, generates structured summaries and transcripts,
// and serves the recording library over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel"

	"github.com/olayinkafad/plainly/internal/config"
	"github.com/olayinkafad/plainly/internal/observe"
	"github.com/olayinkafad/plainly/internal/orchestrator"
	"github.com/olayinkafad/plainly/internal/pipeline"
	"github.com/olayinkafad/plainly/internal/playback"
	"github.com/olayinkafad/plainly/internal/recording"
	"github.com/olayinkafad/plainly/internal/server"
	"github.com/olayinkafad/plainly/internal/settings"
	"github.com/olayinkafad/plainly/pkg/provider/llm"
	"github.com/olayinkafad/plainly/pkg/provider/llm/anyllm"
	llmopenai "github.com/olayinkafad/plainly/pkg/provider/llm/openai"
	"github.com/olayinkafad/plainly/pkg/provider/stt"
	"github.com/olayinkafad/plainly/pkg/provider/stt/whisper"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("plainly", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "configuration file %q not found; create one (see configs/example.yaml) or pass -config\n", *configPath)
			return 1
		}
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "plainly",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise observability", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("observability shutdown failed", "error", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "error", err)
		return 1
	}

	registry := config.NewRegistry()
	registerBuiltinProviders(registry)

	sttProvider, llmProvider, err := buildProviders(registry, cfg)
	if err != nil {
		slog.Error("failed to build providers", "error", err)
		return 1
	}

	store, settingsStore, closeStorage, err := buildStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "error", err)
		return 1
	}
	defer closeStorage()

	proc := pipeline.New(sttProvider, llmProvider, pipelineOptions(cfg.Pipeline, metrics)...)
	player := playback.NewPlayer()

	audioDir := cfg.Storage.AudioDir
	if audioDir == "" {
		audioDir = "."
	}
	orch := orchestrator.New(store, settingsStore, player, proc, &orchestrator.FileSource{BaseDir: audioDir},
		orchestrator.WithMetrics(metrics))

	srv := server.New(orch, store, settingsStore, player, proc,
		server.WithCORSOrigins(cfg.Server.CORSAllowedOrigins),
		server.WithMetrics(metrics))

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, listenAddr, sttProvider != nil, llmProvider != nil)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server failed", "error", err)
		return 1
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown failed", "error", err)
	}
	orch.Wait()
	slog.Info("shutdown complete")
	return 0
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// registerBuiltinProviders wires every provider implementation shipped with
// the binary into the registry. Deployments that embed Plainly as a library
// can register additional factories before calling buildProviders.
func registerBuiltinProviders(r *config.Registry) {
	r.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.BaseURL != "" {
			opts = append(opts, whisper.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.APIKey, opts...)
	})

	r.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		r.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(entry.Name, entry.Model, opts...)
		})
	}
}

// buildProviders instantiates the configured STT and LLM providers. An empty
// provider name yields a nil provider; the pipeline then reports a
// configuration error on the requests that need it rather than refusing to
// start, so a transcription-only deployment stays usable.
func buildProviders(r *config.Registry, cfg *config.Config) (stt.Provider, llm.Provider, error) {
	var sttProvider stt.Provider
	if cfg.Providers.STT.Name != "" {
		p, err := r.CreateSTT(cfg.Providers.STT)
		if err != nil {
			if !errors.Is(err, config.ErrProviderNotRegistered) {
				return nil, nil, fmt.Errorf("stt provider %q: %w", cfg.Providers.STT.Name, err)
			}
			slog.Debug("skipping unregistered stt provider", "name", cfg.Providers.STT.Name)
		} else {
			sttProvider = p
		}
	}

	var llmProvider llm.Provider
	if cfg.Providers.LLM.Name != "" {
		p, err := r.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			if !errors.Is(err, config.ErrProviderNotRegistered) {
				return nil, nil, fmt.Errorf("llm provider %q: %w", cfg.Providers.LLM.Name, err)
			}
			slog.Debug("skipping unregistered llm provider", "name", cfg.Providers.LLM.Name)
		} else {
			llmProvider = p
		}
	}

	return sttProvider, llmProvider, nil
}

// buildStorage returns the recording and settings stores, backed by PostgreSQL
// when a DSN is configured and by in-memory maps otherwise. The returned close
// function releases the connection pool.
func buildStorage(ctx context.Context, cfg *config.Config) (recording.Store, settings.Store, func(), error) {
	if cfg.Storage.PostgresDSN == "" {
		return recording.NewMemoryStore(), settings.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	recStore := recording.NewPostgresStore(pool)
	if err := recStore.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	setStore := settings.NewPostgresStore(pool)
	if err := setStore.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return recStore, setStore, pool.Close, nil
}

// pipelineOptions converts the config block into pipeline options, passing
// only values the operator actually set so the pipeline defaults apply.
func pipelineOptions(cfg config.PipelineConfig, metrics *observe.Metrics) []pipeline.Option {
	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if cfg.MinAudioBytes > 0 {
		opts = append(opts, pipeline.WithMinAudioBytes(cfg.MinAudioBytes))
	}
	if cfg.MinTranscriptChars > 0 {
		opts = append(opts, pipeline.WithMinTranscriptChars(cfg.MinTranscriptChars))
	}
	if cfg.MaxTranscriptChars > 0 {
		opts = append(opts, pipeline.WithMaxTranscriptChars(cfg.MaxTranscriptChars))
	}
	if cfg.MinSegmentChars > 0 {
		opts = append(opts, pipeline.WithMinSegmentChars(cfg.MinSegmentChars))
	}
	if cfg.RequestTimeoutSec > 0 {
		opts = append(opts, pipeline.WithRequestTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second))
	}
	if cfg.Temperature > 0 {
		opts = append(opts, pipeline.WithTemperature(cfg.Temperature))
	}
	return opts
}

// printStartupSummary logs the effective configuration at startup.
func printStartupSummary(cfg *config.Config, listenAddr string, haveSTT, haveLLM bool) {
	storage := "memory"
	if cfg.Storage.PostgresDSN != "" {
		storage = "postgres"
	}
	slog.Info("plainly starting",
		"version", version,
		"listen_addr", listenAddr,
		"tls", cfg.Server.TLS != nil,
		"stt_provider", providerLabel(cfg.Providers.STT.Name, haveSTT),
		"llm_provider", providerLabel(cfg.Providers.LLM.Name, haveLLM),
		"storage", storage,
	)
}

// providerLabel renders a provider slot for the startup summary.
func providerLabel(name string, available bool) string {
	if name == "" {
		return "(none)"
	}
	if !available {
		return name + " (unavailable)"
	}
	return name
}

// optString reads a string value from a provider options map, returning ""
// when the key is absent or holds a non-string value.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}
