// Command parley is the real-time voice dialog server: it accepts device
// WebSocket connections, recognises speech, asks a language model for a
// reply, and streams synthesized audio back under paced delivery.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/parleyvoice/parley/internal/agentstore"
	"github.com/parleyvoice/parley/internal/config"
	"github.com/parleyvoice/parley/internal/health"
	"github.com/parleyvoice/parley/internal/observe"
	"github.com/parleyvoice/parley/internal/server"
	"github.com/parleyvoice/parley/pkg/provider/asr"
	"github.com/parleyvoice/parley/pkg/provider/asr/deepgram"
	"github.com/parleyvoice/parley/pkg/provider/intent"
	"github.com/parleyvoice/parley/pkg/provider/intent/keyword"
	"github.com/parleyvoice/parley/pkg/provider/llm"
	"github.com/parleyvoice/parley/pkg/provider/llm/anyllm"
	"github.com/parleyvoice/parley/pkg/provider/memory"
	memorymock "github.com/parleyvoice/parley/pkg/provider/memory/mock"
	memorypg "github.com/parleyvoice/parley/pkg/provider/memory/postgres"
	"github.com/parleyvoice/parley/pkg/provider/tts"
	"github.com/parleyvoice/parley/pkg/provider/tts/custom"
	"github.com/parleyvoice/parley/pkg/provider/tts/edge"
	"github.com/parleyvoice/parley/pkg/provider/tts/elevenlabs"
	"github.com/parleyvoice/parley/pkg/provider/vad"
	"github.com/parleyvoice/parley/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("parley starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"audio_format", cfg.Audio.Format,
	)

	if err := config.EnsureDirectories(cfg); err != nil {
		slog.Error("directory bootstrap failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "parley"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics, err := observe.DefaultMetrics()
	if err != nil {
		slog.Error("metric instruments failed", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	// ── Database (optional) ───────────────────────────────────────────────────
	var (
		pool   *pgxpool.Pool
		agents *agentstore.Store
		mem    memory.Store
	)
	if cfg.Database.DSN != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("database pool", "err", err)
			return 1
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			slog.Error("database unreachable", "err", err)
			return 1
		}
		if err := agentstore.EnsureSchema(ctx, pool); err != nil {
			slog.Error("database schema", "err", err)
			return 1
		}
		agents = agentstore.New(pool)

		mem, err = memorypg.NewStore(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("memory store", "err", err)
			return 1
		}
		slog.Info("database connected")
	} else {
		mem = memorymock.NewStore()
		slog.Warn("no database configured; agents disabled, memory is in-process only")
	}
	defer mem.Close()

	// ── Shared providers ──────────────────────────────────────────────────────
	shared, err := buildSharedProviders(cfg, reg, mem)
	if err != nil {
		slog.Error("provider setup failed", "err", err)
		return 1
	}

	srv, err := server.New(server.Config{
		Cfg:      cfg,
		Registry: reg,
		Shared:   shared,
		Agents:   agents,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("server setup failed", "err", err)
		return 1
	}

	// ── HTTP listeners ────────────────────────────────────────────────────────
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws/", srv)
	wsServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: wsMux}

	var obsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		obsMux := http.NewServeMux()
		obsMux.Handle("/metrics", promhttp.Handler())
		checkers := []health.Checker{health.DirWritableChecker("output_dir", cfg.Audio.OutputDir)}
		if pool != nil {
			checkers = append(checkers, health.DatabaseChecker(pool))
		}
		health.New(checkers...).Register(obsMux)
		obsServer = &http.Server{
			Addr:    cfg.Server.MetricsAddr,
			Handler: observe.Middleware(metrics)(obsMux),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening for devices", "addr", cfg.Server.ListenAddr)
		if err := wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if obsServer != nil {
		g.Go(func() error {
			slog.Info("metrics and health endpoints up", "addr", cfg.Server.MetricsAddr)
			if err := obsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutdown signal received, stopping…")
		if obsServer != nil {
			obsServer.Shutdown(shutdownCtx)
		}
		return wsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// LLM backends share one pattern: optional APIKey + optional BaseURL.
	for _, name := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		providerName := name
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts)
		})
	}

	// ollama is a local server; BaseURL is the address, no API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts)
	})

	synthTimeout := cfg.Audio.SynthesisTimeout.Std()

	reg.RegisterTTS("edge", func(entry config.ProviderEntry) (tts.Provider, error) {
		return edge.New(
			edge.WithVoice(entry.Voice),
			edge.WithRate(entry.StringOption("rate")),
			edge.WithTimeout(synthTimeout),
		), nil
	})
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if synthTimeout > 0 {
			opts = append(opts, elevenlabs.WithTimeout(synthTimeout))
		}
		return elevenlabs.New(entry.APIKey, entry.Voice, opts...)
	})
	reg.RegisterTTS("custom", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []custom.Option
		if ext := entry.StringOption("file_extension"); ext != "" {
			opts = append(opts, custom.WithFileExtension(ext))
		}
		if synthTimeout > 0 {
			opts = append(opts, custom.WithTimeout(synthTimeout))
		}
		return custom.New(entry.BaseURL, entry.StringOption("body_template"), opts...)
	})

	reg.RegisterASR("deepgram", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	reg.RegisterIntent("keyword", func(entry config.ProviderEntry) (intent.Recognizer, error) {
		var extra []string
		if p := entry.StringOption("exit_phrase"); p != "" {
			extra = append(extra, p)
		}
		return keyword.New(extra...), nil
	})
}

// buildSharedProviders instantiates the process-wide provider set. ASR is
// optional: without it, devices can still drive turns with recognised text
// frames.
func buildSharedProviders(cfg *config.Config, reg *config.Registry, mem memory.Store) (server.Shared, error) {
	shared := server.Shared{Memory: mem}

	vadEngine, err := reg.CreateVAD(cfg.Providers.VAD)
	if err != nil {
		return shared, fmt.Errorf("vad: %w", err)
	}
	shared.VAD = vadEngine

	if cfg.Providers.ASR.Name != "" {
		asrProv, err := reg.CreateASR(cfg.Providers.ASR)
		if err != nil {
			return shared, fmt.Errorf("asr: %w", err)
		}
		shared.ASR = asrProv
	} else {
		slog.Warn("no ASR provider configured; voice input disabled")
	}

	rec, err := reg.CreateIntent(cfg.Providers.Intent)
	if err != nil {
		return shared, fmt.Errorf("intent: %w", err)
	}
	shared.Intent = rec

	return shared, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
