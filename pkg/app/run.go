// Package app provides the shared entry point for the chatd binary.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/chatd/internal/agent"
	"github.com/flemzord/chatd/internal/config"
	"github.com/flemzord/chatd/internal/cron"
	"github.com/flemzord/chatd/internal/engine"
	"github.com/flemzord/chatd/internal/gateway"
	"github.com/flemzord/chatd/internal/kb"
	"github.com/flemzord/chatd/internal/memory"
	sqlitemem "github.com/flemzord/chatd/internal/memory/sqlite"
	"github.com/flemzord/chatd/internal/metrics"
	"github.com/flemzord/chatd/internal/provider"
	"github.com/flemzord/chatd/internal/provider/openai"
	"github.com/flemzord/chatd/internal/security"
	"github.com/flemzord/chatd/internal/telemetry"
	"github.com/flemzord/chatd/internal/tool"
	"github.com/flemzord/chatd/internal/tool/builtin"
)

const shutdownGrace = 15 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string
}

// statusSource adapts runtime state for the gateway's /status endpoint.
type statusSource struct {
	provider provider.Provider
	kb       *kb.KB
}

func (s statusSource) Model() string { return s.provider.ModelName() }

func (s statusSource) KBSections() int {
	if s.kb == nil {
		return 0
	}
	return len(s.kb.Sections())
}

// Run loads configuration, wires every component, starts the gateway, and
// blocks until a shutdown signal arrives.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// Logger with secret redaction. The API key is registered as a literal
	// so it can never leak through log output.
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Provider.APIKey)
	innerHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	})
	logger := slog.New(security.NewRedactingHandler(innerHandler, redactor))

	shutdownTelemetry, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
	}, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	knowledge, err := kb.Load(cfg.KB.Path)
	if err != nil {
		logger.Warn("knowledge base unavailable, kb_search disabled",
			"path", cfg.KB.Path, "error", err)
		knowledge = nil
	}

	registry := tool.NewRegistry(logger)
	registry.SetTimeout(cfg.Limits.ToolTimeout)
	if err := registerBuiltins(registry, knowledge); err != nil {
		return err
	}

	client := openai.NewClient(openai.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Timeout:     cfg.Provider.Timeout,
	})

	loop := agent.NewLoop(client, agent.NewToolExecutor(registry), agent.Config{
		MaxRounds: cfg.Limits.MaxToolRounds,
		Timeout:   cfg.Limits.RequestTimeout,
	})

	facts, closeFacts, err := openFactStore(cfg.Memory.LongTerm, logger)
	if err != nil {
		return err
	}
	defer closeFacts()

	var sink *metrics.Sink
	if cfg.Metrics.Path != "" {
		sink, err = metrics.OpenSink(cfg.Metrics.Path, logger)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng := engine.New(engine.Deps{
		Loop:       loop,
		Registry:   registry,
		Limiter:    security.NewRateLimiter(cfg.Limits.RateRPM),
		History:    memory.NewWindowHistory(cfg.Memory.Window),
		Facts:      facts,
		Sink:       sink,
		Collectors: metrics.NewCollectors(promReg),
		Logger:     logger,
	}, engine.Config{
		PromptPricePerM:     cfg.Pricing.PromptPerM,
		CompletionPricePerM: cfg.Pricing.CompletionPerM,
	})

	scheduler := cron.NewScheduler(logger)
	if knowledge != nil && cfg.KB.ReloadSchedule != "" {
		job := &cron.KBReloadJob{KB: knowledge, Logger: logger, ScheduleExpr: cfg.KB.ReloadSchedule}
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() { _ = scheduler.Stop(context.Background()) }()

	gw := gateway.New(gateway.Deps{
		Engine:   eng,
		Status:   statusSource{provider: client, kb: knowledge},
		Gatherer: promReg,
		Logger:   logger,
	}, gateway.Config{
		Bind:         cfg.Gateway.Bind,
		AuthToken:    cfg.Gateway.AuthToken,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		IdleTimeout:  cfg.Gateway.IdleTimeout,
	})
	if err := gw.Start(); err != nil {
		return err
	}

	logger.Info("chatd started",
		"version", params.Version,
		"model", cfg.Provider.Model,
		"bind", cfg.Gateway.Bind,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := gw.Stop(ctx); err != nil {
		logger.Error("gateway shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// registerBuiltins wires the built-in tools. kb_search is skipped when no
// knowledge base is loaded.
func registerBuiltins(registry *tool.Registry, knowledge *kb.KB) error {
	tools := []tool.Tool{
		builtin.NewWeather(),
		builtin.NewGrade(),
		builtin.NewWebLookup(),
	}
	if knowledge != nil {
		tools = append(tools, builtin.NewKBSearch(knowledge))
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// openFactStore returns the configured fact store and its closer. The
// in-memory store is used when long-term memory is disabled.
func openFactStore(cfg config.LongTermConfig, logger *slog.Logger) (memory.FactStore, func(), error) {
	if !cfg.Enabled {
		store := memory.NewMemFactStore()
		return store, func() {}, nil
	}
	store, err := sqlitemem.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			logger.Warn("fact store close failed", "error", err)
		}
	}
	return store, closer, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/chatd/chatd.yaml → ~/.config/chatd/chatd.yaml → ./chatd.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "chatd", "chatd.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "chatd", "chatd.yaml"))
	}

	candidates = append(candidates, "chatd.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
