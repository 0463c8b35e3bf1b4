package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/config"
	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/orchestrator"
	"github.com/ShayCichocki/switchyard/internal/state"
	"github.com/ShayCichocki/switchyard/internal/tools"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// app holds the wired collaborators shared by serve, chat and resume.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	orch   *orchestrator.Orchestrator
	store  state.CheckpointStore
	tools  *tools.Registry
	// usage accumulates model usage over the life of the process.
	usage *llm.TokenTracker
}

// newApp wires models, tools, the checkpoint store and the orchestrator.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	usage := llm.NewTokenTracker()

	router, err := buildRouter(ctx, cfg, usage, logger)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	purgeCheckpoints(ctx, store, cfg.Checkpoint.Retention, logger)

	registry, err := tools.Load(ctx, cfg.MCP.Servers, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load tools: %w", err)
	}

	opts, err := orchestratorOptions(cfg.Orchestrator, logger)
	if err != nil {
		_ = registry.Close()
		_ = store.Close()
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.RequiredConfig{
		Models: router,
		Tools:  registry,
		Store:  store,
	}, opts...)
	if err != nil {
		_ = registry.Close()
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		orch:   orch,
		store:  store,
		tools:  registry,
		usage:  usage,
	}, nil
}

// Close releases tool connections and the checkpoint store.
func (a *app) Close() error {
	in, out := a.usage.Total()
	a.logger.Debug().
		Int64("input_tokens", in).
		Int64("output_tokens", out).
		Int("calls", a.usage.Calls()).
		Msg("session usage")
	return errors.Join(a.tools.Close(), a.store.Close())
}

// buildRouter creates the default model and, when configured with a
// different provider, the reasoning model.
func buildRouter(ctx context.Context, cfg *config.Config, usage *llm.TokenTracker, logger zerolog.Logger) (*llm.Router, error) {
	def, err := buildModel(ctx, cfg, cfg.Models.Default, usage, logger)
	if err != nil {
		return nil, err
	}
	router := llm.NewRouter(def)

	if p := cfg.Models.Reasoning; p != "" && p != cfg.Models.Default {
		m, err := buildModel(ctx, cfg, p, usage, logger)
		if err != nil {
			return nil, fmt.Errorf("reasoning model: %w", err)
		}
		router.Register(models.ModelHintReasoning, m)
	}
	return router, nil
}

func buildModel(ctx context.Context, cfg *config.Config, provider string, usage *llm.TokenTracker, logger zerolog.Logger) (llm.Model, error) {
	var m llm.Model
	switch provider {
	case config.ProviderAnthropic:
		var key string
		if !cfg.Anthropic.Bedrock {
			k, err := config.GetAPIKey(cfg, provider)
			if err != nil {
				return nil, err
			}
			key = k
		}
		a, err := llm.NewAnthropic(ctx, llm.AnthropicConfig{
			Model:      cfg.Anthropic.Model,
			APIKey:     key,
			UseBedrock: cfg.Anthropic.Bedrock,
			Region:     cfg.Anthropic.Region,
			Profile:    cfg.Anthropic.Profile,
			MaxTokens:  cfg.Anthropic.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		m = a
	case config.ProviderGemini:
		key, err := config.GetAPIKey(cfg, provider)
		if err != nil {
			return nil, err
		}
		g, err := llm.NewGemini(llm.GeminiConfig{
			APIKey:   key,
			Model:    cfg.Gemini.Model,
			Endpoint: cfg.Gemini.Endpoint,
			Timeout:  cfg.Gemini.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini model: %w", err)
		}
		m = g
	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrNoProvider, provider)
	}

	logger.Debug().Str("provider", provider).Str("model", m.Name()).Msg("model ready")
	return llm.Tracked(llm.WithTimeout(m, cfg.Orchestrator.ModelCallTimeout), usage), nil
}

func openStore(cfg config.CheckpointConfig) (state.CheckpointStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return state.NewMemoryStore(), nil
	case config.DriverSQLite, "":
		path := cfg.Path
		if path == "" {
			path = state.DefaultDBPath()
		}
		db, err := state.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}

func purgeCheckpoints(ctx context.Context, store state.CheckpointStore, retention time.Duration, logger zerolog.Logger) {
	if retention <= 0 {
		return
	}
	n, err := store.PurgeOlderThan(ctx, retention)
	if err != nil {
		logger.Warn().Err(err).Msg("purge checkpoints")
		return
	}
	if n > 0 {
		logger.Info().Int64("purged", n).Msg("expired checkpoints removed")
	}
}

// sweepCheckpoints purges expired checkpoints every interval until ctx ends.
func sweepCheckpoints(ctx context.Context, store state.CheckpointStore, retention, interval time.Duration, logger zerolog.Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCheckpoints(ctx, store, retention, logger)
		}
	}
}

func orchestratorOptions(cfg config.OrchestratorConfig, logger zerolog.Logger) ([]orchestrator.Option, error) {
	policy, err := orchestrator.ParseDeadlockPolicy(cfg.DeadlockPolicy)
	if err != nil {
		return nil, err
	}
	return []orchestrator.Option{
		orchestrator.WithMaxConcurrency(cfg.MaxConcurrency),
		orchestrator.WithMaxToolIterations(cfg.MaxToolIterations),
		orchestrator.WithDeadlockPolicy(policy),
		orchestrator.WithApproval(cfg.ApprovalEnabled),
		orchestrator.WithRefine(cfg.RefineEnabled),
		orchestrator.WithLogger(logger),
	}, nil
}
