package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/artifact"
	"github.com/psychon7/Triage-AI/internal/config"
	"github.com/psychon7/Triage-AI/internal/llm"
	"github.com/psychon7/Triage-AI/internal/logger"
	"github.com/psychon7/Triage-AI/internal/memory"
	"github.com/psychon7/Triage-AI/internal/pipeline"
	"github.com/psychon7/Triage-AI/internal/policy"
	"github.com/psychon7/Triage-AI/internal/prompts"
	"github.com/psychon7/Triage-AI/internal/telemetry"
)

// runtimeOptions tune newRuntime.
type runtimeOptions struct {
	// generator replaces the configured LLM; used by tests.
	generator pipeline.Generator
	// restore loads persisted tasks into the registry.
	restore bool
	// watch hot-reloads the prompt override file and the policies
	// directory until ctx ends.
	watch bool
}

// pipelineRuntime is the fully wired pipeline shared by serve, mcp and run.
type pipelineRuntime struct {
	cfg        config.AppConfig
	logger     *slog.Logger
	store      *memory.SQLiteStore
	journal    *memory.Journal
	registry   *pipeline.Registry
	dispatcher *pipeline.Dispatcher
	controller *pipeline.Controller
	gateway    *approval.Gateway
	prompts    *prompts.Library
	policy     *policy.Engine
	sink       *artifact.Sink
	telemetry  telemetry.Client
}

func newRuntime(ctx context.Context, cfg config.AppConfig, log *slog.Logger, opts runtimeOptions) (rt *pipelineRuntime, err error) {
	if log == nil {
		log = logger.Discard()
	}
	rt = &pipelineRuntime{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	fs := afero.NewOsFs()

	rt.prompts = prompts.NewLibrary(fs, cfg.PromptsPath())
	if err := rt.prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if opts.watch {
		if err := rt.prompts.Watch(ctx, log); err != nil {
			log.Warn("prompt hot reload disabled", "error", err)
		}
	}

	gen := opts.generator
	if gen == nil {
		if gen, err = newGenerator(ctx, cfg, log); err != nil {
			return nil, err
		}
	}
	exec, err := pipeline.NewExecutor(gen, rt.prompts, log)
	if err != nil {
		return nil, err
	}

	regOpts := []pipeline.RegistryOption{pipeline.WithRegistryLogger(log)}
	if cfg.Data.Persist {
		if rt.store, err = memory.NewSQLiteStore(cfg.Data.Dir); err != nil {
			return nil, fmt.Errorf("open task store: %w", err)
		}
		rt.journal = memory.NewJournal(rt.store, log)
		regOpts = append(regOpts, pipeline.WithJournal(rt.journal))
	}
	rt.registry = pipeline.NewRegistry(regOpts...)

	if opts.restore && rt.store != nil {
		states, err := rt.store.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		n, err := pipeline.RestoreInterrupted(rt.registry, states, time.Now())
		if err != nil {
			return nil, fmt.Errorf("restore tasks: %w", err)
		}
		log.Info("tasks restored", "total", len(states), "interrupted", n)
	}

	rt.dispatcher = pipeline.NewDispatcher(cfg.Pipeline.Workers,
		pipeline.WithDispatcherLogger(log),
		pipeline.WithPanicHandler(func(job string, value any, stack []byte) {
			path, err := logger.RecordPanic(job, value, stack)
			if err != nil {
				log.Error("crash log not written", "job", job, "error", err)
				return
			}
			log.Error("background job panicked", "job", job, "crash_log", path)
		}))

	installID, err := telemetry.InstallID(cfg.Data.Dir)
	if err != nil {
		log.Debug("telemetry install id unavailable", "error", err)
	}
	if rt.telemetry, err = telemetry.New(cfg.Telemetry.Enabled && installID != "", telemetry.ClientConfig{
		APIKey:     cfg.Telemetry.APIKey,
		Endpoint:   cfg.Telemetry.Endpoint,
		Version:    version,
		DistinctID: installID,
	}); err != nil {
		log.Warn("telemetry disabled", "error", err)
		rt.telemetry = telemetry.NewNoopClient()
	}

	ctrlOpts := []pipeline.ControllerOption{
		pipeline.WithLogger(log),
		pipeline.WithObserver(telemetry.NewObserver(rt.telemetry)),
	}
	if cfg.Data.Persist {
		rt.sink = artifact.NewSink(fs, cfg.OutputPath())
		ctrlOpts = append(ctrlOpts, pipeline.WithArtifactSink(rt.sink))
	}
	if rt.controller, err = pipeline.NewController(rt.registry, exec, rt.dispatcher, ctrlOpts...); err != nil {
		return nil, err
	}

	if rt.policy, err = policy.NewEngine(ctx, policy.Config{Fs: fs, PoliciesDir: cfg.PoliciesPath()}); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	if names := rt.policy.PolicyNames(); len(names) > 0 {
		log.Info("approval policies loaded", "policies", names)
	}
	if opts.watch {
		if err := rt.policy.Watch(ctx, log); err != nil {
			log.Warn("policy hot reload disabled", "error", err)
		}
	}
	rt.gateway = approval.NewGateway(rt.controller, approval.WithLogger(log), approval.WithGuard(rt.policy))
	return rt, nil
}

func newGenerator(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (pipeline.Generator, error) {
	llmCfg, err := cfg.LoadLLMConfig()
	if err != nil {
		return nil, err
	}
	chat, err := llm.NewChatModel(ctx, llmCfg)
	if err != nil {
		return nil, fmt.Errorf("configure %s model: %w", llmCfg.Provider, err)
	}
	gen, err := llm.NewChatGenerator(chat, llmCfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("generation provider ready", "provider", string(llmCfg.Provider), "model", llmCfg.Model)
	return gen, nil
}

// Close drains background work, then flushes persistence and telemetry.
func (rt *pipelineRuntime) Close(ctx context.Context) error {
	var errs []error
	if rt.dispatcher != nil {
		if err := rt.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain stage jobs: %w", err))
		}
	}
	if rt.journal != nil {
		if err := rt.journal.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush journal: %w", err))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task store: %w", err))
		}
	}
	if rt.telemetry != nil {
		_ = rt.telemetry.Close()
	}
	return errors.Join(errs...)
}
