package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reflex/internal/agent"
	"reflex/internal/guardrail"
	"reflex/internal/llm"
	"reflex/internal/memory"
	"reflex/internal/sandbox"
	"reflex/internal/tools"
)

// stack is the assembled agent plus everything that needs teardown.
type stack struct {
	agent    *agent.Agent
	memory   *memory.Store
	registry *tools.Registry
	watcher  *tools.ManifestWatcher
}

// buildStack wires the full pipeline from the loaded config.
func buildStack(ctx context.Context) (*stack, error) {
	mem, err := memory.Open(cfg.Memory.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	registry := tools.NewRegistry(logger)
	if cfg.Tools.EnableBuiltins {
		tools.RegisterBuiltins(registry)
	}
	if cfg.Tools.ManifestDir != "" {
		n, err := tools.LoadManifestDir(registry, cfg.Tools.ManifestDir)
		if err != nil {
			mem.Close()
			return nil, fmt.Errorf("failed to load tool manifests: %w", err)
		}
		if n > 0 {
			logger.Info("Loaded tool manifests",
				zap.String("dir", cfg.Tools.ManifestDir),
				zap.Int("tools", n))
		}
	}

	var watcher *tools.ManifestWatcher
	if cfg.Tools.WatchManifests && cfg.Tools.ManifestDir != "" {
		watcher, err = tools.NewManifestWatcher(registry, cfg.Tools.ManifestDir, logger)
		if err != nil {
			mem.Close()
			return nil, fmt.Errorf("failed to create manifest watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			mem.Close()
			return nil, err
		}
	}

	guard, err := guardrail.NewEngine(cfg.Guardrail, logger)
	if err != nil {
		mem.Close()
		return nil, err
	}

	gen, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		mem.Close()
		return nil, err
	}

	runner := sandbox.NewRunner(registry, cfg.Budget.MaxToolCallsPerRun, cfg.ExecutionTimeout(), logger)

	return &stack{
		agent:    agent.New(cfg, mem, guard, runner, registry, gen, logger),
		memory:   mem,
		registry: registry,
		watcher:  watcher,
	}, nil
}

// Close tears the stack down in reverse order.
func (s *stack) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.memory != nil {
		_ = s.memory.Close()
	}
}
