package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"reflex/internal/tools"
)

// entrySymbol is the interpreter path of the plan entry point.
const entrySymbol = "main.RunPlan"

// planFunc is the structural type the entry point must assert to
// across the interpreter boundary.
type planFunc = func(func(string, map[string]any) (string, error)) (string, error)

// Runner executes plans. Safe for concurrent use; every Execute builds
// its own interpreter and dispatcher.
type Runner struct {
	registry  *tools.Registry
	callLimit int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRunner creates a plan runner with a per-run call ceiling and
// wall-clock timeout.
func NewRunner(registry *tools.Registry, callLimit int, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		registry:  registry,
		callLimit: callLimit,
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute runs a plan to completion or cutoff and always returns a
// classified outcome, never a bare error.
func (r *Runner) Execute(ctx context.Context, planCode string) Outcome {
	start := time.Now()
	dispatcher := NewDispatcher(r.registry, r.callLimit, r.logger)

	outcome := r.execute(ctx, planCode, dispatcher)
	outcome.ToolCalls = dispatcher.Issued()
	outcome.Duration = time.Since(start)

	r.logger.Debug("Sandbox run finished",
		zap.String("status", string(outcome.Status)),
		zap.Int("tool_calls", outcome.ToolCalls),
		zap.Duration("duration", outcome.Duration))
	return outcome
}

func (r *Runner) execute(ctx context.Context, planCode string, dispatcher *Dispatcher) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Outcome{Status: StatusRuntimeError, Err: fmt.Errorf("failed to load stdlib: %w", err)}
	}

	if _, err := i.Eval(wrapCode(planCode)); err != nil {
		return Outcome{Status: StatusRuntimeError, Err: fmt.Errorf("plan failed to compile: %w", err)}
	}

	entry, err := i.Eval(entrySymbol)
	if err != nil {
		return Outcome{Status: StatusRuntimeError, Err: fmt.Errorf("RunPlan not found: %w", err)}
	}
	fn, ok := entry.Interface().(planFunc)
	if !ok {
		return Outcome{Status: StatusRuntimeError,
			Err: errors.New("RunPlan has the wrong signature")}
	}

	call := func(name string, args map[string]any) (string, error) {
		return dispatcher.Call(ctx, name, args)
	}

	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("plan panicked: %v", rec)
			}
		}()
		answer, err := fn(call)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- answer
	}()

	select {
	case answer := <-resultCh:
		return Outcome{Status: StatusSuccess, Answer: answer}
	case err := <-errCh:
		if errors.Is(err, ErrCallLimit) {
			return Outcome{Status: StatusLimitExceeded, Err: err}
		}
		return Outcome{Status: StatusRuntimeError, Err: err}
	case <-ctx.Done():
		// The interpreter goroutine cannot be killed; abandoning the
		// dispatcher makes sure whatever it still does goes nowhere.
		dispatcher.Abandon()
		return Outcome{Status: StatusTimeout,
			Err: fmt.Errorf("plan exceeded %v: %w", r.timeout, ctx.Err())}
	}
}

// wrapCode puts bare plan source into package main.
func wrapCode(code string) string {
	if strings.Contains(code, "package ") {
		return code
	}
	return "package main\n\n" + code
}
