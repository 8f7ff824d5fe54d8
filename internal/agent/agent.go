// Package agent wires memory, generation, guardrail and sandbox into
// the dual-process control loop. Known queries come back from memory
// without touching the generator; novel queries go through bounded
// generate, screen and execute rounds.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reflex/internal/config"
	"reflex/internal/guardrail"
	"reflex/internal/llm"
	"reflex/internal/memory"
	"reflex/internal/sandbox"
	"reflex/internal/tools"
)

// ErrBudgetExhausted means every allowed attempt failed.
var ErrBudgetExhausted = errors.New("step budget exhausted")

// Status classifies how a request was answered.
type Status string

const (
	StatusFastPath    Status = "fast_path"
	StatusSynthesized Status = "synthesized"
	StatusFailed      Status = "failed"
)

// Response is the outcome of one request.
type Response struct {
	Answer    string
	Status    Status
	Steps     int
	ToolCalls int
	LastError string
}

// Generator produces plan source from a prompt. Satisfied by llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent is the request controller.
type Agent struct {
	cfg       *config.Config
	memory    *memory.Store
	guard     *guardrail.Engine
	runner    *sandbox.Runner
	registry  *tools.Registry
	generator Generator
	logger    *zap.Logger
}

// New assembles an agent from its parts.
func New(cfg *config.Config, mem *memory.Store, guard *guardrail.Engine,
	runner *sandbox.Runner, registry *tools.Registry, gen Generator, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		cfg:       cfg,
		memory:    mem,
		guard:     guard,
		runner:    runner,
		registry:  registry,
		generator: gen,
		logger:    logger,
	}
}

// Process handles one request end to end.
func (a *Agent) Process(ctx context.Context, query string) (*Response, error) {
	start := time.Now()

	resp, err := a.process(ctx, query, start)
	a.audit(query, resp, start)
	return resp, err
}

func (a *Agent) process(ctx context.Context, query string, start time.Time) (*Response, error) {
	state := StateMatchMemory
	a.logger.Debug("Request started", zap.String("state", state.String()))

	var exampleQuery, examplePlan string
	if match := a.memory.Lookup(query); match != nil {
		switch {
		case match.Similarity >= a.cfg.Memory.FastPathThreshold:
			state = StateFastReturn
			a.logger.Info("Fast path hit",
				zap.String("state", state.String()),
				zap.Float64("similarity", match.Similarity))
			if err := a.memory.IncrementSuccess(match.Record.ID); err != nil {
				a.logger.Warn("Failed to bump reuse counter", zap.Error(err))
			}
			return &Response{Answer: match.Record.Answer, Status: StatusFastPath}, nil

		case match.Similarity >= a.cfg.Memory.FewShotThreshold:
			exampleQuery = match.Record.RawQuery
			examplePlan = match.Record.PlanCode
			a.logger.Debug("Few-shot example attached",
				zap.Float64("similarity", match.Similarity))
		}
	}

	budget := NewStepBudget(a.cfg.Budget.MaxSteps, a.cfg.Budget.MaxLifelines)
	var feedback []string
	var lastErr error
	steps := 0

	for budget.ConsumeStep() {
		steps++
		state = StatePlan
		a.logger.Debug("Planning attempt",
			zap.String("state", state.String()),
			zap.Int("attempt", steps))

		prompt := llm.BuildPrompt(llm.PromptInput{
			Query:        query,
			Capabilities: a.registry.All(),
			ExampleQuery: exampleQuery,
			ExamplePlan:  examplePlan,
			Feedback:     feedback,
		})

		plan, err := a.generator.Generate(ctx, prompt)
		if err != nil {
			lastErr = fmt.Errorf("generation failed: %w", err)
			a.logger.Warn("Generation failed", zap.Error(err))
			if !budget.ConsumeLifeline() {
				break
			}
			continue
		}

		state = StateGuard
		verdict, err := a.guard.Evaluate(plan, a.registry.Names())
		if err != nil {
			return &Response{Status: StatusFailed, Steps: steps, LastError: err.Error()}, err
		}
		if !verdict.Approved() {
			state = StateReplan
			feedback = violationDetails(verdict.Violations)
			lastErr = fmt.Errorf("plan rejected: %s", feedback[0])
			a.logger.Info("Plan rejected by guardrail",
				zap.String("state", state.String()),
				zap.Int("violations", len(verdict.Violations)))
			if !budget.ConsumeLifeline() {
				break
			}
			continue
		}
		for _, w := range verdict.Warnings() {
			a.logger.Warn("Plan warning",
				zap.String("rule", w.RuleID),
				zap.String("detail", w.Detail))
		}

		state = StateExecute
		outcome := a.runner.Execute(ctx, plan)
		if outcome.OK() {
			state = StateRecord
			if _, err := a.memory.Append(query, plan, outcome.Answer); err != nil &&
				!errors.Is(err, memory.ErrEmptyQuery) {
				a.logger.Warn("Failed to record memory", zap.Error(err))
			}
			a.logger.Info("Request answered",
				zap.String("state", state.String()),
				zap.Int("steps", steps),
				zap.Int("tool_calls", outcome.ToolCalls),
				zap.Duration("duration", time.Since(start)))
			return &Response{
				Answer:    outcome.Answer,
				Status:    StatusSynthesized,
				Steps:     steps,
				ToolCalls: outcome.ToolCalls,
			}, nil
		}

		state = StateCorrect
		lastErr = outcome.Err
		feedback = []string{executionFeedback(outcome)}
		a.logger.Info("Execution failed",
			zap.String("state", state.String()),
			zap.String("outcome", string(outcome.Status)))
		if !budget.ConsumeLifeline() {
			break
		}
	}

	detail := ""
	if lastErr != nil {
		detail = lastErr.Error()
	}
	a.logger.Warn("Budget exhausted",
		zap.Int("steps", steps),
		zap.String("last_error", detail))
	return &Response{Status: StatusFailed, Steps: steps, LastError: detail}, ErrBudgetExhausted
}

// audit writes the run audit row. Best effort.
func (a *Agent) audit(query string, resp *Response, start time.Time) {
	if resp == nil {
		return
	}
	_ = a.memory.RecordRun(memory.RunAudit{
		RawQuery:   query,
		Status:     string(resp.Status),
		ToolCalls:  resp.ToolCalls,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     resp.LastError,
	})
}

// violationDetails flattens a verdict into generator feedback lines,
// preserving rule order.
func violationDetails(violations []guardrail.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Detail)
	}
	return out
}

func executionFeedback(o sandbox.Outcome) string {
	switch o.Status {
	case sandbox.StatusTimeout:
		return "the previous plan ran too long and was cut off; do less work per plan"
	case sandbox.StatusLimitExceeded:
		return "the previous plan made too many capability calls; use fewer calls"
	default:
		if o.Err != nil {
			return fmt.Sprintf("the previous plan failed at runtime: %v", o.Err)
		}
		return "the previous plan failed at runtime"
	}
}
