package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reflex/internal/agent"
)

var (
	batchFile        string
	batchConcurrency int
)

// runCmd executes one request, or a batch of them from a file.
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Answer a single request through the full pipeline",
	Long: `Processes a request end to end: memory match, plan generation,
guardrail screening, sandboxed execution, memory record.

Example:
  reflex run "what is the current time"
  reflex run --file requests.txt --concurrency 4`,
	RunE: runRequests,
}

func init() {
	runCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file with one request per line")
	runCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "parallel requests in batch mode")
}

func runRequests(cmd *cobra.Command, args []string) error {
	if batchFile == "" && len(args) == 0 {
		return fmt.Errorf("provide a request or --file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if batchFile != "" {
		return runBatch(ctx, s, batchFile)
	}

	resp, err := s.agent.Process(ctx, strings.Join(args, " "))
	printResponse(strings.Join(args, " "), resp, err)
	if err != nil && !errors.Is(err, agent.ErrBudgetExhausted) {
		return err
	}
	return nil
}

// runBatch answers every request in the file, a few at a time, and
// prints results in input order.
func runBatch(ctx context.Context, s *stack, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	var requests []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		requests = append(requests, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("batch file %s has no requests", path)
	}

	logger.Info("Batch started",
		zap.Int("requests", len(requests)),
		zap.Int("concurrency", batchConcurrency))

	type result struct {
		resp *agent.Response
		err  error
	}
	results := make([]result, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range requests {
		g.Go(func() error {
			resp, err := s.agent.Process(gctx, req)
			results[i] = result{resp: resp, err: err}
			if err != nil && !errors.Is(err, agent.ErrBudgetExhausted) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, req := range requests {
		printResponse(req, results[i].resp, results[i].err)
	}
	return nil
}

func printResponse(request string, resp *agent.Response, err error) {
	if resp == nil {
		fmt.Printf("✗ %s\n  error: %v\n", request, err)
		return
	}
	switch resp.Status {
	case agent.StatusFastPath:
		fmt.Printf("✓ %s\n  %s  (from memory)\n", request, resp.Answer)
	case agent.StatusSynthesized:
		fmt.Printf("✓ %s\n  %s  (%d steps, %d tool calls)\n",
			request, resp.Answer, resp.Steps, resp.ToolCalls)
	default:
		fmt.Printf("✗ %s\n  failed after %d steps: %s\n", request, resp.Steps, resp.LastError)
	}
}
