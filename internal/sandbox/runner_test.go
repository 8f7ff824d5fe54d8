package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"reflex/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRunner(t *testing.T, callLimit int, timeout time.Duration) *Runner {
	t.Helper()
	r := tools.NewRegistry(nil)
	r.MustRegister(&tools.Descriptor{
		Name:        "echo",
		ServerID:    "test",
		Description: "echoes its input",
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	})
	r.MustRegister(&tools.Descriptor{
		Name:        "slow",
		ServerID:    "test",
		Description: "blocks until the run is cut off",
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
	})
	return NewRunner(r, callLimit, timeout, nil)
}

func TestExecuteSuccess(t *testing.T) {
	r := newTestRunner(t, 5, 5*time.Second)

	out := r.Execute(context.Background(), `
func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) {
	v, err := call("echo", map[string]any{"text": "hello"})
	if err != nil {
		return "", err
	}
	return "said: " + v, nil
}
`)
	require.True(t, out.OK(), "unexpected outcome: %v %v", out.Status, out.Err)
	assert.Equal(t, "said: hello", out.Answer)
	assert.Equal(t, 1, out.ToolCalls)
}

func TestExecuteCallLimit(t *testing.T) {
	r := newTestRunner(t, 2, 5*time.Second)

	out := r.Execute(context.Background(), `
func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) {
	for i := 0; i < 10; i++ {
		if _, err := call("echo", map[string]any{"text": "x"}); err != nil {
			return "", err
		}
	}
	return "done", nil
}
`)
	assert.Equal(t, StatusLimitExceeded, out.Status)
	assert.Equal(t, 2, out.ToolCalls)
}

func TestExecuteTimeout(t *testing.T) {
	r := newTestRunner(t, 5, 100*time.Millisecond)

	out := r.Execute(context.Background(), `
func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) {
	return call("slow", map[string]any{})
}
`)
	assert.Equal(t, StatusTimeout, out.Status)
	assert.Error(t, out.Err)
}

func TestExecutePanicIsCaptured(t *testing.T) {
	r := newTestRunner(t, 5, 5*time.Second)

	out := r.Execute(context.Background(), `
func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) {
	var xs []string
	return xs[3], nil
}
`)
	assert.Equal(t, StatusRuntimeError, out.Status)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "panicked")
}

func TestExecuteCompileError(t *testing.T) {
	r := newTestRunner(t, 5, 5*time.Second)

	out := r.Execute(context.Background(), `func RunPlan( {{{`)
	assert.Equal(t, StatusRuntimeError, out.Status)
	assert.Error(t, out.Err)
}

func TestExecuteMissingEntryPoint(t *testing.T) {
	r := newTestRunner(t, 5, 5*time.Second)

	out := r.Execute(context.Background(), `
func SomethingElse() string { return "x" }
`)
	assert.Equal(t, StatusRuntimeError, out.Status)
}

func TestExecuteFreshScopePerRun(t *testing.T) {
	r := newTestRunner(t, 5, 5*time.Second)

	plan := `
import "strconv"

var runs int

func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) {
	runs++
	return strconv.Itoa(runs), nil
}
`
	first := r.Execute(context.Background(), plan)
	second := r.Execute(context.Background(), plan)

	require.True(t, first.OK())
	require.True(t, second.OK())
	assert.Equal(t, "1", first.Answer)
	assert.Equal(t, "1", second.Answer, "interpreter state must not leak between runs")
}

func TestExecuteUnknownCapability(t *testing.T) {
	r := newTestRunner(t, 5, 5*time.Second)

	out := r.Execute(context.Background(), `
func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) {
	return call("teleport", nil)
}
`)
	assert.Equal(t, StatusRuntimeError, out.Status)
	assert.ErrorIs(t, out.Err, ErrUnknownCapability)
}
