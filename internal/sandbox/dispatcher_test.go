package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reflex/internal/tools"
)

func stubRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(nil)
	r.MustRegister(&tools.Descriptor{
		Name:        "echo",
		ServerID:    "test",
		Description: "echoes its input",
		Parameters: tools.Schema{
			Required: []string{"text"},
			Properties: map[string]tools.Property{
				"text": {Type: "string", Description: "text to echo"},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	})
	return r
}

func TestDispatcherCeilingAtIssuance(t *testing.T) {
	d := NewDispatcher(stubRegistry(t), 2, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		out, err := d.Call(ctx, "echo", map[string]any{"text": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "hi", out)
	}

	// The third call is refused outright, not allowed to run.
	_, err := d.Call(ctx, "echo", map[string]any{"text": "hi"})
	assert.ErrorIs(t, err, ErrCallLimit)
	assert.Equal(t, 2, d.Issued())
}

func TestDispatcherUnknownCapability(t *testing.T) {
	d := NewDispatcher(stubRegistry(t), 5, nil)

	_, err := d.Call(context.Background(), "teleport", nil)
	assert.ErrorIs(t, err, ErrUnknownCapability)

	// A failed lookup spends no budget; only forwarded calls count.
	assert.Equal(t, 0, d.Issued())

	out, err := d.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, 1, d.Issued())
}

func TestDispatcherAbandonBlocksNewCalls(t *testing.T) {
	d := NewDispatcher(stubRegistry(t), 5, nil)
	d.Abandon()

	_, err := d.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	assert.ErrorIs(t, err, ErrRunAbandoned)
	assert.Equal(t, 0, d.Issued())
}

func TestDispatcherFreshPerRun(t *testing.T) {
	reg := stubRegistry(t)
	ctx := context.Background()

	d1 := NewDispatcher(reg, 1, nil)
	_, err := d1.Call(ctx, "echo", map[string]any{"text": "a"})
	require.NoError(t, err)
	_, err = d1.Call(ctx, "echo", map[string]any{"text": "b"})
	require.ErrorIs(t, err, ErrCallLimit)

	// A new run starts with a zeroed counter.
	d2 := NewDispatcher(reg, 1, nil)
	out, err := d2.Call(ctx, "echo", map[string]any{"text": "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", out)
}
