package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoDescriptor() *Descriptor {
	return &Descriptor{
		Name:        "echo",
		ServerID:    "test",
		Description: "echoes its input",
		Parameters: Schema{
			Required: []string{"text"},
			Properties: map[string]Property{
				"text": {Type: "string", Description: "text to echo"},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoDescriptor()))

	assert.True(t, r.Has("echo"))
	assert.NotNil(t, r.Get("echo"))
	assert.Nil(t, r.Get("missing"))
	assert.Equal(t, 1, r.Count())
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoDescriptor()))

	err := r.Register(echoDescriptor())
	assert.ErrorIs(t, err, ErrToolAlreadyRegistered)
}

func TestReplaceAllowsOverwrite(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoDescriptor()))

	d := echoDescriptor()
	d.Description = "updated"
	require.NoError(t, r.Replace(d))
	assert.Equal(t, "updated", r.Get("echo").Description)
}

func TestUnregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoDescriptor()))

	r.Unregister("echo")
	assert.False(t, r.Has("echo"))
	r.Unregister("echo") // idempotent
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		d := echoDescriptor()
		d.Name = name
		require.NoError(t, r.Register(d))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestInvoke(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoDescriptor()))

	result, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Value)
	assert.Equal(t, "echo", result.ToolName)
}

func TestInvokeUnknown(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Invoke(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestInvokeMissingRequiredArg(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoDescriptor()))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{})
	assert.ErrorIs(t, err, ErrMissingRequiredArg)
}

func TestRegisterInvalidDescriptor(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Register(&Descriptor{Name: "", Invoke: nil})
	assert.Error(t, err)
}
