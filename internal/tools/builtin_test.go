package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry(nil)
	RegisterBuiltins(r)

	assert.True(t, r.Has("clock_now"))
	assert.True(t, r.Has("calc_eval"))
	assert.True(t, r.Has("http_fetch"))
}

func TestClockNow(t *testing.T) {
	out, err := clockNow(context.Background(), nil)
	require.NoError(t, err)

	_, err = time.Parse(time.RFC3339, out)
	assert.NoError(t, err, "clock_now must emit RFC 3339, got %q", out)
}

func TestCalcEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"(3+4)*12", "84"},
		{"2+2", "4"},
		{"7 % 3", "1"},
		{"1 << 10", "1024"},
	}
	for _, tt := range tests {
		out, err := calcEval(context.Background(), map[string]any{"expression": tt.expr})
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, out, tt.expr)
	}
}

func TestCalcEvalRejectsNonConstant(t *testing.T) {
	_, err := calcEval(context.Background(), map[string]any{"expression": "os.Getenv(\"PATH\")"})
	assert.Error(t, err)
}

func TestCalcEvalMissingArg(t *testing.T) {
	_, err := calcEval(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, ErrMissingRequiredArg)
}

func TestExtractText(t *testing.T) {
	doc := `<html><head><title>My Page</title><style>body{}</style></head>
<body><script>alert(1)</script><h1>Hello</h1><p>World</p></body></html>`

	title, text, err := extractText(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "My Page", title)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World")
	assert.NotContains(t, text, "alert", "script content must be skipped")
	assert.NotContains(t, text, "body{}", "style content must be skipped")
}
