package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"reflex/internal/tools"
)

func TestBuildPromptListsCapabilities(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Query: "what time is it",
		Capabilities: []*tools.Descriptor{
			{
				Name:        "clock_now",
				Description: "Returns the current time.",
			},
			{
				Name:        "stock_quote",
				Description: "Returns a stock quote.",
				Parameters: tools.Schema{
					Required: []string{"symbol"},
					Properties: map[string]tools.Property{
						"symbol": {Type: "string", Description: "Ticker symbol"},
					},
				},
			},
		},
	})

	assert.Contains(t, p, "clock_now")
	assert.Contains(t, p, "stock_quote")
	assert.Contains(t, p, "symbol [string] (required)")
	assert.Contains(t, p, "Request: what time is it")
	assert.Contains(t, p, "func RunPlan")
}

func TestBuildPromptIncludesExample(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Query:        "price of MSFT",
		ExampleQuery: "price of TSLA",
		ExamplePlan:  `func RunPlan(call func(name string, args map[string]any) (string, error)) (string, error) { return "", nil }`,
	})

	assert.Contains(t, p, "solved before")
	assert.Contains(t, p, "price of TSLA")
	assert.Contains(t, p, "```go")
}

func TestBuildPromptIncludesFeedback(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Query:    "price of MSFT",
		Feedback: []string{`plan calls unknown capability "teleport"`},
	})

	assert.Contains(t, p, "rejected")
	assert.Contains(t, p, "teleport")
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	p := BuildPrompt(PromptInput{Query: "hello"})

	assert.NotContains(t, p, "solved before")
	assert.NotContains(t, p, "rejected")
	assert.Contains(t, p, "(none)")
}

func TestExtractCodeFencedGo(t *testing.T) {
	resp := "Here is the plan:\n```go\nfunc RunPlan() {}\n```\nDone."
	assert.Equal(t, "func RunPlan() {}", ExtractCode(resp))
}

func TestExtractCodePlainFence(t *testing.T) {
	resp := "```\nfunc RunPlan() {}\n```"
	assert.Equal(t, "func RunPlan() {}", ExtractCode(resp))
}

func TestExtractCodeNoFence(t *testing.T) {
	resp := "  func RunPlan() {}  "
	assert.Equal(t, "func RunPlan() {}", ExtractCode(resp))
}

func TestExtractCodeUnterminatedFence(t *testing.T) {
	resp := "```go\nfunc RunPlan() {}"
	got := ExtractCode(resp)
	assert.True(t, strings.Contains(got, "func RunPlan"), "got: %q", got)
}
