package llm

import (
	"fmt"
	"strings"

	"reflex/internal/tools"
)

// PromptInput carries everything the prompt needs: the query, the
// capability registry snapshot, an optional worked example from
// memory, and feedback from earlier failed attempts.
type PromptInput struct {
	Query        string
	Capabilities []*tools.Descriptor

	// ExampleQuery and ExamplePlan come from a mid-band memory match.
	ExampleQuery string
	ExamplePlan  string

	// Feedback lists guardrail or execution findings from prior
	// attempts of this same request.
	Feedback []string
}

// BuildPrompt assembles the generation prompt.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You write small Go plans that answer a user request by calling capabilities.\n")
	b.WriteString("Respond with a single Go code block containing exactly one function:\n\n")
	b.WriteString("\tfunc RunPlan(call func(name string, args map[string]any) (string, error)) (string, error)\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Only invoke capabilities from the list below, via the call argument.\n")
	b.WriteString("- Import only small stdlib packages (fmt, strings, strconv, time, math, sort, errors).\n")
	b.WriteString("- Return the final answer as the string result.\n")
	b.WriteString("- No file system access, no network access outside capabilities, no goroutines.\n\n")

	b.WriteString("Available capabilities:\n")
	if len(in.Capabilities) == 0 {
		b.WriteString("(none)\n")
	}
	for _, d := range in.Capabilities {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		for name, p := range d.Parameters.Properties {
			required := ""
			if contains(d.Parameters.Required, name) {
				required = " (required)"
			}
			fmt.Fprintf(&b, "    %s [%s]%s: %s\n", name, p.Type, required, p.Description)
		}
	}
	b.WriteString("\n")

	if in.ExamplePlan != "" {
		b.WriteString("A similar request was solved before. Adapt this example:\n")
		fmt.Fprintf(&b, "Request: %s\n", in.ExampleQuery)
		fmt.Fprintf(&b, "Plan:\n```go\n%s\n```\n\n", strings.TrimSpace(in.ExamplePlan))
	}

	if len(in.Feedback) > 0 {
		b.WriteString("Your previous attempt was rejected. Fix all of these problems:\n")
		for _, f := range in.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Request: %s\n", in.Query)
	return b.String()
}

// ExtractCode pulls plan source out of a model response. Fenced code
// blocks win; a response without fences is taken as-is.
func ExtractCode(response string) string {
	for _, fence := range []string{"```go", "```"} {
		start := strings.Index(response, fence)
		if start < 0 {
			continue
		}
		rest := response[start+len(fence):]
		end := strings.Index(rest, "```")
		if end < 0 {
			break
		}
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(response)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
