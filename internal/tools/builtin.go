package tools

import (
	"context"
	"fmt"
	"go/token"
	"go/types"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Built-in local capabilities. These make the agent runnable end to end
// without any external tool servers.

const fetchBodyLimit = 256 * 1024

// BuiltinDescriptors returns the built-in capability set.
func BuiltinDescriptors() []*Descriptor {
	return []*Descriptor{
		{
			Name:        "clock_now",
			ServerID:    "builtin",
			Description: "Returns the current date and time in RFC 3339 format.",
			Parameters:  Schema{},
			Tags:        []string{"pure"},
			Invoke:      clockNow,
		},
		{
			Name:        "calc_eval",
			ServerID:    "builtin",
			Description: "Evaluates a constant arithmetic expression, e.g. \"(3+4)*12\".",
			Parameters: Schema{
				Required: []string{"expression"},
				Properties: map[string]Property{
					"expression": {Type: "string", Description: "Arithmetic expression to evaluate"},
				},
			},
			Tags:   []string{"pure"},
			Invoke: calcEval,
		},
		{
			Name:        "http_fetch",
			ServerID:    "builtin",
			Description: "Fetches a URL and returns the page title and visible text.",
			Parameters: Schema{
				Required: []string{"url"},
				Properties: map[string]Property{
					"url": {Type: "string", Description: "Absolute http(s) URL to fetch"},
				},
			},
			Tags:   []string{"network"},
			Invoke: httpFetch,
		},
	}
}

func clockNow(ctx context.Context, args map[string]any) (string, error) {
	return time.Now().Format(time.RFC3339), nil
}

// calcEval evaluates constant expressions via the go/types constant
// evaluator. No identifiers, no function calls, no side effects.
func calcEval(ctx context.Context, args map[string]any) (string, error) {
	expr, ok := args["expression"].(string)
	if !ok || strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("%w: expression", ErrMissingRequiredArg)
	}

	fset := token.NewFileSet()
	tv, err := types.Eval(fset, nil, token.NoPos, expr)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	if tv.Value == nil {
		return "", fmt.Errorf("expression %q is not a constant", expr)
	}
	return tv.Value.String(), nil
}

func httpFetch(ctx context.Context, args map[string]any) (string, error) {
	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return "", fmt.Errorf("%w: url", ErrMissingRequiredArg)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", "reflex-agent/0.3")

	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "html") {
		return string(body), nil
	}

	title, text, err := extractText(strings.NewReader(string(body)))
	if err != nil {
		return string(body), nil
	}
	if title != "" {
		return title + "\n\n" + text, nil
	}
	return text, nil
}

// extractText pulls the title and visible text out of an HTML document,
// skipping script and style subtrees.
func extractText(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		case html.TextNode:
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, strings.TrimSpace(sb.String()), nil
}

// RegisterBuiltins adds the built-in capability set to a registry.
func RegisterBuiltins(r *Registry) {
	for _, d := range BuiltinDescriptors() {
		r.MustRegister(d)
	}
}
