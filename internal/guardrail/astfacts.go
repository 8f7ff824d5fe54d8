package guardrail

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// entryFuncName is the required entry point of every plan.
const entryFuncName = "RunPlan"

// planFacts is everything the rules need to know about a plan, pulled
// out of its AST in a single pass.
type planFacts struct {
	imports    []string
	calls      []string // tool names from call("name", ...) in source order
	callCount  int      // all dispatcher invocations, named or not
	urls       []string
	structural []string // structural problems, empty when the plan is well formed
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'` + "`" + `\)]+`)

// extractFacts parses the plan and walks its AST. A plan that fails to
// parse still yields URL facts from the raw text so the whitelist rule
// can report on it.
func extractFacts(code string) *planFacts {
	f := &planFacts{}
	f.urls = urlPattern.FindAllString(code, -1)

	src := code
	if !strings.Contains(src, "package ") {
		src = "package main\n\n" + src
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "plan.go", src, 0)
	if err != nil {
		f.structural = append(f.structural, fmt.Sprintf("plan does not parse: %v", err))
		return f
	}

	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		f.imports = append(f.imports, path)
	}

	entry := findEntryFunc(file)
	if entry == nil {
		f.structural = append(f.structural,
			fmt.Sprintf("plan must define exactly one func %s", entryFuncName))
		return f
	}

	dispatcher, ok := entrySignatureOK(entry)
	if !ok {
		f.structural = append(f.structural, fmt.Sprintf(
			"func %s must take one dispatcher argument and return (string, error)", entryFuncName))
		return f
	}

	ast.Inspect(entry.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		ident, ok := call.Fun.(*ast.Ident)
		if !ok || ident.Name != dispatcher {
			return true
		}
		f.callCount++
		if len(call.Args) > 0 {
			if lit, ok := call.Args[0].(*ast.BasicLit); ok && lit.Kind == token.STRING {
				if name, err := strconv.Unquote(lit.Value); err == nil {
					f.calls = append(f.calls, name)
				}
			}
		}
		return true
	})

	return f
}

// findEntryFunc returns the single RunPlan declaration, or nil when the
// plan declares zero or several.
func findEntryFunc(file *ast.File) *ast.FuncDecl {
	var found *ast.FuncDecl
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != entryFuncName || fn.Recv != nil {
			continue
		}
		if found != nil {
			return nil
		}
		found = fn
	}
	return found
}

// entrySignatureOK checks the entry shape and returns the dispatcher
// parameter name so call sites can be counted.
func entrySignatureOK(fn *ast.FuncDecl) (dispatcher string, ok bool) {
	params := fn.Type.Params
	if params == nil || len(params.List) != 1 || len(params.List[0].Names) != 1 {
		return "", false
	}
	if _, isFunc := params.List[0].Type.(*ast.FuncType); !isFunc {
		return "", false
	}

	results := fn.Type.Results
	if results == nil || len(results.List) != 2 {
		return "", false
	}
	if ident, isIdent := results.List[0].Type.(*ast.Ident); !isIdent || ident.Name != "string" {
		return "", false
	}
	if ident, isIdent := results.List[1].Type.(*ast.Ident); !isIdent || ident.Name != "error" {
		return "", false
	}

	return params.List[0].Names[0].Name, fn.Body != nil
}

// hostOf extracts the hostname from a raw URL, dropping any port.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
