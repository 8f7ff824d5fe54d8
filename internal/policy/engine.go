// Package policy wraps the Google Mangle Datalog engine behind a small
// fact-in, fact-out surface. Guardrail rules are expressed as Mangle
// clauses; callers load rules once, assert facts about a plan, and read
// back the derived violation facts.
package policy

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Fact is a single extensional fact. String args starting with "/" are
// treated as Mangle name constants, everything else as typed constants.
type Fact struct {
	Predicate string
	Args      []any
}

// Engine holds compiled rules plus a fact store. Evaluation is eager:
// every AddFacts call re-derives the intensional predicates, so reads
// via Derived always see a fixed point.
type Engine struct {
	mu             sync.Mutex
	store          factstore.FactStoreWithRemove
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
	fragments      []parse.SourceUnit
}

// NewEngine creates an engine with no rules loaded.
func NewEngine() *Engine {
	return &Engine{
		store:          factstore.NewSimpleInMemoryStore(),
		predicateIndex: make(map[string]ast.PredicateSym),
	}
}

// LoadRules parses and analyzes a Mangle source unit. May be called
// more than once; fragments accumulate.
func (e *Engine) LoadRules(src string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return fmt.Errorf("failed to parse rules: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.fragments = append(e.fragments, unit)
	if err := e.rebuildLocked(); err != nil {
		e.fragments = e.fragments[:len(e.fragments)-1]
		return fmt.Errorf("failed to analyze rules: %w", err)
	}
	return nil
}

func (e *Engine) rebuildLocked() error {
	var clauses []ast.Clause
	var decls []ast.Decl
	for _, frag := range e.fragments {
		clauses = append(clauses, frag.Clauses...)
		decls = append(decls, frag.Decls...)
	}

	info, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: clauses, Decls: decls}, nil)
	if err != nil {
		return err
	}

	e.programInfo = info
	e.predicateIndex = make(map[string]ast.PredicateSym, len(info.Decls))
	for sym := range info.Decls {
		e.predicateIndex[sym.Symbol] = sym
	}
	return nil
}

// AddFacts asserts extensional facts and re-evaluates all rules.
func (e *Engine) AddFacts(facts ...Fact) error {
	if len(facts) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.programInfo == nil {
		return fmt.Errorf("no rules loaded")
	}

	for _, f := range facts {
		atom, err := e.factToAtomLocked(f)
		if err != nil {
			return err
		}
		e.store.Add(atom)
	}

	_, err := mengine.EvalProgramWithStats(e.programInfo, e.store)
	return err
}

func (e *Engine) factToAtomLocked(f Fact) (ast.Atom, error) {
	sym, ok := e.predicateIndex[f.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared", f.Predicate)
	}
	if len(f.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", f.Predicate, sym.Arity, len(f.Args))
	}

	args := make([]ast.BaseTerm, len(f.Args))
	for i, raw := range f.Args {
		term, err := toBaseTerm(raw)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", f.Predicate, i, err)
		}
		args[i] = term
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

func toBaseTerm(value any) (ast.BaseTerm, error) {
	switch v := value.(type) {
	case ast.BaseTerm:
		return v, nil
	case string:
		if strings.HasPrefix(v, "/") {
			return ast.Name(v)
		}
		return ast.String(v), nil
	case int:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case float64:
		return ast.Float64(v), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return nil, fmt.Errorf("unsupported fact argument type %T", v)
	}
}

// Derived scans the materialized store for all facts of a predicate.
// Because AddFacts evaluates eagerly, this includes derived facts.
func (e *Engine) Derived(predicate string) ([]Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var out []Fact
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		args := make([]any, len(atom.Args))
		for i, arg := range atom.Args {
			args[i] = fromBaseTerm(arg)
		}
		out = append(out, Fact{Predicate: predicate, Args: args})
		return nil
	})
	return out, err
}

func fromBaseTerm(term ast.BaseTerm) any {
	c, ok := term.(ast.Constant)
	if !ok {
		return term.String()
	}
	switch c.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	default:
		return c.String()
	}
}

// Clear drops all facts, keeping compiled rules.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = factstore.NewSimpleInMemoryStore()
}
