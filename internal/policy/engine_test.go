package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
Decl plan_call(Tool) bound [/string].
Decl known_tool(Tool) bound [/string].

violation(/hallucinated_tool, Tool) :- plan_call(Tool), !known_tool(Tool).
`

func TestDeriveViolation(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.LoadRules(testRules))

	require.NoError(t, e.AddFacts(
		Fact{Predicate: "known_tool", Args: []any{"stock_quote"}},
		Fact{Predicate: "plan_call", Args: []any{"stock_quote"}},
		Fact{Predicate: "plan_call", Args: []any{"teleport"}},
	))

	got, err := e.Derived("violation")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/hallucinated_tool", got[0].Args[0])
	assert.Equal(t, "teleport", got[0].Args[1])
}

func TestNoViolationWhenAllToolsKnown(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.LoadRules(testRules))

	require.NoError(t, e.AddFacts(
		Fact{Predicate: "known_tool", Args: []any{"stock_quote"}},
		Fact{Predicate: "plan_call", Args: []any{"stock_quote"}},
	))

	got, err := e.Derived("violation")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddFactsUndeclaredPredicate(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.LoadRules(testRules))

	err := e.AddFacts(Fact{Predicate: "nonsense", Args: []any{"x"}})
	assert.Error(t, err)
}

func TestAddFactsArityMismatch(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.LoadRules(testRules))

	err := e.AddFacts(Fact{Predicate: "plan_call", Args: []any{"a", "b"}})
	assert.Error(t, err)
}

func TestClearKeepsRules(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.LoadRules(testRules))

	require.NoError(t, e.AddFacts(Fact{Predicate: "plan_call", Args: []any{"teleport"}}))
	e.Clear()

	got, err := e.Derived("violation")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Rules survive and keep deriving over fresh facts.
	require.NoError(t, e.AddFacts(Fact{Predicate: "plan_call", Args: []any{"teleport"}}))
	got, err = e.Derived("violation")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAddFactsBeforeRules(t *testing.T) {
	e := NewEngine()
	err := e.AddFacts(Fact{Predicate: "plan_call", Args: []any{"x"}})
	assert.Error(t, err)
}
