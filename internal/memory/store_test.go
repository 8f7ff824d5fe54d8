package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memory.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupEmptyStore(t *testing.T) {
	s := newTestStore(t)
	assert.Nil(t, s.Lookup("what is the stock price of TSLA"))
}

func TestAppendAndLookupExact(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Append("what is the stock price of TSLA",
		`call("stock_quote", map[string]any{"symbol": "TSLA"})`,
		"TSLA is trading at $212.10")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	m := s.Lookup("what is the stock price of TSLA")
	require.NotNil(t, m)
	assert.Equal(t, 1.0, m.Similarity)
	assert.Equal(t, rec.ID, m.Record.ID)
}

func TestLookupRephrased(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append("what is the stock price of TSLA", "plan", "answer")
	require.NoError(t, err)

	m := s.Lookup("current TSLA stock price")
	require.NotNil(t, m)
	assert.GreaterOrEqual(t, m.Similarity, 0.5,
		"rephrased query should land in the few-shot band")
	assert.Less(t, m.Similarity, 0.85,
		"rephrased query should not hit the fast path")
}

func TestLookupTieBreaksToMostRecent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append("weather in berlin", "plan-old", "cold")
	require.NoError(t, err)
	newer, err := s.Append("berlin weather", "plan-new", "still cold")
	require.NoError(t, err)

	// Both records have identical token sets, so similarity ties.
	m := s.Lookup("weather berlin")
	require.NotNil(t, m)
	assert.Equal(t, newer.ID, m.Record.ID)
}

func TestAppendRejectsEmptyTokenSet(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append("what is the", "plan", "answer")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, 0, s.Count())
}

func TestLookupStopwordOnlyQuery(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append("weather in berlin", "plan", "cold")
	require.NoError(t, err)

	assert.Nil(t, s.Lookup("what is the"))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	rec, err := s.Append("convert 100 usd to eur", "plan", "92 EUR")
	require.NoError(t, err)
	require.NoError(t, s.IncrementSuccess(rec.ID))
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, 1, s2.Count())
	m := s2.Lookup("convert 100 usd to eur")
	require.NotNil(t, m)
	assert.Equal(t, 1.0, m.Similarity)
	assert.Equal(t, "plan", m.Record.PlanCode)
	assert.Equal(t, 1, m.Record.SuccessCount)
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append("weather in berlin", "plan", "cold")
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Count())
	assert.Nil(t, s.Lookup("weather in berlin"))
}

func TestInMemoryOnlyStore(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append("weather in berlin", "plan", "cold")
	require.NoError(t, err)
	assert.NotNil(t, s.Lookup("berlin weather"))
}

func TestRunAuditRoundTrip(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(RunAudit{
		RawQuery:   "what is the stock price of TSLA",
		Status:     "synthesized",
		ToolCalls:  1,
		DurationMs: 840,
		CreatedAt:  base,
	}))
	require.NoError(t, s.RecordRun(RunAudit{
		RawQuery:  "delete everything",
		Status:    "failed",
		Detail:    "plan rejected by guardrail",
		CreatedAt: base.Add(time.Second),
	}))

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "synthesized", runs[1].Status)
}
