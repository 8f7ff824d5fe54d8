package memory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "lowercases and strips punctuation",
			query: "What's the Price of TSLA?",
			want:  []string{"price", "s", "tsla"},
		},
		{
			name:  "deduplicates",
			query: "go go go gadget",
			want:  []string{"gadget", "go"},
		},
		{
			name:  "stopwords only",
			query: "what is the and of",
			want:  []string{},
		},
		{
			name:  "empty input",
			query: "",
			want:  []string{},
		},
		{
			name:  "numbers survive",
			query: "top 10 stocks in 2026",
			want:  []string{"10", "2026", "stocks", "top"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.query)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	a := Tokenize("what is the stock price of TSLA")
	b := Tokenize("what is the stock price of TSLA")
	if got := Jaccard(a, b); got != 1.0 {
		t.Errorf("identical queries: got %v, want 1.0", got)
	}

	c := Tokenize("current TSLA stock price")
	if got := Jaccard(a, c); got < 0.5 {
		t.Errorf("rephrased query: got %v, want >= 0.5", got)
	}

	d := Tokenize("bake a chocolate cake")
	if got := Jaccard(a, d); got != 0 {
		t.Errorf("unrelated query: got %v, want 0", got)
	}
}

func TestJaccardEmptySets(t *testing.T) {
	if got := Jaccard(nil, nil); got != 0 {
		t.Errorf("both empty: got %v, want 0", got)
	}
	if got := Jaccard([]string{"x"}, nil); got != 0 {
		t.Errorf("one empty: got %v, want 0", got)
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := Tokenize("weather forecast berlin tomorrow")
	b := Tokenize("berlin weather today")
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Error("Jaccard is not symmetric")
	}
}

func TestJaccardDuplicateTokensInInput(t *testing.T) {
	// Duplicates in either slice must not inflate the score.
	a := []string{"x", "x", "y"}
	b := []string{"x"}
	if got, want := Jaccard(a, b), 0.5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
