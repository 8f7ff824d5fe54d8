// Package memory implements the semantic memory store backing the
// agent's fast path. Queries are normalized into token sets and scored
// against past requests with Jaccard similarity; strong matches return
// the cached answer, weaker matches prime the generator with a worked
// example.
package memory

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are stripped during normalization. Deliberately small:
// aggressive stopword lists hurt short-query similarity more than they
// help.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "please": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// Tokenize normalizes a query into a sorted, de-duplicated token set:
// lowercase, punctuation stripped, stopwords removed. A query made of
// stopwords only yields an empty set, which never matches anything.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		seen[f] = struct{}{}
	}

	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// Jaccard returns |A ∩ B| / |A ∪ B| over two token sets.
// Empty sets never match: the result is 0 if either side is empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	intersection := 0
	for _, tok := range b {
		if _, dup := setB[tok]; dup {
			continue
		}
		setB[tok] = struct{}{}
		if _, ok := setA[tok]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
