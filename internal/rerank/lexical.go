package rerank

import (
	"sort"
	"strings"
)

// Lexical reorders candidates by how many query terms they contain.
//
// A term is a whitespace-separated token of the lowercased query; it counts once per occurrence
// in the query if it appears anywhere inside the lowercased candidate (substring match, no
// stemming). Candidates with equal scores keep their input order.
type Lexical struct{}

// NewLexical returns a lexical-overlap reranker.
func NewLexical() Lexical { return Lexical{} }

// Rerank returns a new slice; candidates is not modified.
func (Lexical) Rerank(query string, candidates []string) []string {
	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		text  string
		score int
	}
	items := make([]scored, len(candidates))
	for i, c := range candidates {
		items[i] = scored{text: c, score: Score(terms, c)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.text
	}
	return out
}

// Score counts the terms that occur in candidate. terms must already be lowercased.
func Score(terms []string, candidate string) int {
	lower := strings.ToLower(candidate)
	score := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			score++
		}
	}
	return score
}
