package services

import (
	"math"
	"regexp"
	"strings"
)

// BM25 tuning parameters. Standard Lucene-style defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// termRe matches alphanumeric words, including identifiers.
var termRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// stopwords are common words with no discriminative power, filtered
// during term extraction.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {},
	"of": {}, "in": {}, "for": {}, "with": {}, "on": {}, "at": {},
	"by": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "it": {}, "its": {}, "this": {},
	"that": {}, "these": {}, "those": {},
}

// lexicalTerms lowercases, tokenizes, and drops stopwords and single
// characters.
func lexicalTerms(text string) []string {
	raw := termRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, term := range raw {
		if len(term) < 2 {
			continue
		}
		if _, stop := stopwords[term]; stop {
			continue
		}
		out = append(out, term)
	}
	return out
}

// idf computes inverse document frequency: rare terms score higher.
func idf(numDocs, docFreq float64) float64 {
	return math.Log(1.0 + (numDocs-docFreq+0.5)/(docFreq+0.5))
}

// tfComponent computes the BM25 term-frequency factor with saturation
// and length normalisation.
func tfComponent(termCount, docLen, avgLen float64) float64 {
	denominator := termCount + bm25K1*(1.0-bm25B+bm25B*(docLen/avgLen))
	if denominator == 0 {
		return 0
	}
	return (termCount * (bm25K1 + 1.0)) / denominator
}

// lexicalScores rescores every document of the pool against the query
// with BM25. Scores are scaled by the pool's maximum so the result is
// in [0, 1] and comparable to the normalised similarity score.
func lexicalScores(query string, documents []string) []float64 {
	scores := make([]float64, len(documents))
	queryTerms := lexicalTerms(query)
	if len(queryTerms) == 0 || len(documents) == 0 {
		return scores
	}

	queryCounts := make(map[string]int, len(queryTerms))
	for _, t := range queryTerms {
		queryCounts[t]++
	}

	docTerms := make([][]string, len(documents))
	docFreq := make(map[string]int)
	avgLen := 0.0
	for i, doc := range documents {
		docTerms[i] = lexicalTerms(doc)
		avgLen += float64(len(docTerms[i]))

		seen := make(map[string]struct{}, len(docTerms[i]))
		for _, t := range docTerms[i] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				docFreq[t]++
			}
		}
	}
	avgLen /= float64(len(documents))
	if avgLen == 0 {
		return scores
	}

	maxScore := 0.0
	for i := range documents {
		tf := make(map[string]int, len(docTerms[i]))
		for _, t := range docTerms[i] {
			tf[t]++
		}
		docLen := float64(len(docTerms[i]))

		score := 0.0
		for term, queryFreq := range queryCounts {
			df := float64(docFreq[term])
			if df == 0 {
				continue
			}
			score += idf(float64(len(documents)), df) *
				tfComponent(float64(tf[term]), docLen, avgLen) *
				float64(queryFreq)
		}
		scores[i] = score
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores
}
