package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalTerms(t *testing.T) {
	terms := lexicalTerms("The quick_brown Fox jumps over a lazy dog!")
	assert.Equal(t, []string{"quick_brown", "fox", "jumps", "over", "lazy", "dog"}, terms)
}

func TestLexicalTermsDropsShortAndStopwords(t *testing.T) {
	assert.Empty(t, lexicalTerms("a i the of in"))
}

func TestLexicalScoresRanksMatchingDocumentHigher(t *testing.T) {
	docs := []string{
		"func openDatabase(path string) (*sql.DB, error)",
		"http handler registration and routing table",
		"database connection pooling with retry backoff",
	}
	scores := lexicalScores("database connection", docs)

	assert.Len(t, scores, 3)
	assert.Greater(t, scores[2], scores[1])
	assert.Greater(t, scores[2], scores[0])
}

func TestLexicalScoresAreNormalised(t *testing.T) {
	docs := []string{
		"cache eviction policy",
		"cache cache cache eviction eviction policy details",
	}
	scores := lexicalScores("cache eviction", docs)

	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
	assert.Contains(t, scores, 1.0)
}

func TestLexicalScoresEmptyQuery(t *testing.T) {
	scores := lexicalScores("", []string{"some content"})
	assert.Equal(t, []float64{0}, scores)
}

func TestLexicalScoresNoDocuments(t *testing.T) {
	assert.Empty(t, lexicalScores("query", nil))
}

func TestLexicalScoresNoOverlapIsZero(t *testing.T) {
	scores := lexicalScores("quantum entanglement", []string{"grocery shopping list"})
	assert.Equal(t, []float64{0}, scores)
}
