package domain

// RetrievalCandidate is one (content, score, metadata) triple returned by
// the vector index and carried through the ranking pipeline.
type RetrievalCandidate struct {
	// Content is the chunk text.
	Content string `json:"pageContent"`

	// Metadata describes the candidate's origin.
	Metadata CandidateMetadata `json:"metadata"`
}

// CandidateMetadata identifies where a candidate came from.
type CandidateMetadata struct {
	// Source is the path of the originating file.
	Source string `json:"source"`

	// Hash is the content hash of the chunk.
	Hash string `json:"hash"`

	// GroupHash is the content hash of the whole originating file.
	GroupHash string `json:"md5,omitempty"`

	// LineFrom is the first line of the chunk within its file.
	LineFrom int `json:"lineFrom,omitempty"`

	// Summary marks candidates that went through source grouping.
	Summary bool `json:"summary,omitempty"`
}

// Key returns the dedup identity of a candidate across merged result
// sets: each distinct (hash, summary flag) pair survives at most once.
func (m CandidateMetadata) Key() string {
	if m.Summary {
		return m.Hash + "/true"
	}
	return m.Hash + "/false"
}

// ScoredCandidate pairs a candidate with its pipeline score.
type ScoredCandidate struct {
	Candidate RetrievalCandidate
	Score     float64
}

// QueryOptions configures one retrieval query.
type QueryOptions struct {
	// K is the maximum number of results to return.
	K int

	// MinScore is the minimum rerank relevance score to keep a candidate.
	MinScore float64

	// IgnoreHashes lists content hashes excluded from the result set.
	IgnoreHashes []string
}

// QueryResult is the ranked output of the retrieval pipeline plus the
// token count of all kept candidates, for caller-side context budgeting.
type QueryResult struct {
	Data   []ScoredCandidate
	Tokens int
}

// RankWeights tunes the blend applied by the retrieval ranker. The exact
// weighting is policy, not contract; defaults follow the stable revision.
type RankWeights struct {
	// Similarity weights the normalised vector score.
	Similarity float64

	// Lexical weights the BM25 rescore.
	Lexical float64
}

// DefaultRankWeights returns the standard blend.
func DefaultRankWeights() RankWeights {
	return RankWeights{Similarity: 0.7, Lexical: 0.3}
}
