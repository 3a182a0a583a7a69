// Package search defines the shapes shared by the lexical and dense sides of
// hybrid retrieval.
package search

import "context"

// Source labels which side of the hybrid fan-out produced a hit.
type Source string

const (
	SourceLexical Source = "lex"
	SourceDense   Source = "dense"
	SourceHybrid  Source = "hybrid"
)

// Hit is one scored unit from a single retrieval side. Scores are raw and
// side-relative; the retriever normalizes before fusing.
type Hit struct {
	UnitID string  `json:"unit_id"`
	Score  float64 `json:"score"`
	Source Source  `json:"source"`
}

// LexicalSearcher is the keyword side of the fan-out.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// DenseSearcher is the semantic side of the fan-out.
type DenseSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}
