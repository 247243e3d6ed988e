package ports

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// BoolQuery is a minimal structural description of a lexical boolean query,
// translated by the adapter into whatever the backend's native query DSL is.
type BoolQuery struct {
	// Must holds clauses every hit has to satisfy (AND).
	Must []QueryClause
	// Should holds clauses that boost relevance without being required (OR,
	// contributes to score when present).
	Should []QueryClause
	// Filter holds non-scoring structural constraints (doc_id, finding_id,
	// section, code, industry_sub, domain_tags set membership).
	Filter domain.SearchFilter
}

// QueryClause is one weighted multi-field match clause, e.g. a single
// must_have or should_have keyword scored over a set of fields.
type QueryClause struct {
	Text   string
	Fields []WeightedField
}

// WeightedField names a searchable field and its relative boost.
type WeightedField struct {
	Name  string
	Boost float64
}

// LexicalHit is one result from a lexical (BM25-like) search, identified
// generically by _id so the same hit shape serves both the findings and
// chunks indices.
type LexicalHit struct {
	ID    string
	Score float64
	// Source carries the subset of stored fields the caller asked for,
	// keyed by field name.
	Source map[string]any
}

// LexicalStore is the outbound contract for the lexical (BM25) backend.
// Two logical indices are addressed by name: "findings" and "chunks".
type LexicalStore interface {
	// Search executes a bool query against index, returning up to size hits.
	Search(ctx context.Context, index string, query BoolQuery, size int) ([]LexicalHit, error)
	// AggregateKeywordFrequency runs a single grouped query counting, for
	// each keyword, how many of the given docIDs contain it. Returns a map
	// keyed by keyword.
	AggregateKeywordFrequency(ctx context.Context, index string, docIDs []string, keywords []string) (map[string]int, error)
	// GetByID fetches a single document by id, used when a chunk's vector
	// payload lacks body text.
	GetByID(ctx context.Context, index string, id string) (map[string]any, error)
}

// VectorHit is one result from a dense vector search.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore is the outbound contract for the dense vector backend. Two
// logical collections are addressed by name: "findings_vectors" and
// "chunks_vectors".
type VectorStore interface {
	Search(ctx context.Context, collection string, queryVector []float32, filter domain.SearchFilter, limit int, scoreThreshold float64) ([]VectorHit, error)
}

// Generator issues text-completion and JSON-completion calls to the LLM.
type Generator interface {
	// Generate runs a free-text completion at the given temperature.
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
	// GenerateJSON runs a completion constrained to JSON output.
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Embedder produces dense vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CacheInvalidator broadcasts and receives cache-flush notifications across
// replicas of the query service, so an operator rebuilding the lexical or
// vector indices out-of-band can force every running instance to drop its
// embedding and keyword-frequency caches.
type CacheInvalidator interface {
	PublishFlush(ctx context.Context) error
	SubscribeFlush(ctx context.Context, handler func()) error
}
