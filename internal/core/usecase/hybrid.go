package usecase

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/metrics"
)

// defaultRRFK is Reciprocal Rank Fusion's smoothing constant (§4.5).
const defaultRRFK = 60

// FusedHit is one item surviving Reciprocal Rank Fusion, carrying both
// source payloads so the caller (finding/chunk retriever) can assemble its
// own typed hit.
type FusedHit struct {
	ID            string
	RRFScore      float64
	LexicalScore  float64
	VectorScore   float64
	InLexical     bool
	InVector      bool
	LexicalSource map[string]any
	VectorPayload map[string]any
}

// HybridSearchInput parameterizes one invocation of the §4.5 primitive.
type HybridSearchInput struct {
	LexicalIndex string
	LexicalQuery ports.BoolQuery
	LexicalSize  int

	SkipVector           bool
	VectorCollection     string
	VectorQueryText      string
	VectorFilter         domain.SearchFilter
	VectorSize           int
	VectorScoreThreshold float64

	RRFK int
	TopN int
}

// HybridSearchDeps are the shared outbound dependencies a hybrid search
// needs; callers construct one per query and reuse it across stages.
type HybridSearchDeps struct {
	Lexical    ports.LexicalStore
	Vector     ports.VectorStore
	Embedder   ports.Embedder
	EmbedCache *EmbeddingCache
	Logger     *slog.Logger

	// Metrics and Service are optional; when Metrics is nil no instrumentation
	// is recorded.
	Metrics *metrics.HTTPServerMetrics
	Service string
}

// RunHybridSearch issues the lexical and (optionally) vector sub-searches
// concurrently, fuses them by RRF, and returns the top TopN hits plus any
// degraded-backend warnings. Per §4.5/§7, a sub-search failure degrades to
// an empty ranking rather than failing the whole call.
func RunHybridSearch(ctx context.Context, deps HybridSearchDeps, in HybridSearchInput) ([]FusedHit, []string) {
	var lexicalHits []ports.LexicalHit
	var vectorHits []ports.VectorHit
	// Each goroutine owns its own warning slot; a shared slice mutated from
	// both g.Go closures would race on append.
	warningSlots := make([]string, 2)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := deps.Lexical.Search(gctx, in.LexicalIndex, in.LexicalQuery, in.LexicalSize)
		if err != nil {
			deps.Logger.Warn("lexical_search_degraded", "index", in.LexicalIndex, "error", err)
			warningSlots[0] = "lexical store unavailable"
			return nil
		}
		lexicalHits = hits
		return nil
	})

	if !in.SkipVector {
		g.Go(func() error {
			vector, err := resolveEmbedding(gctx, deps, in.VectorQueryText)
			if err != nil {
				deps.Logger.Warn("embedding_failed", "error", err)
				warningSlots[1] = "vector store unavailable"
				return nil
			}
			hits, err := deps.Vector.Search(gctx, in.VectorCollection, vector, in.VectorFilter, in.VectorSize, in.VectorScoreThreshold)
			if err != nil {
				deps.Logger.Warn("vector_search_degraded", "collection", in.VectorCollection, "error", err)
				warningSlots[1] = "vector store unavailable"
				return nil
			}
			vectorHits = hits
			return nil
		})
	}

	_ = g.Wait()

	var warnings []string
	for _, w := range warningSlots {
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	rrfK := in.RRFK
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	if deps.Metrics != nil {
		deps.Metrics.RecordRRFCandidates(deps.Service, "lexical", len(lexicalHits))
		deps.Metrics.RecordRRFCandidates(deps.Service, "vector", len(vectorHits))
	}

	fused := fuseRRF(lexicalHits, vectorHits, rrfK)
	if len(fused) > in.TopN && in.TopN > 0 {
		fused = fused[:in.TopN]
	}
	return fused, warnings
}

func resolveEmbedding(ctx context.Context, deps HybridSearchDeps, queryText string) ([]float32, error) {
	key := EmbeddingCacheKey(queryText)
	if deps.EmbedCache != nil {
		if cached, ok := deps.EmbedCache.Get(key); ok {
			if deps.Metrics != nil {
				deps.Metrics.RecordCacheHit(deps.Service, "embedding")
			}
			return cached, nil
		}
		if deps.Metrics != nil {
			deps.Metrics.RecordCacheMiss(deps.Service, "embedding")
		}
	}
	vec, err := deps.Embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}
	if deps.EmbedCache != nil {
		deps.EmbedCache.Put(key, vec)
	}
	return vec, nil
}

// fuseRRF implements §4.5 steps 3-5: rank-based fusion, descending sort,
// tie-break by higher original score then by id.
func fuseRRF(lexicalHits []ports.LexicalHit, vectorHits []ports.VectorHit, rrfK int) []FusedHit {
	byID := make(map[string]*FusedHit)

	order := func(id string) *FusedHit {
		if h, ok := byID[id]; ok {
			return h
		}
		h := &FusedHit{ID: id}
		byID[id] = h
		return h
	}

	for i, lh := range lexicalHits {
		h := order(lh.ID)
		h.InLexical = true
		h.LexicalScore = lh.Score
		h.LexicalSource = lh.Source
		h.RRFScore += 1.0 / float64(rrfK+i+1)
	}
	for i, vh := range vectorHits {
		h := order(vh.ID)
		h.InVector = true
		h.VectorScore = vh.Score
		h.VectorPayload = vh.Payload
		h.RRFScore += 1.0 / float64(rrfK+i+1)
	}

	out := make([]FusedHit, 0, len(byID))
	for _, h := range byID {
		out = append(out, *h)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		if bestScore(out[i]) != bestScore(out[j]) {
			return bestScore(out[i]) > bestScore(out[j])
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func bestScore(h FusedHit) float64 {
	if h.LexicalScore > h.VectorScore {
		return h.LexicalScore
	}
	return h.VectorScore
}
