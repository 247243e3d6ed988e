package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

func TestFuseRRFCombinesBothRankings(t *testing.T) {
	lexical := []ports.LexicalHit{{ID: "a", Score: 10}, {ID: "b", Score: 8}}
	vector := []ports.VectorHit{{ID: "b", Score: 0.9}, {ID: "c", Score: 0.8}}

	fused := fuseRRF(lexical, vector, 60)

	if len(fused) != 3 {
		t.Fatalf("expected 3 fused hits, got %d", len(fused))
	}
	// b is rank 1 in vector and rank 2 in lexical: highest combined score.
	if fused[0].ID != "b" {
		t.Fatalf("expected b to rank first, got %s", fused[0].ID)
	}
}

func TestFuseRRFMonotoneOnAddingRanking(t *testing.T) {
	lexical := []ports.LexicalHit{{ID: "a", Score: 10}}
	before := fuseRRF(lexical, nil, 60)[0].RRFScore

	vector := []ports.VectorHit{{ID: "a", Score: 0.5}}
	after := fuseRRF(lexical, vector, 60)[0].RRFScore

	if after < before {
		t.Fatalf("expected adding a ranking to not decrease fused score: before=%v after=%v", before, after)
	}
}

func TestFuseRRFDegeneratesToSingleRanking(t *testing.T) {
	lexical := []ports.LexicalHit{{ID: "a", Score: 10}, {ID: "b", Score: 5}}
	fused := fuseRRF(lexical, nil, 60)
	if len(fused) != 2 {
		t.Fatalf("expected degenerate ranking of size 2, got %d", len(fused))
	}
	if fused[0].ID != "a" {
		t.Fatalf("expected a to rank first by lexical order, got %s", fused[0].ID)
	}
}

func TestRunHybridSearchDegradesOnVectorFailure(t *testing.T) {
	lex := &fakeLexicalStore{searchFunc: func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
		return []ports.LexicalHit{{ID: "f1", Score: 5}}, nil
	}}
	vec := &fakeVectorStore{searchFunc: func(ctx context.Context, collection string, v []float32, filter domain.SearchFilter, limit int, threshold float64) ([]ports.VectorHit, error) {
		return nil, errors.New("vector store down")
	}}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}

	deps := HybridSearchDeps{Lexical: lex, Vector: vec, Embedder: embedder, EmbedCache: NewEmbeddingCache(10), Logger: discardLogger()}
	in := HybridSearchInput{
		LexicalIndex: "findings", LexicalSize: 10,
		VectorCollection: "findings_vectors", VectorQueryText: "query", VectorSize: 10, VectorScoreThreshold: 0.35,
		RRFK: 60, TopN: 10,
	}

	fused, warnings := RunHybridSearch(context.Background(), deps, in)
	if len(fused) != 1 || fused[0].ID != "f1" {
		t.Fatalf("expected degenerate lexical-only ranking, got %+v", fused)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a degraded-backend warning")
	}
}

func TestRunHybridSearchSkipsVectorWhenRequested(t *testing.T) {
	calledVector := false
	lex := &fakeLexicalStore{searchFunc: func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
		return []ports.LexicalHit{{ID: "f1", Score: 5}}, nil
	}}
	vec := &fakeVectorStore{searchFunc: func(ctx context.Context, collection string, v []float32, filter domain.SearchFilter, limit int, threshold float64) ([]ports.VectorHit, error) {
		calledVector = true
		return nil, nil
	}}
	deps := HybridSearchDeps{Lexical: lex, Vector: vec, Embedder: &fakeEmbedder{}, EmbedCache: NewEmbeddingCache(10), Logger: discardLogger()}
	in := HybridSearchInput{LexicalIndex: "findings", LexicalSize: 10, SkipVector: true, TopN: 10}

	_, _ = RunHybridSearch(context.Background(), deps, in)
	if calledVector {
		t.Fatalf("expected vector search to be skipped")
	}
}

func TestRunHybridSearchUsesEmbeddingCache(t *testing.T) {
	embedCalls := 0
	embedder := &fakeEmbedder{vec: []float32{1, 2, 3}}
	lex := &fakeLexicalStore{}
	vec := &fakeVectorStore{searchFunc: func(ctx context.Context, collection string, v []float32, filter domain.SearchFilter, limit int, threshold float64) ([]ports.VectorHit, error) {
		embedCalls++
		return nil, nil
	}}
	cache := NewEmbeddingCache(10)
	deps := HybridSearchDeps{Lexical: lex, Vector: vec, Embedder: embedder, EmbedCache: cache, Logger: discardLogger()}
	in := HybridSearchInput{LexicalIndex: "findings", LexicalSize: 10, VectorCollection: "findings_vectors", VectorQueryText: "same query", VectorSize: 10, TopN: 10}

	_, _ = RunHybridSearch(context.Background(), deps, in)
	_, _ = RunHybridSearch(context.Background(), deps, in)

	if _, ok := cache.Get(EmbeddingCacheKey("same query")); !ok {
		t.Fatalf("expected embedding to be cached after first call")
	}
	if embedCalls != 2 {
		t.Fatalf("expected vector search invoked twice regardless of cache, got %d", embedCalls)
	}
}
