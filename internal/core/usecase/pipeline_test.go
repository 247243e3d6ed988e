package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/core/usecase/contextpack"
)

func buildTestPipeline(t *testing.T, gen *fakeGenerator, lex *fakeLexicalStore, vec *fakeVectorStore) *QueryPipeline {
	t.Helper()
	vocab := testVocab()
	embedDeps := HybridSearchDeps{
		Lexical:    lex,
		Vector:     vec,
		Embedder:   &fakeEmbedder{vec: []float32{0.1, 0.2}},
		EmbedCache: NewEmbeddingCache(10),
		Logger:     discardLogger(),
	}

	normalizer := NewNormalizer(vocab, discardLogger())
	parser := NewParser(vocab, gen, discardLogger())
	expander := NewExpander(gen, discardLogger(), nil, false)
	router := NewRouter(0.4)
	findingRetriever := NewFindingRetriever(embedDeps, FindingRetrieverConfig{TopKLex: 150, TopKVec: 150, RRFK: 60, FinalTopN: 30, ScoreThreshold: 0.35, ScoreThresholdMulti: 0.65})
	chunkRetriever := NewChunkRetriever(embedDeps, ChunkRetrieverConfig{TopKLex: 300, TopKVec: 300, RRFK: 60})
	blockPromoter := NewBlockPromoter(BlockPromoterConfig{TopKChunks: 3, IntersectionMin: 2, FinalTopN: 3, MaxBlocksPerDoc: 2, SectionWeightFindings: 0.5, SectionWeightTechnique: 0.5}, discardLogger())
	packer := contextpack.NewPacker(contextpack.WhitespaceTokenEstimator{}, 4000, true)
	composer := NewComposer(gen, discardLogger())
	validator := NewValidator()
	freqCache := NewKeywordFreqCache(10)

	return NewQueryPipeline(vocab, normalizer, parser, expander, router, findingRetriever, chunkRetriever, blockPromoter, packer, composer, validator, freqCache, PipelineConfig{QueryDeadline: 5 * time.Second}, discardLogger())
}

func TestPipelineClarifiesOnLowConfidenceParse(t *testing.T) {
	gen := &fakeGenerator{jsonErr: errTest("llm down"), textResp: "ignored"}
	p := buildTestPipeline(t, gen, &fakeLexicalStore{}, &fakeVectorStore{})

	answer, err := p.RunQuery(context.Background(), "무엇")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// fallback confidence is low so we expect the router's Korean clarify message
	if !strings.Contains(answer, "다시 질문해 주세요") {
		t.Fatalf("expected the clarify message, got %q", answer)
	}
	if answer == "" {
		t.Fatalf("expected a non-empty clarify answer")
	}
}

func TestPipelineExplainRouteSkipsRetrieval(t *testing.T) {
	gen := &fakeGenerator{
		jsonResp: `{"industry_sub":[],"domain_tags":["가공거래"],"code":[],"entities":[],"section_hints":{},"free_text":"가공거래 의미"}`,
		textResp: "가공거래란 실물 거래 없이 세금계산서만 발행하는 행위를 말합니다.",
	}
	lex := &fakeLexicalStore{searchFunc: func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
		t.Fatalf("did not expect lexical search on explain route")
		return nil, nil
	}}
	p := buildTestPipeline(t, gen, lex, &fakeVectorStore{})

	answer, err := p.RunQuery(context.Background(), "가공거래의 의미가 무엇인가요")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "General explanation") {
		t.Fatalf("expected general-explanation header, got %q", answer)
	}
	if !strings.Contains(answer, "가공거래란") {
		t.Fatalf("expected explanation body, got %q", answer)
	}
}

func TestPipelineSearchRouteReturnsNoMatchingCasesWhenRetrievalEmpty(t *testing.T) {
	gen := &fakeGenerator{
		jsonResp: `{"industry_sub":["제조업"],"domain_tags":["가공거래"],"code":["12345"],"entities":[],"section_hints":{},"free_text":"매출누락 사례",` +
			`"must_have":["제조업","매출누락"],"should_have":[],"related_terms":[],"boost_weights":{}}`,
	}
	lex := &fakeLexicalStore{
		searchFunc: func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
			return nil, nil
		},
	}
	vec := &fakeVectorStore{searchFunc: func(ctx context.Context, collection string, vector []float32, filter domain.SearchFilter, limit int, scoreThreshold float64) ([]ports.VectorHit, error) {
		return nil, nil
	}}
	p := buildTestPipeline(t, gen, lex, vec)

	answer, err := p.RunQuery(context.Background(), "제조업 매출누락 가공거래 사례 알려줘")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "No matching cases") {
		t.Fatalf("expected no-matching-cases message, got %q", answer)
	}
}

type errTestType string

func (e errTestType) Error() string { return string(e) }

func errTest(msg string) error { return errTestType(msg) }
