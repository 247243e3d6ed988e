package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

func TestChunkRetrieverGroupsBySectionAndDropsMissingText(t *testing.T) {
	lex := &fakeLexicalStore{
		searchFunc: func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
			switch query.Filter.Section {
			case domain.SectionInvestigationFindings:
				return []ports.LexicalHit{{ID: "c1", Score: 3, Source: map[string]any{"text": "조사 결과 내용", "finding_id": "f1", "doc_id": "d1"}}}, nil
			case domain.SectionInvestigationTechnique:
				return []ports.LexicalHit{
					{ID: "c2", Score: 4, Source: map[string]any{"text": "조사 기법 내용", "finding_id": "f1", "doc_id": "d1"}},
					{ID: "c3", Score: 1, Source: map[string]any{"finding_id": "f1", "doc_id": "d1"}},
				}, nil
			}
			return nil, nil
		},
		getFunc: func(ctx context.Context, index, id string) (map[string]any, error) {
			if id == "c3" {
				return nil, nil
			}
			return nil, nil
		},
	}
	deps := HybridSearchDeps{Lexical: lex, Vector: &fakeVectorStore{}, Embedder: &fakeEmbedder{}, EmbedCache: NewEmbeddingCache(10), Logger: discardLogger()}
	cr := NewChunkRetriever(deps, ChunkRetrieverConfig{TopKLex: 300, TopKVec: 300, RRFK: 60})

	groups, _ := cr.Retrieve(context.Background(), "조사 내용", domain.NewSlots(), testVocab(), []string{"f1"}, []string{"d1"})

	findings := groups[domain.SectionInvestigationFindings]
	if len(findings) != 1 || findings[0].ChunkID != "c1" {
		t.Fatalf("expected one chunk in investigation-findings, got %+v", findings)
	}
	technique := groups[domain.SectionInvestigationTechnique]
	if len(technique) != 1 || technique[0].ChunkID != "c2" {
		t.Fatalf("expected c3 dropped for missing text, got %+v", technique)
	}
}

func TestChunkRetrieverFetchesTextOnDemand(t *testing.T) {
	lex := &fakeLexicalStore{
		searchFunc: func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
			if query.Filter.Section == domain.SectionInvestigationFindings {
				return []ports.LexicalHit{{ID: "c1", Score: 3, Source: map[string]any{"finding_id": "f1", "doc_id": "d1"}}}, nil
			}
			return nil, nil
		},
		getFunc: func(ctx context.Context, index, id string) (map[string]any, error) {
			return map[string]any{"text": "fetched text", "finding_id": "f1", "doc_id": "d1"}, nil
		},
	}
	deps := HybridSearchDeps{Lexical: lex, Vector: &fakeVectorStore{}, Embedder: &fakeEmbedder{}, EmbedCache: NewEmbeddingCache(10), Logger: discardLogger()}
	cr := NewChunkRetriever(deps, ChunkRetrieverConfig{TopKLex: 300, TopKVec: 300, RRFK: 60})

	groups, _ := cr.Retrieve(context.Background(), "조사 내용", domain.NewSlots(), testVocab(), []string{"f1"}, []string{"d1"})

	findings := groups[domain.SectionInvestigationFindings]
	if len(findings) != 1 || findings[0].Text != "fetched text" {
		t.Fatalf("expected on-demand fetched text, got %+v", findings)
	}
}

func TestRequiredSectionsDefaultsToPrimary(t *testing.T) {
	sections := requiredSections(domain.NewSlots())
	if len(sections) != 2 {
		t.Fatalf("expected 2 primary sections, got %d", len(sections))
	}
}

func TestRequiredSectionsUsesHints(t *testing.T) {
	slots := domain.NewSlots()
	slots.SectionHints[domain.SectionTaxationLogic] = []string{"hint"}
	sections := requiredSections(slots)
	if len(sections) != 1 || sections[0] != domain.SectionTaxationLogic {
		t.Fatalf("expected section hints to override default, got %+v", sections)
	}
}
