package contextpack

import (
	"strings"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

func ptr(n int) *int { return &n }

func sampleBlock() domain.RankedBlock {
	return domain.RankedBlock{
		FindingID: "f1",
		DocID:     "d1",
		Item:      "매출누락",
		Code:      "12345",
		Score:     0.9,
		ChunksBySection: map[domain.Section][]domain.ChunkHit{
			domain.SectionInvestigationTechnique: {
				{Chunk: domain.Chunk{ChunkID: "c1", FindingID: "f1", DocID: "d1", SectionOrder: 1, ChunkOrder: 1, Page: ptr(3), StartLine: ptr(10), EndLine: ptr(20), Text: "조사 기법 본문"}, ScoreCombined: 0.8},
			},
			domain.SectionInvestigationFindings: {
				{Chunk: domain.Chunk{ChunkID: "c2", FindingID: "f1", DocID: "d1", SectionOrder: 1, ChunkOrder: 1, Page: ptr(5), StartLine: ptr(1), EndLine: ptr(5), Text: "조사 결과 본문"}, ScoreCombined: 0.7},
			},
		},
		SourceSections: map[domain.Section]struct{}{
			domain.SectionInvestigationTechnique: {},
			domain.SectionInvestigationFindings:  {},
		},
	}
}

func TestWhitespaceTokenEstimator(t *testing.T) {
	e := WhitespaceTokenEstimator{}
	if got := e.Estimate("one two three four"); got != 5 {
		t.Fatalf("expected floor(4*1.3)=5, got %d", got)
	}
}

func TestPackerRendersSectionsInPresentationOrder(t *testing.T) {
	p := NewPacker(WhitespaceTokenEstimator{}, 4000, true)
	out := p.Pack([]domain.RankedBlock{sampleBlock()})

	techniqueIdx := strings.Index(out.Text, "investigation-technique")
	findingsIdx := strings.Index(out.Text, "investigation-findings")
	if techniqueIdx == -1 || findingsIdx == -1 || techniqueIdx > findingsIdx {
		t.Fatalf("expected investigation-technique before investigation-findings in output:\n%s", out.Text)
	}
}

func TestPackerIncludesCitationTags(t *testing.T) {
	p := NewPacker(WhitespaceTokenEstimator{}, 4000, true)
	out := p.Pack([]domain.RankedBlock{sampleBlock()})

	if len(out.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(out.Citations))
	}
	if !strings.Contains(out.Text, "[d1:3:10-20]") {
		t.Fatalf("expected citation tag [d1:3:10-20] in text:\n%s", out.Text)
	}
}

func TestPackerStopsAtTokenBudget(t *testing.T) {
	p := NewPacker(WhitespaceTokenEstimator{}, 5, true)
	out := p.Pack([]domain.RankedBlock{sampleBlock()})

	if out.TokenEstimate > 5 {
		t.Fatalf("expected token estimate within budget, got %d", out.TokenEstimate)
	}
}

func TestPackerHandlesMultipleBlocks(t *testing.T) {
	b1 := sampleBlock()
	b2 := sampleBlock()
	b2.FindingID = "f2"
	b2.DocID = "d2"

	p := NewPacker(WhitespaceTokenEstimator{}, 4000, true)
	out := p.Pack([]domain.RankedBlock{b1, b2})

	if !strings.Contains(out.Text, "Block 1") || !strings.Contains(out.Text, "Block 2") {
		t.Fatalf("expected both blocks rendered:\n%s", out.Text)
	}
}
