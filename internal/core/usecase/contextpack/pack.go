// Package contextpack renders ranked blocks into the bounded-length
// markdown prompt context the composer hands to the LLM (§4.9).
package contextpack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// TokenEstimator estimates the token cost of a string. The packer enforces
// its token budget against this estimate, not an exact tokenizer count, per
// §13 Open Question (a): a pluggable seam with one shipped implementation.
type TokenEstimator interface {
	Estimate(text string) int
}

// WhitespaceTokenEstimator approximates token count as whitespace-split word
// count times 1.3, the default (and only) estimator.
type WhitespaceTokenEstimator struct{}

func (WhitespaceTokenEstimator) Estimate(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

// Packer renders ranked blocks into a token-bounded markdown context.
type Packer struct {
	estimator     TokenEstimator
	tokenBudget   int
	mergeAdjacent bool
}

func NewPacker(estimator TokenEstimator, tokenBudget int, mergeAdjacent bool) *Packer {
	if estimator == nil {
		estimator = WhitespaceTokenEstimator{}
	}
	return &Packer{estimator: estimator, tokenBudget: tokenBudget, mergeAdjacent: mergeAdjacent}
}

// Pack renders blocks in the given rank order into markdown text, stopping
// before the token budget would be exceeded. Citations are collected in the
// same order their tags appear in the text.
func (p *Packer) Pack(blocks []domain.RankedBlock) domain.PackedContext {
	var b strings.Builder
	var citations []domain.Citation
	budgetExhausted := false

	for i, block := range blocks {
		if budgetExhausted {
			break
		}
		header := blockHeader(i+1, block)
		if !p.tryAppend(&b, header) {
			budgetExhausted = true
			break
		}

		for _, section := range domain.SectionPresentationOrder {
			chunks := block.ChunksBySection[section]
			if len(chunks) == 0 {
				continue
			}
			sorted := append([]domain.ChunkHit(nil), chunks...)
			sort.Slice(sorted, func(i, j int) bool {
				if sorted[i].SectionOrder != sorted[j].SectionOrder {
					return sorted[i].SectionOrder < sorted[j].SectionOrder
				}
				return sorted[i].ChunkOrder < sorted[j].ChunkOrder
			})

			if !p.tryAppend(&b, fmt.Sprintf("\n### %s\n", section)) {
				budgetExhausted = true
				break
			}

			for j, chunk := range sorted {
				citation := domain.Citation{DocID: chunk.DocID, FindingID: chunk.FindingID, Page: chunk.Page, StartLine: chunk.StartLine, EndLine: chunk.EndLine}
				rendered := chunk.Text + " " + citation.Tag()
				if !p.tryAppend(&b, rendered) {
					budgetExhausted = true
					break
				}
				citations = append(citations, citation)

				if j < len(sorted)-1 {
					sep := "\n\n"
					if p.mergeAdjacent && adjacentChunks(chunk, sorted[j+1]) {
						sep = "\n"
					}
					b.WriteString(sep)
				}
			}
			if budgetExhausted {
				break
			}
			b.WriteString("\n")
		}
	}

	text := b.String()
	return domain.PackedContext{
		Text:          text,
		Citations:     citations,
		TokenEstimate: p.estimator.Estimate(text),
	}
}

func adjacentChunks(a, b domain.ChunkHit) bool {
	return a.SectionOrder == b.SectionOrder && b.ChunkOrder == a.ChunkOrder+1
}

// tryAppend appends s to b only if doing so would not exceed the token
// budget; returns false (without mutating b) when it would.
func (p *Packer) tryAppend(b *strings.Builder, s string) bool {
	candidate := b.String() + s
	if p.tokenBudget > 0 && p.estimator.Estimate(candidate) > p.tokenBudget {
		return false
	}
	b.WriteString(s)
	return true
}

func blockHeader(n int, block domain.RankedBlock) string {
	sections := make([]string, 0, len(block.SourceSections))
	for _, section := range domain.SectionPresentationOrder {
		if _, ok := block.SourceSections[section]; ok {
			sections = append(sections, string(section))
		}
	}
	return fmt.Sprintf("## Block %d\n- doc_id: %s\n- finding_id: %s\n- item: %s\n- code: %s\n- sections: %s\n",
		n, block.DocID, block.FindingID, block.Item, block.Code, strings.Join(sections, ", "))
}
