package usecase

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// BlockPromoterConfig is the stage-3 tuning surface of §4.8/§6.
type BlockPromoterConfig struct {
	TopKChunks             int
	IntersectionMin        int
	FinalTopN              int
	MaxBlocksPerDoc        int
	SectionWeightFindings  float64
	SectionWeightTechnique float64
}

// BlockPromoter implements §4.8: grouping chunks into findings-level
// blocks, choosing intersection-vs-blend scoring, applying the
// multi-keyword filter, and enforcing per-doc diversity.
type BlockPromoter struct {
	cfg    BlockPromoterConfig
	logger *slog.Logger
}

func NewBlockPromoter(cfg BlockPromoterConfig, logger *slog.Logger) *BlockPromoter {
	return &BlockPromoter{cfg: cfg, logger: logger}
}

// Promote returns the final block ranking, the excluded-blocks
// supplementary set, and per-keyword block counts for reporting.
func (bp *BlockPromoter) Promote(requiredSections []domain.Section, sectionGroups map[domain.Section][]domain.ChunkHit, findingHits []domain.FindingHit, expansion domain.Expansion) ([]domain.RankedBlock, []domain.RankedBlock, map[string]int) {
	findingMeta := make(map[string]domain.Finding, len(findingHits))
	for _, h := range findingHits {
		findingMeta[h.FindingID] = h.Finding
	}

	topChunksByFindingSection := make(map[string]map[domain.Section][]domain.ChunkHit)
	for _, section := range requiredSections {
		grouped := groupChunksByFinding(sectionGroups[section])
		for findingID, chunks := range grouped {
			sort.Slice(chunks, func(i, j int) bool { return chunks[i].ScoreCombined > chunks[j].ScoreCombined })
			if len(chunks) > bp.cfg.TopKChunks {
				chunks = chunks[:bp.cfg.TopKChunks]
			}
			if topChunksByFindingSection[findingID] == nil {
				topChunksByFindingSection[findingID] = make(map[domain.Section][]domain.ChunkHit)
			}
			topChunksByFindingSection[findingID][section] = chunks
		}
	}

	intersection := make(map[string]struct{})
	for findingID, bySection := range topChunksByFindingSection {
		if len(bySection) == len(requiredSections) {
			intersection[findingID] = struct{}{}
		}
	}

	var candidateIDs []string
	useIntersection := len(intersection) >= bp.cfg.IntersectionMin
	if useIntersection {
		for id := range intersection {
			candidateIDs = append(candidateIDs, id)
		}
	} else {
		for id := range topChunksByFindingSection {
			candidateIDs = append(candidateIDs, id)
		}
	}
	sort.Strings(candidateIDs)

	blocks := make([]domain.RankedBlock, 0, len(candidateIDs))
	for _, findingID := range candidateIDs {
		bySection := topChunksByFindingSection[findingID]
		score := bp.blockScore(bySection, requiredSections, useIntersection)
		meta := findingMeta[findingID]
		sourceSections := make(map[domain.Section]struct{}, len(bySection))
		for section := range bySection {
			sourceSections[section] = struct{}{}
		}
		blocks = append(blocks, domain.RankedBlock{
			FindingID:       findingID,
			DocID:           meta.DocID,
			Item:            meta.Item,
			ItemDetail:      meta.ItemDetail,
			Code:            meta.Code,
			Score:           score,
			ChunksBySection: bySection,
			SourceSections:  sourceSections,
		})
	}

	kept, excluded, keywordBlockCounts := bp.applyKeywordFilter(blocks, expansion)

	sort.Slice(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	final := applyDiversity(kept, bp.cfg.MaxBlocksPerDoc, bp.cfg.FinalTopN)

	sort.Slice(excluded, func(i, j int) bool { return excluded[i].Score > excluded[j].Score })

	return final, excluded, keywordBlockCounts
}

func groupChunksByFinding(hits []domain.ChunkHit) map[string][]domain.ChunkHit {
	out := make(map[string][]domain.ChunkHit)
	for _, hit := range hits {
		out[hit.FindingID] = append(out[hit.FindingID], hit)
	}
	return out
}

// blockScore implements §4.8/§13(b): in intersection mode (complete
// coverage) the score is a flat mean of every included chunk; in blend
// mode it is the section-weighted average of per-section means, missing
// sections contributing 0, normalized by the sum of weights so default
// 0.5/0.5 weights reproduce a plain average.
func (bp *BlockPromoter) blockScore(bySection map[domain.Section][]domain.ChunkHit, requiredSections []domain.Section, intersection bool) float64 {
	if intersection {
		var sum float64
		var n int
		for _, chunks := range bySection {
			for _, c := range chunks {
				sum += c.ScoreCombined
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}

	var weightedSum, weightTotal float64
	for _, section := range requiredSections {
		weight := bp.sectionWeight(section)
		weightTotal += weight
		chunks := bySection[section]
		if len(chunks) == 0 {
			continue
		}
		var sum float64
		for _, c := range chunks {
			sum += c.ScoreCombined
		}
		weightedSum += weight * (sum / float64(len(chunks)))
	}
	if weightTotal == 0 {
		return 0
	}
	return weightedSum / weightTotal
}

func (bp *BlockPromoter) sectionWeight(section domain.Section) float64 {
	switch section {
	case domain.SectionInvestigationFindings:
		return bp.cfg.SectionWeightFindings
	case domain.SectionInvestigationTechnique:
		return bp.cfg.SectionWeightTechnique
	default:
		return 1.0
	}
}

// applyKeywordFilter implements §4.8's full/partial/no-match classification,
// active only when must_have has at least a document-level and one
// block-level keyword.
func (bp *BlockPromoter) applyKeywordFilter(blocks []domain.RankedBlock, expansion domain.Expansion) ([]domain.RankedBlock, []domain.RankedBlock, map[string]int) {
	keywordBlockCounts := make(map[string]int)
	blockKeywords := expansion.BlockKeywords()
	if len(blockKeywords) == 0 {
		return blocks, nil, keywordBlockCounts
	}
	docKeyword := expansion.DocumentKeyword()

	var kept, excluded []domain.RankedBlock
	for _, block := range blocks {
		text := blockText(block)
		matched := matchedKeywords(text, blockKeywords)
		for _, kw := range matched {
			keywordBlockCounts[kw]++
		}
		switch {
		case len(matched) > 0:
			kept = append(kept, block)
		case docKeyword != "" && strings.Contains(text, docKeyword):
			excluded = append(excluded, block)
		}
	}
	return kept, excluded, keywordBlockCounts
}

func blockText(block domain.RankedBlock) string {
	var b strings.Builder
	for _, chunks := range block.ChunksBySection {
		for _, c := range chunks {
			b.WriteString(c.Text)
			b.WriteString(" ")
		}
	}
	return b.String()
}

func matchedKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// applyDiversity enforces §4.8's MAX_BLOCKS_PER_DOC cap while selecting the
// top finalTopN blocks from a score-descending candidate list.
func applyDiversity(sorted []domain.RankedBlock, maxPerDoc, finalTopN int) []domain.RankedBlock {
	docCounts := make(map[string]int)
	out := make([]domain.RankedBlock, 0, finalTopN)
	for _, block := range sorted {
		if maxPerDoc > 0 && docCounts[block.DocID] >= maxPerDoc {
			continue
		}
		out = append(out, block)
		docCounts[block.DocID]++
		if finalTopN > 0 && len(out) >= finalTopN {
			break
		}
	}
	return out
}
