package usecase

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

const (
	chunksIndex             = "chunks"
	chunksVectorsCollection = "chunks_vectors"
)

var chunkFields = []ports.WeightedField{
	{Name: "text", Boost: 2.0},
	{Name: "text_norm", Boost: 1.0},
	{Name: "item", Boost: 0.5},
}

// ChunkRetrieverConfig is the stage-2 tuning surface.
type ChunkRetrieverConfig struct {
	TopKLex int
	TopKVec int
	RRFK    int
}

// ChunkRetriever implements §4.7's stage-2 hybrid search over chunk
// records, run once per required section and restricted to stage-1
// findings.
type ChunkRetriever struct {
	deps   HybridSearchDeps
	cfg    ChunkRetrieverConfig
	logger *slog.Logger
}

func NewChunkRetriever(deps HybridSearchDeps, cfg ChunkRetrieverConfig) *ChunkRetriever {
	return &ChunkRetriever{deps: deps, cfg: cfg, logger: deps.Logger}
}

// Retrieve runs one hybrid search per required section concurrently and
// returns the per-section ranked chunk hits plus any degraded-backend
// warnings.
func (cr *ChunkRetriever) Retrieve(ctx context.Context, freeText string, slots domain.Slots, vocab domain.Vocabulary, findingIDs, targetDocIDs []string) (map[domain.Section][]domain.ChunkHit, []string) {
	sections := requiredSections(slots)

	results := make([]map[domain.Section][]domain.ChunkHit, len(sections))
	warningSets := make([][]string, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		i, section := i, section
		g.Go(func() error {
			hits, warnings := cr.retrieveSection(gctx, freeText, section, vocab, findingIDs, targetDocIDs)
			results[i] = map[domain.Section][]domain.ChunkHit{section: hits}
			warningSets[i] = warnings
			return nil
		})
	}
	_ = g.Wait()

	groups := make(map[domain.Section][]domain.ChunkHit, len(sections))
	var warnings []string
	for i := range sections {
		for section, hits := range results[i] {
			groups[section] = hits
		}
		warnings = append(warnings, warningSets[i]...)
	}
	return groups, warnings
}

func (cr *ChunkRetriever) retrieveSection(ctx context.Context, freeText string, section domain.Section, vocab domain.Vocabulary, findingIDs, targetDocIDs []string) ([]domain.ChunkHit, []string) {
	hints := vocab.SectionKeywords[section]
	queryText := freeText
	for _, hint := range hints {
		queryText += " " + hint
	}

	filter := domain.SearchFilter{
		FindingIDs: findingIDs,
		Section:    section,
		DocIDs:     targetDocIDs,
	}

	query := ports.BoolQuery{
		Must:   []ports.QueryClause{weightedClauseWithFields(queryText, 1.0, chunkFields)},
		Filter: filter,
	}

	topN := cr.cfg.TopKLex
	if cr.cfg.TopKVec > topN {
		topN = cr.cfg.TopKVec
	}

	in := HybridSearchInput{
		LexicalIndex: chunksIndex,
		LexicalQuery: query,
		LexicalSize:  cr.cfg.TopKLex,

		VectorCollection:     chunksVectorsCollection,
		VectorQueryText:      queryText,
		VectorFilter:         filter,
		VectorSize:           cr.cfg.TopKVec,
		VectorScoreThreshold: 0,

		RRFK: cr.cfg.RRFK,
		TopN: topN,
	}

	fused, warnings := RunHybridSearch(ctx, cr.deps, in)

	hits := make([]domain.ChunkHit, 0, len(fused))
	for _, f := range fused {
		chunk, ok := cr.resolveChunk(ctx, f, section)
		if !ok {
			continue
		}
		hits = append(hits, domain.ChunkHit{Chunk: chunk, ScoreCombined: f.RRFScore})
	}
	return hits, warnings
}

// resolveChunk assembles a Chunk from the fused hit's payloads, fetching
// text on demand from the lexical store when neither payload carries it; if
// text remains unavailable after that, the chunk is dropped (§4.7).
func (cr *ChunkRetriever) resolveChunk(ctx context.Context, f FusedHit, section domain.Section) (domain.Chunk, bool) {
	source := f.LexicalSource
	if source == nil {
		source = map[string]any{}
	}
	payload := f.VectorPayload
	if payload == nil {
		payload = map[string]any{}
	}

	text := stringField(source, "text")
	if text == "" {
		text = stringField(payload, "text")
	}
	if text == "" {
		fetched, err := cr.deps.Lexical.GetByID(ctx, chunksIndex, f.ID)
		if err != nil {
			cr.logger.Warn("chunk_text_fetch_failed", "chunk_id", f.ID, "error", err)
		} else {
			text = stringField(fetched, "text")
			if text != "" {
				source = fetched
			}
		}
	}
	if text == "" {
		return domain.Chunk{}, false
	}

	merged := mergeFields(source, payload)
	return domain.Chunk{
		ChunkID:      f.ID,
		FindingID:    stringField(merged, "finding_id"),
		DocID:        stringField(merged, "doc_id"),
		Section:      section,
		SectionOrder: intField(merged, "section_order"),
		ChunkOrder:   intField(merged, "chunk_order"),
		Page:         intPtrField(merged, "page"),
		StartLine:    intPtrField(merged, "start_line"),
		EndLine:      intPtrField(merged, "end_line"),
		Text:         text,
	}, true
}

func requiredSections(slots domain.Slots) []domain.Section {
	if len(slots.SectionHints) == 0 {
		return domain.PrimarySections
	}
	out := make([]domain.Section, 0, len(slots.SectionHints))
	for section := range slots.SectionHints {
		out = append(out, section)
	}
	return out
}

func weightedClauseWithFields(text string, boost float64, fields []ports.WeightedField) ports.QueryClause {
	scaled := make([]ports.WeightedField, len(fields))
	for i, f := range fields {
		scaled[i] = ports.WeightedField{Name: f.Name, Boost: f.Boost * boost}
	}
	return ports.QueryClause{Text: text, Fields: scaled}
}

func mergeFields(primary, secondary map[string]any) map[string]any {
	out := make(map[string]any, len(primary)+len(secondary))
	for k, v := range secondary {
		out[k] = v
	}
	for k, v := range primary {
		out[k] = v
	}
	return out
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func intPtrField(m map[string]any, key string) *int {
	if _, ok := m[key]; !ok {
		return nil
	}
	n := intField(m, key)
	return &n
}
