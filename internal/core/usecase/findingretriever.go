package usecase

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

const (
	findingsIndex          = "findings"
	findingsVectorsCollection = "findings_vectors"
	findingPrefilterSize    = 50
	findingPrefilterTopDocs = 5
)

var findingFields = []ports.WeightedField{
	{Name: "item", Boost: 2.0},
	{Name: "reason_kw_norm", Boost: 1.5},
	{Name: "item_detail", Boost: 1.0},
}

// FindingRetrieverConfig is the stage-1 tuning surface of §4.6/§6.
type FindingRetrieverConfig struct {
	TopKLex               int
	TopKVec               int
	RRFK                  int
	FinalTopN             int
	ScoreThreshold        float64
	ScoreThresholdMulti   float64
}

// FindingRetriever implements §4.6's stage-1 hybrid search over finding
// records, including the document-set prefilter and keyword-frequency
// aggregation that feed stage 2.
type FindingRetriever struct {
	deps   HybridSearchDeps
	cfg    FindingRetrieverConfig
	logger *slog.Logger
}

func NewFindingRetriever(deps HybridSearchDeps, cfg FindingRetrieverConfig) *FindingRetriever {
	return &FindingRetriever{deps: deps, cfg: cfg, logger: deps.Logger}
}

// FindingRetrievalResult bundles every stage-1 output the rest of the
// pipeline consumes.
type FindingRetrievalResult struct {
	Hits           []domain.FindingHit
	TargetDocIDs   []string
	KeywordFreq    map[string]int
	Warnings       []string
}

func (fr *FindingRetriever) Retrieve(ctx context.Context, expansion domain.Expansion, slots domain.Slots, freqCache *KeywordFreqCache) FindingRetrievalResult {
	var warnings []string
	mustHave := expansion.MustHave

	targetDocIDs, primaryDocScores, prefilterWarnings := fr.prefilterDocSets(ctx, mustHave)
	warnings = append(warnings, prefilterWarnings...)

	var keywordFreq map[string]int
	if len(targetDocIDs) > 0 {
		freqDocs := topDocsByScore(targetDocIDs, primaryDocScores, findingPrefilterTopDocs)
		keywordFreq, warnings = fr.aggregateKeywordFreq(ctx, freqDocs, mustHave, freqCache, warnings)
	} else if len(mustHave) == 0 {
		warnings = append(warnings, "empty document set after prefilter")
	}

	query := buildFindingBoolQuery(expansion, slots, targetDocIDs)

	scoreThreshold := fr.cfg.ScoreThreshold
	skipVector := len(mustHave) < 2
	if len(mustHave) >= 2 {
		scoreThreshold = fr.cfg.ScoreThresholdMulti
	}

	in := HybridSearchInput{
		LexicalIndex: findingsIndex,
		LexicalQuery: query,
		LexicalSize:  fr.cfg.TopKLex,

		SkipVector:           skipVector,
		VectorCollection:     findingsVectorsCollection,
		VectorQueryText:      expansion.DocumentKeyword(),
		VectorFilter:         metaFilter(slots, targetDocIDs),
		VectorSize:           fr.cfg.TopKVec,
		VectorScoreThreshold: scoreThreshold,

		RRFK: fr.cfg.RRFK,
		TopN: 0,
	}

	fused, hybridWarnings := RunHybridSearch(ctx, fr.deps, in)
	warnings = append(warnings, hybridWarnings...)

	if len(targetDocIDs) > 0 && len(fused) > 0 {
		fused = applyScoreCutoff(fused, 0.5)
	}
	if len(fused) > fr.cfg.FinalTopN && fr.cfg.FinalTopN > 0 {
		fused = fused[:fr.cfg.FinalTopN]
	}

	hits := make([]domain.FindingHit, 0, len(fused))
	for _, f := range fused {
		hits = append(hits, domain.FindingHit{
			Finding:       findingFromFusedHit(f),
			ScoreBM25:     f.LexicalScore,
			ScoreVector:   f.VectorScore,
			ScoreCombined: f.RRFScore,
		})
	}

	return FindingRetrievalResult{
		Hits:         hits,
		TargetDocIDs: targetDocIDs,
		KeywordFreq:  keywordFreq,
		Warnings:     warnings,
	}
}

// prefilterDocSets runs one concurrent lexical search per must_have keyword
// and intersects (or, if empty, unions) the resulting doc_id sets, per
// §4.6. Each goroutine owns its own output slot; no shared-state locking is
// needed until the merge after Wait.
func (fr *FindingRetriever) prefilterDocSets(ctx context.Context, mustHave []string) ([]string, map[string]float64, []string) {
	if len(mustHave) == 0 {
		return nil, nil, nil
	}

	docSets := make([]map[string]struct{}, len(mustHave))
	primaryScores := make(map[string]float64)
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	for i, kw := range mustHave {
		i, kw := i, kw
		g.Go(func() error {
			query := ports.BoolQuery{Must: []ports.QueryClause{{Text: kw, Fields: findingFields}}}
			hits, err := fr.deps.Lexical.Search(gctx, findingsIndex, query, findingPrefilterSize)
			if err != nil {
				fr.logger.Warn("prefilter_search_degraded", "keyword", kw, "error", err)
				docSets[i] = map[string]struct{}{}
				return nil
			}
			set := make(map[string]struct{}, len(hits))
			for _, h := range hits {
				docID := stringField(h.Source, "doc_id")
				if docID == "" {
					continue
				}
				set[docID] = struct{}{}
				if i == 0 {
					primaryScores[docID] = h.Score
				}
			}
			docSets[i] = set
			return nil
		})
	}
	_ = g.Wait()

	var result map[string]struct{}
	if len(mustHave) == 1 {
		result = docSets[0]
	} else {
		result = intersectSets(docSets)
		if len(result) == 0 {
			result = unionSets(docSets)
		}
	}
	if len(result) == 0 {
		warnings = append(warnings, "empty document set after prefilter")
	}

	out := make([]string, 0, len(result))
	for id := range result {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, primaryScores, warnings
}

func (fr *FindingRetriever) aggregateKeywordFreq(ctx context.Context, docIDs, keywords []string, cache *KeywordFreqCache, warnings []string) (map[string]int, []string) {
	if cache != nil {
		key := KeywordFreqCacheKey(docIDs, keywords)
		if cached, ok := cache.Get(key); ok {
			return cached, warnings
		}
		freq, err := fr.deps.Lexical.AggregateKeywordFrequency(ctx, findingsIndex, docIDs, keywords)
		if err != nil {
			fr.logger.Warn("keyword_freq_aggregation_degraded", "error", err)
			return nil, append(warnings, "keyword frequency aggregation unavailable")
		}
		cache.Put(key, freq)
		return freq, warnings
	}
	freq, err := fr.deps.Lexical.AggregateKeywordFrequency(ctx, findingsIndex, docIDs, keywords)
	if err != nil {
		fr.logger.Warn("keyword_freq_aggregation_degraded", "error", err)
		return nil, append(warnings, "keyword frequency aggregation unavailable")
	}
	return freq, warnings
}

func intersectSets(sets []map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return map[string]struct{}{}
	}
	result := make(map[string]struct{}, len(sets[0]))
	for id := range sets[0] {
		result[id] = struct{}{}
	}
	for _, s := range sets[1:] {
		for id := range result {
			if _, ok := s[id]; !ok {
				delete(result, id)
			}
		}
	}
	return result
}

func unionSets(sets []map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{})
	for _, s := range sets {
		for id := range s {
			result[id] = struct{}{}
		}
	}
	return result
}

func topDocsByScore(docIDs []string, scores map[string]float64, limit int) []string {
	sorted := append([]string(nil), docIDs...)
	sort.Slice(sorted, func(i, j int) bool { return scores[sorted[i]] > scores[sorted[j]] })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func applyScoreCutoff(hits []FusedHit, ratio float64) []FusedHit {
	if len(hits) == 0 {
		return hits
	}
	topScore := hits[0].RRFScore
	cutoff := ratio * topScore
	out := make([]FusedHit, 0, len(hits))
	for _, h := range hits {
		if h.RRFScore >= cutoff {
			out = append(out, h)
		}
	}
	return out
}

// buildFindingBoolQuery constructs the stage-1 lexical query: one must
// clause per must_have keyword at its boost, one should clause per
// should_have at half boost, should clauses for related_terms, meta filters
// AND-combined, and doc_id restricted to the prefiltered set when present.
func buildFindingBoolQuery(expansion domain.Expansion, slots domain.Slots, targetDocIDs []string) ports.BoolQuery {
	var must, should []ports.QueryClause

	for _, kw := range expansion.MustHave {
		must = append(must, weightedClause(kw, expansion.BoostWeights[kw]))
	}
	for _, kw := range expansion.ShouldHave {
		should = append(should, weightedClause(kw, expansion.BoostWeights[kw]*0.5))
	}
	for _, kw := range expansion.RelatedTerms {
		should = append(should, weightedClause(kw, 1.0))
	}

	return ports.BoolQuery{
		Must:   must,
		Should: should,
		Filter: metaFilter(slots, targetDocIDs),
	}
}

func weightedClause(text string, boost float64) ports.QueryClause {
	if boost <= 0 {
		boost = defaultBoostWeight
	}
	fields := make([]ports.WeightedField, len(findingFields))
	for i, f := range findingFields {
		fields[i] = ports.WeightedField{Name: f.Name, Boost: f.Boost * boost}
	}
	return ports.QueryClause{Text: text, Fields: fields}
}

func metaFilter(slots domain.Slots, targetDocIDs []string) domain.SearchFilter {
	return domain.SearchFilter{
		DocIDs:      targetDocIDs,
		Code:        setKeys(slots.Code),
		IndustrySub: setKeys(slots.IndustrySub),
		DomainTags:  setKeys(slots.DomainTags),
	}
}

func findingFromFusedHit(f FusedHit) domain.Finding {
	source := f.LexicalSource
	if source == nil {
		source = f.VectorPayload
	}
	return domain.Finding{
		FindingID:   f.ID,
		DocID:       stringField(source, "doc_id"),
		Item:        stringField(source, "item"),
		ItemDetail:  stringField(source, "item_detail"),
		Code:        stringField(source, "code"),
		IndustrySub: stringField(source, "industry_sub"),
		DomainTags:  stringSliceField(source, "domain_tags"),
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func stringSliceField(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
