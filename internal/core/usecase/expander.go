package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

const (
	defaultBoostWeight = 1.5
	mustHaveBoostDefault = 3.0
	minBoostWeight       = 1.0
	maxBoostWeight       = 3.0
)

// Expander turns a parsed, case_lookup query into the keyword sets driving
// stage-1/stage-2 retrieval. Runs only for case_lookup intent, per §4.3.
type Expander struct {
	generator     ports.Generator
	logger        *slog.Logger
	roleClassifier *KeywordRoleClassifier
	roleClassificationEnabled bool
}

func NewExpander(generator ports.Generator, logger *slog.Logger, roleClassifier *KeywordRoleClassifier, roleClassificationEnabled bool) *Expander {
	return &Expander{
		generator:                 generator,
		logger:                    logger,
		roleClassifier:            roleClassifier,
		roleClassificationEnabled: roleClassificationEnabled,
	}
}

type llmExpansionResponse struct {
	MustHave     []string           `json:"must_have"`
	ShouldHave   []string           `json:"should_have"`
	RelatedTerms []string           `json:"related_terms"`
	BoostWeights map[string]float64 `json:"boost_weights"`
}

func (e *Expander) Expand(ctx context.Context, normalized string, slots domain.Slots, vocab domain.Vocabulary) domain.Expansion {
	prompt := buildExpansionPrompt(normalized, slots, vocab)
	raw, err := e.generator.GenerateJSON(ctx, prompt, jsonExtractionTemperature)
	if err != nil {
		e.logger.Warn("expander_llm_fallback", "error", err)
		return e.fallback(slots)
	}

	var resp llmExpansionResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		e.logger.Warn("expander_llm_fallback", "error", err)
		return e.fallback(slots)
	}

	mustHave := dedupPreserveOrder(resp.MustHave)
	shouldHave := dedupPreserveOrder(resp.ShouldHave)
	weights := resp.BoostWeights

	var roles map[string]domain.KeywordRole
	if e.roleClassificationEnabled && e.roleClassifier != nil {
		roles = e.roleClassifier.Classify(ctx, append(append([]string{}, mustHave...), shouldHave...))
		weights = applyKeywordRoleBoosts(weights, roles)
	}

	return domain.Expansion{
		MustHave:     mustHave,
		ShouldHave:   shouldHave,
		RelatedTerms: dedupPreserveOrder(resp.RelatedTerms),
		BoostWeights: normalizeBoostWeights(mustHave, weights),
		KeywordRoles: roles,
		UsedFallback: false,
	}
}

// fallback implements §4.3's LLM-failure path: must_have drawn from the
// first domain tag, should_have from the rest, no related terms.
func (e *Expander) fallback(slots domain.Slots) domain.Expansion {
	tags := slots.DomainTagList()
	var mustHave, shouldHave []string
	if len(tags) > 0 {
		mustHave = tags[:1]
		shouldHave = append([]string(nil), tags[1:]...)
	}
	return domain.Expansion{
		MustHave:     mustHave,
		ShouldHave:   shouldHave,
		RelatedTerms: nil,
		BoostWeights: normalizeBoostWeights(mustHave, nil),
		UsedFallback: true,
	}
}

func dedupPreserveOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// normalizeBoostWeights clamps every provided weight to [1.0,3.0], turns a
// provided weight of 0 into the 1.5 default, and gives every must_have entry
// the LLM did not weight the must_have default of 3.0.
func normalizeBoostWeights(mustHave []string, given map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(given)+len(mustHave))
	for kw, w := range given {
		out[kw] = clampBoost(w)
	}
	for _, kw := range mustHave {
		if _, ok := out[kw]; !ok {
			out[kw] = mustHaveBoostDefault
		}
	}
	return out
}

func clampBoost(w float64) float64 {
	if w == 0 {
		return defaultBoostWeight
	}
	if w < minBoostWeight {
		return minBoostWeight
	}
	if w > maxBoostWeight {
		return maxBoostWeight
	}
	return w
}

func buildExpansionPrompt(normalized string, slots domain.Slots, vocab domain.Vocabulary) string {
	var b strings.Builder
	b.WriteString("You expand a Korean tax-audit case question into a keyword search plan.\n")
	b.WriteString("Return a strict JSON object with exactly these keys: must_have (ordered array of strings, ")
	b.WriteString("index 0 is the document-level keyword, the rest are block-level keywords), should_have (array of strings), ")
	b.WriteString("related_terms (array of strings), boost_weights (object mapping keyword to a number in [1.0,3.0]).\n")
	b.WriteString("No markdown, no extra keys, no commentary.\n")
	b.WriteString("industry_sub vocabulary: " + strings.Join(vocab.IndustrySub, ", ") + "\n")
	b.WriteString("domain_tags vocabulary: " + strings.Join(vocab.DomainTags, ", ") + "\n")
	b.WriteString("Extracted slots: industry_sub=" + strings.Join(setKeys(slots.IndustrySub), ",") +
		" domain_tags=" + strings.Join(setKeys(slots.DomainTags), ",") +
		" code=" + strings.Join(setKeys(slots.Code), ",") +
		" entities=" + strings.Join(setKeys(slots.Entities), ",") + "\n")
	b.WriteString("Question:\n")
	b.WriteString(normalized)
	return b.String()
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
