package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// targetKeywordBoostMultiplier is applied to a target keyword's boost weight
// before the expander's clamp-and-default post-processing runs.
const targetKeywordBoostMultiplier = 1.5

// KeywordRoleClassifier is the supplemented feature of §12: a secondary LLM
// call splitting expanded keywords into context (setting: industry,
// timeframe) versus target (the thing being asked about). Disabled by
// default; the expander only calls it when configured on.
type KeywordRoleClassifier struct {
	generator ports.Generator
	logger    *slog.Logger
}

func NewKeywordRoleClassifier(generator ports.Generator, logger *slog.Logger) *KeywordRoleClassifier {
	return &KeywordRoleClassifier{generator: generator, logger: logger}
}

type keywordRoleResponse struct {
	Context []string `json:"context"`
	Target  []string `json:"target"`
}

// Classify returns a best-effort keyword -> role map. On any LLM failure it
// returns an empty map and logs a warning; this is an enrichment, never a
// reason to fail the expansion it augments.
func (k *KeywordRoleClassifier) Classify(ctx context.Context, keywords []string) map[string]domain.KeywordRole {
	if len(keywords) == 0 {
		return map[string]domain.KeywordRole{}
	}

	prompt := buildKeywordRolePrompt(keywords)
	raw, err := k.generator.GenerateJSON(ctx, prompt, jsonExtractionTemperature)
	if err != nil {
		k.logger.Warn("keyword_role_classification_skipped", "error", err)
		return map[string]domain.KeywordRole{}
	}

	var resp keywordRoleResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		k.logger.Warn("keyword_role_classification_skipped", "error", err)
		return map[string]domain.KeywordRole{}
	}

	roles := make(map[string]domain.KeywordRole, len(keywords))
	for _, kw := range resp.Context {
		roles[kw] = domain.KeywordRoleContext
	}
	for _, kw := range resp.Target {
		roles[kw] = domain.KeywordRoleTarget
	}
	return roles
}

func buildKeywordRolePrompt(keywords []string) string {
	var b strings.Builder
	b.WriteString("Classify each keyword below as a context keyword (describes the setting: industry, timeframe) ")
	b.WriteString("or a target keyword (the specific risk pattern or tax treatment being asked about).\n")
	b.WriteString("Return a strict JSON object with exactly two keys: context (array of strings), target (array of strings).\n")
	b.WriteString("Every keyword below must appear in exactly one of the two arrays.\n")
	b.WriteString("Keywords:\n")
	b.WriteString(strings.Join(keywords, ", "))
	return b.String()
}

// applyKeywordRoleBoosts multiplies every target-classified keyword's boost
// weight by targetKeywordBoostMultiplier, ahead of the clamp-and-default pass.
func applyKeywordRoleBoosts(weights map[string]float64, roles map[string]domain.KeywordRole) map[string]float64 {
	if len(roles) == 0 {
		return weights
	}
	out := make(map[string]float64, len(weights))
	for kw, w := range weights {
		if roles[kw] == domain.KeywordRoleTarget {
			out[kw] = w * targetKeywordBoostMultiplier
		} else {
			out[kw] = w
		}
	}
	return out
}
