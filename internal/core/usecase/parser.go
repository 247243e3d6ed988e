package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// jsonExtractionTemperature is used for every LLM call that must return
// strict JSON: parser slot extraction and expander keyword extraction.
const jsonExtractionTemperature = 0.1

// Parser classifies intent and extracts structured slots, calling the LLM
// first and falling back to rule-based extraction on any failure. Per
// §4.2/§7 no failure here is fatal: every path produces usable Slots.
type Parser struct {
	vocab     domain.Vocabulary
	generator ports.Generator
	logger    *slog.Logger
}

func NewParser(vocab domain.Vocabulary, generator ports.Generator, logger *slog.Logger) *Parser {
	return &Parser{vocab: vocab, generator: generator, logger: logger}
}

// ClassifyIntent applies the small definitional-marker rule set of §4.2.
func (p *Parser) ClassifyIntent(normalized string) domain.Intent {
	lower := strings.ToLower(normalized)
	for _, marker := range p.vocab.ExplainMarkers {
		if marker == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(marker)) {
			return domain.IntentExplain
		}
	}
	return domain.IntentCaseLookup
}

type llmSlotResponse struct {
	IndustrySub  []string            `json:"industry_sub"`
	DomainTags   []string            `json:"domain_tags"`
	Code         []string            `json:"code"`
	Entities     []string            `json:"entities"`
	SectionHints map[string][]string `json:"section_hints"`
	FreeText     string              `json:"free_text"`
}

// ExtractSlots runs the LLM slot-extraction call and falls back to the
// rule-based extractor on any error, malformed JSON, or missing required
// key, per §4.2's failure modes.
func (p *Parser) ExtractSlots(ctx context.Context, normalized string) domain.Slots {
	llmSlots, wellFormed, err := p.extractViaLLM(ctx, normalized)
	if err == nil {
		slots := slotsFromLLMResponse(llmSlots)
		slots.Confidence = p.confidence(slots, true, wellFormed, false)
		return slots
	}

	p.logger.Warn("parser_llm_fallback", "error", err)
	slots := p.extractViaRules(normalized)
	slots.UsedFallback = true
	slots.Confidence = p.confidence(slots, false, false, true)
	if slots.Confidence > 0.5 {
		slots.Confidence = 0.5
	}
	return slots
}

func (p *Parser) extractViaLLM(ctx context.Context, normalized string) (llmSlotResponse, bool, error) {
	prompt := buildSlotExtractionPrompt(normalized, p.vocab)
	raw, err := p.generator.GenerateJSON(ctx, prompt, jsonExtractionTemperature)
	if err != nil {
		return llmSlotResponse{}, false, domain.WrapError(domain.ErrLLMUnavailable, "parser.extract_slots", err)
	}

	var resp llmSlotResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return llmSlotResponse{}, false, domain.WrapError(domain.ErrLLMFormatError, "parser.extract_slots", err)
	}
	if resp.IndustrySub == nil && resp.DomainTags == nil && resp.Code == nil && resp.Entities == nil {
		return llmSlotResponse{}, false, domain.WrapError(domain.ErrLLMFormatError, "parser.extract_slots", fmt.Errorf("response has no recognized slot keys"))
	}
	return resp, true, nil
}

func slotsFromLLMResponse(r llmSlotResponse) domain.Slots {
	slots := domain.NewSlots()
	for _, v := range r.IndustrySub {
		slots.IndustrySub[v] = struct{}{}
	}
	for _, v := range r.DomainTags {
		slots.DomainTags[v] = struct{}{}
	}
	for _, v := range r.Code {
		slots.Code[v] = struct{}{}
	}
	for _, v := range r.Entities {
		slots.Entities[v] = struct{}{}
	}
	for section, hints := range r.SectionHints {
		slots.SectionHints[domain.Section(section)] = hints
	}
	slots.FreeText = r.FreeText
	return slots
}

var codeRe = regexp.MustCompile(`\b\d{5}\b`)
var quotedSpanRes = []*regexp.Regexp{
	regexp.MustCompile(`"([^"]+)"`),
	regexp.MustCompile(`'([^']+)'`),
	regexp.MustCompile(`「([^」]+)」`),
	regexp.MustCompile(`『([^』]+)』`),
}
var capitalizedSpanRe = regexp.MustCompile(`\b[A-Z][A-Za-z]+(?:\s[A-Z][A-Za-z]+)*\b`)

// extractViaRules is the fallback extractor of §4.2: regex codes, gazetteer
// lookup against the controlled vocabulary, and capitalized/quoted spans as
// entity candidates.
func (p *Parser) extractViaRules(normalized string) domain.Slots {
	slots := domain.NewSlots()
	slots.FreeText = normalized

	for _, code := range codeRe.FindAllString(normalized, -1) {
		slots.Code[code] = struct{}{}
	}
	for _, term := range p.vocab.IndustrySub {
		if term != "" && strings.Contains(normalized, term) {
			slots.IndustrySub[term] = struct{}{}
		}
	}
	for _, term := range p.vocab.DomainTags {
		if term != "" && strings.Contains(normalized, term) {
			slots.DomainTags[term] = struct{}{}
		}
	}
	for _, re := range quotedSpanRes {
		for _, m := range re.FindAllStringSubmatch(normalized, -1) {
			if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
				slots.Entities[m[1]] = struct{}{}
			}
		}
	}
	for _, span := range capitalizedSpanRe.FindAllString(normalized, -1) {
		slots.Entities[span] = struct{}{}
	}
	return slots
}

// confidence implements §4.2's weighted-signal sum, clipped to [0,1].
func (p *Parser) confidence(slots domain.Slots, llmPopulated, wellFormedJSON, usedFallback bool) float64 {
	score := 0.0
	if llmPopulated && anySlotPopulated(slots) {
		score += 0.3
	}
	if len(slots.Code) > 0 || len(slots.IndustrySub) > 0 {
		score += 0.2
	}
	if len(slots.DomainTags) > 0 {
		score += 0.2
	}
	if wellFormedJSON {
		score += 0.3
	}
	if usedFallback {
		score -= 0.2
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func anySlotPopulated(s domain.Slots) bool {
	return len(s.IndustrySub) > 0 || len(s.DomainTags) > 0 || len(s.Code) > 0 || len(s.Entities) > 0
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func buildSlotExtractionPrompt(normalized string, vocab domain.Vocabulary) string {
	var b strings.Builder
	b.WriteString("You extract structured slots from a Korean tax-audit case question.\n")
	b.WriteString("Return a strict JSON object with exactly these keys: industry_sub (array of strings), ")
	b.WriteString("domain_tags (array of strings), code (array of 5-digit string codes), entities (array of strings), ")
	b.WriteString("section_hints (object mapping section name to array of hint strings), free_text (string).\n")
	b.WriteString("No markdown, no extra keys, no commentary.\n")
	b.WriteString("industry_sub must be chosen only from: " + strings.Join(vocab.IndustrySub, ", ") + "\n")
	b.WriteString("domain_tags must be chosen only from: " + strings.Join(vocab.DomainTags, ", ") + "\n")
	b.WriteString("Question:\n")
	b.WriteString(normalized)
	return b.String()
}
