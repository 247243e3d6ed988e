package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// composerTemperature is fixed per §4.10.
const composerTemperature = 0.1

// Composer invokes the LLM once over the packed context and assembles the
// final markdown answer: optional strategy preamble, LLM body, citation
// footer, optional excluded-blocks supplement.
type Composer struct {
	generator ports.Generator
	logger    *slog.Logger
}

func NewComposer(generator ports.Generator, logger *slog.Logger) *Composer {
	return &Composer{generator: generator, logger: logger}
}

func (c *Composer) Compose(ctx context.Context, question string, packed domain.PackedContext, blockRanking, excludedBlocks []domain.RankedBlock, expansion domain.Expansion, keywordBlockCounts map[string]int) (string, []string) {
	var warnings []string

	var preamble string
	if len(expansion.MustHave) >= 2 {
		preamble = strategyPreamble(expansion, keywordBlockCounts)
	}

	prompt := buildComposerPrompt(question, packed.Text)
	body, err := c.generator.Generate(ctx, prompt, composerTemperature)
	if err != nil {
		c.logger.Warn("composer_llm_fallback", "error", err)
		warnings = append(warnings, "llm unavailable, returning retrieved content without narrative")
		body = deterministicFallbackBody(blockRanking)
	}

	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(referencesFooter(packed.Citations))
	if len(excludedBlocks) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderAdditional(excludedBlocks))
	}

	return b.String(), warnings
}

// explainHeader marks an answer as a general definitional explanation, never
// to be mistaken for a cited, retrieval-backed answer.
const explainHeader = "_General explanation, not case-specific._"

// ComposeExplanation implements the explain route of §4.10/§4.4: a direct
// LLM call with no retrieved context, asking it to define the query term
// from its own domain knowledge.
func (c *Composer) ComposeExplanation(ctx context.Context, question string) (string, []string) {
	var warnings []string

	prompt := buildExplanationPrompt(question)
	body, err := c.generator.Generate(ctx, prompt, composerTemperature)
	if err != nil {
		c.logger.Warn("composer_explanation_fallback", "error", err)
		warnings = append(warnings, "llm unavailable, could not generate an explanation")
		body = "No explanation could be generated; the language model backend is unavailable."
	}

	return explainHeader + "\n\n" + body, warnings
}

func buildExplanationPrompt(question string) string {
	var b strings.Builder
	b.WriteString("Define or explain the following Korean tax-audit term or question using your own general domain knowledge.\n")
	b.WriteString("Do not invent a specific case, document, or citation; this is a definitional answer only.\n\n")
	b.WriteString("Term or question: ")
	b.WriteString(question)
	return b.String()
}

func buildComposerPrompt(question, packedText string) string {
	var b strings.Builder
	b.WriteString("You answer a Korean tax-audit case question using only the retrieved context below.\n")
	b.WriteString("Cover every block in the context. Produce the output as one markdown card per block.\n")
	b.WriteString("Cite sources using the citation tags already present in the context, verbatim.\n")
	b.WriteString("Do not state anything not present in the context.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(packedText)
	return b.String()
}

func strategyPreamble(expansion domain.Expansion, keywordBlockCounts map[string]int) string {
	docKeyword := expansion.DocumentKeyword()
	blockKeywords := expansion.BlockKeywords()

	var parts []string
	for _, kw := range blockKeywords {
		parts = append(parts, fmt.Sprintf("%s (%d)", kw, keywordBlockCounts[kw]))
	}
	return fmt.Sprintf("_Search strategy: document keyword **%s**, block keywords %s._", docKeyword, strings.Join(parts, ", "))
}

// deterministicFallbackBody implements §4.10's failure path: list blocks by
// header without LLM narrative.
func deterministicFallbackBody(blocks []domain.RankedBlock) string {
	var b strings.Builder
	for i, block := range blocks {
		b.WriteString(fmt.Sprintf("## Block %d\n", i+1))
		b.WriteString(fmt.Sprintf("- doc_id: %s\n- finding_id: %s\n- item: %s\n- code: %s\n", block.DocID, block.FindingID, block.Item, block.Code))
		b.WriteString("(narrative unavailable; LLM could not be reached)\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func referencesFooter(citations []domain.Citation) string {
	var b strings.Builder
	b.WriteString("## References\n")
	seen := make(map[string]struct{})
	for _, c := range citations {
		tag := c.Tag()
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		b.WriteString("- ")
		b.WriteString(tag)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderAdditional(excludedBlocks []domain.RankedBlock) string {
	var b strings.Builder
	b.WriteString("## Additional\n")
	b.WriteString("(blocks matching the document keyword only, shown for context)\n\n")
	for _, block := range excludedBlocks {
		b.WriteString(fmt.Sprintf("- %s / %s: %s\n", block.DocID, block.FindingID, block.Item))
	}
	return strings.TrimRight(b.String(), "\n")
}
