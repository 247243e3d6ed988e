package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

var sensitivePatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{6}-\d{7}\b`), "[주민번호]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{5}\b`), "[사업자번호]"},
	{regexp.MustCompile(`\b\d{4}-\d{4}-\d{4}-\d{4}\b`), "[카드번호]"},
	{regexp.MustCompile(`\b\d{2,3}-\d{3,4}-\d{4}\b`), "[전화번호]"},
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// punctuationRe keeps brackets so PII placeholders like "[주민번호]"
	// survive the collapse step that runs right after masking.
	punctuationRe = regexp.MustCompile(`[^\w\s가-힣\[\]]`)
	particles     = []string{"시", "에", "의", "를", "을", "가", "이", "와", "과", "도"}
)

// Normalizer cleans raw user text into a canonical form. It never fails: on
// any internal error the original input is returned unchanged and the
// failure is logged.
type Normalizer struct {
	vocab  domain.Vocabulary
	logger *slog.Logger
}

func NewNormalizer(vocab domain.Vocabulary, logger *slog.Logger) *Normalizer {
	return &Normalizer{vocab: vocab, logger: logger}
}

// Normalize applies, in order: PII masking, whitespace/punctuation
// normalization, ASCII lowercasing, abbreviation expansion, and stopword
// removal.
func (n *Normalizer) Normalize(ctx context.Context, raw string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("normalizer_recovered_panic", "panic", r)
			out = raw
		}
	}()

	masked := maskSensitive(raw)
	collapsed := collapseWhitespaceAndPunctuation(masked)
	lowered := lowerASCIISegments(collapsed)
	expanded := expandAbbreviations(lowered, n.vocab.Abbreviations)
	cleaned := n.removeStopwordsAndParticles(expanded)

	if cleaned == "" {
		n.logger.Warn("normalizer_empty_result", "raw", raw)
		return strings.TrimSpace(raw)
	}
	return cleaned
}

func maskSensitive(text string) string {
	masked := text
	for _, p := range sensitivePatterns {
		masked = p.re.ReplaceAllString(masked, p.replacement)
	}
	return masked
}

func collapseWhitespaceAndPunctuation(text string) string {
	text = strings.TrimSpace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = punctuationRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// lowerASCIISegments lowercases ASCII runes while leaving CJK characters
// (and everything else) unchanged.
func lowerASCIISegments(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func expandAbbreviations(text string, dict map[string]string) string {
	if len(dict) == 0 {
		return text
	}
	for abbr, full := range dict {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(abbr) + `\b`)
		text = re.ReplaceAllString(text, full)
	}
	return text
}

// removeStopwordsAndParticles strips trailing grammatical particles from
// each token, then drops whole tokens that are stopwords. It works on
// whitespace-delimited tokens rather than \b-anchored regexes: Go's RE2
// treats \b as an ASCII word boundary, so it never matches around Hangul.
func (n *Normalizer) removeStopwordsAndParticles(text string) string {
	cleaned := text
	for _, particle := range particles {
		re := regexp.MustCompile(`([가-힣])` + regexp.QuoteMeta(particle) + `(\s+|$)`)
		cleaned = re.ReplaceAllString(cleaned, "$1 ")
	}

	tokens := strings.Fields(cleaned)
	kept := tokens[:0]
	for _, tok := range tokens {
		if n.vocab.IsStopword(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}
