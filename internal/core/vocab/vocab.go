// Package vocab loads the operator-tunable domain vocabulary (controlled
// slot values, abbreviations, stopwords, section keyword hints) from a YAML
// file into domain.Vocabulary.
package vocab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

type fileFormat struct {
	IndustrySub     []string            `yaml:"industry_sub"`
	DomainTags      []string            `yaml:"domain_tags"`
	Abbreviations   map[string]string   `yaml:"abbreviations"`
	Stopwords       []string            `yaml:"stopwords"`
	SectionKeywords map[string][]string `yaml:"section_keywords"`
	ExplainMarkers  []string            `yaml:"explain_markers"`
}

// Load reads and parses the vocabulary file at path.
func Load(path string) (domain.Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return domain.Vocabulary{}, fmt.Errorf("parse vocabulary file: %w", err)
	}

	stopwords := make(map[string]struct{}, len(f.Stopwords))
	for _, w := range f.Stopwords {
		stopwords[w] = struct{}{}
	}

	sectionKeywords := make(map[domain.Section][]string, len(f.SectionKeywords))
	for section, kws := range f.SectionKeywords {
		sectionKeywords[domain.Section(section)] = kws
	}

	return domain.Vocabulary{
		IndustrySub:     f.IndustrySub,
		DomainTags:      f.DomainTags,
		Abbreviations:   f.Abbreviations,
		Stopwords:       stopwords,
		SectionKeywords: sectionKeywords,
		ExplainMarkers:  f.ExplainMarkers,
	}, nil
}

// Default returns a minimal built-in vocabulary, used when no vocabulary
// file is configured, so the pipeline degrades gracefully rather than
// failing bootstrap.
func Default() domain.Vocabulary {
	return domain.Vocabulary{
		IndustrySub: []string{"제조업", "도소매업", "건설업", "서비스업"},
		DomainTags:  []string{"매출누락", "가공경비", "부당공제", "명의위장"},
		Abbreviations: map[string]string{
			"VAT": "부가가치세",
			"CIT": "법인세",
		},
		Stopwords: map[string]struct{}{
			"사례": {}, "조사": {}, "관련": {}, "내용": {},
		},
		SectionKeywords: map[domain.Section][]string{
			domain.SectionInvestigationFindings:  {"적출", "확인"},
			domain.SectionInvestigationTechnique: {"조사기법", "확인방법"},
		},
		ExplainMarkers: []string{"이란", "의미", "what is", "explain"},
	}
}
