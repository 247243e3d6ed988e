package domain

// Vocabulary is the operator-tunable domain knowledge the normalizer,
// parser, and expander draw on: controlled slot values, abbreviation
// expansions, stopwords, and section keyword hints. Loaded once at
// bootstrap from a YAML file (see internal/core/vocab).
type Vocabulary struct {
	IndustrySub []string
	DomainTags  []string

	// Abbreviations maps a short form to its canonical expansion, e.g.
	// "VAT" -> "부가가치세".
	Abbreviations map[string]string

	// Stopwords are grammatical particles and domain-generic nouns removed
	// by the normalizer.
	Stopwords map[string]struct{}

	// SectionKeywords maps a section to hint terms that steer the chunk
	// retriever's lexical query when section_hints are present.
	SectionKeywords map[Section][]string

	// ExplainMarkers are definitional-query markers the parser's intent
	// classifier looks for ("what is", "explain", "의미").
	ExplainMarkers []string
}

func (v Vocabulary) IsStopword(token string) bool {
	_, ok := v.Stopwords[token]
	return ok
}

func (v Vocabulary) HasIndustrySub(term string) bool {
	for _, s := range v.IndustrySub {
		if s == term {
			return true
		}
	}
	return false
}

func (v Vocabulary) HasDomainTag(term string) bool {
	for _, s := range v.DomainTags {
		if s == term {
			return true
		}
	}
	return false
}
