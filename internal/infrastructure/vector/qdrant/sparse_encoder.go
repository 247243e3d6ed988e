package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	docBM25K1      = 1.2
	queryBM25K     = 1.2
	maxSparseTerms = 256
	// shouldClauseWeight discounts should_have/related_term clauses
	// relative to must_have clauses when building a query sparse vector.
	shouldClauseWeight = 0.5
)

func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	appendTermFreq(termFreq, tokenizeMixed(query), 1.0)
	return termFreqToSparse(termFreq, queryBM25K)
}

// encodeSparseBoolQuery turns the query-construction layer's weighted,
// multi-field bool query into one sparse query vector: each clause's text
// is tokenized once, weighted by its field boosts summed and by whether it
// came from a must or should clause.
func encodeSparseBoolQuery(q ports.BoolQuery) sparseVector {
	termFreq := make(map[uint32]float64, 64)
	for _, c := range q.Must {
		appendTermFreq(termFreq, tokenizeMixed(c.Text), sumFieldBoosts(c.Fields))
	}
	for _, c := range q.Should {
		appendTermFreq(termFreq, tokenizeMixed(c.Text), sumFieldBoosts(c.Fields)*shouldClauseWeight)
	}
	return termFreqToSparse(termFreq, queryBM25K)
}

func sumFieldBoosts(fields []ports.WeightedField) float64 {
	if len(fields) == 0 {
		return 1.0
	}
	var total float64
	for _, f := range fields {
		total += f.Boost
	}
	return total
}

func appendTermFreq(dst map[uint32]float64, tokens []string, tokenWeight float64) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		idx := hashToken(token)
		dst[idx] += tokenWeight
	}
}

func termFreqToSparse(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (k + 1.0)) / (tfValue + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}

	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// tokenizeMixed splits on anything that is neither ASCII alphanumeric nor a
// Hangul syllable, so Korean case-document text tokenizes into whole
// syllable-block words rather than being discarded as punctuation.
func tokenizeMixed(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case unicode.Is(unicode.Hangul, r):
			b.WriteRune(r)
		default:
			if b.Len() > 0 {
				out = append(out, b.String())
				b.Reset()
			}
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
