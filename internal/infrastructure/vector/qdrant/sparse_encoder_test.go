package qdrant

import (
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("제조업 매출누락 사례")
	v2 := encodeSparseQuery("제조업 매출누락 사례")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("가공거래 명의위장 제조업 건설업")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestTokenizeMixedKeepsHangulAndDigits(t *testing.T) {
	tokens := tokenizeMixed("제조업 DOC_0001 가공거래-2건")
	foundIndustry := false
	foundNum := false
	for _, tok := range tokens {
		if tok == "제조업" {
			foundIndustry = true
		}
		if tok == "0001" {
			foundNum = true
		}
	}
	if !foundIndustry || !foundNum {
		t.Fatalf("expected 제조업 and 0001 tokens, got %v", tokens)
	}
}

func TestEncodeSparseBoolQueryWeightsMustAboveShould(t *testing.T) {
	q := ports.BoolQuery{
		Must:   []ports.QueryClause{{Text: "매출누락", Fields: []ports.WeightedField{{Name: "item", Boost: 2.0}}}},
		Should: []ports.QueryClause{{Text: "가공거래", Fields: []ports.WeightedField{{Name: "item", Boost: 2.0}}}},
	}
	v := encodeSparseBoolQuery(q)
	if len(v.Indices) != 2 {
		t.Fatalf("expected 2 distinct terms, got %d", len(v.Indices))
	}
	if !(v.Values[0] > 0 && v.Values[1] > 0) {
		t.Fatalf("expected positive weights for both terms, got %+v", v.Values)
	}
	weights := make(map[uint32]float32, len(v.Indices))
	for i, idx := range v.Indices {
		weights[idx] = v.Values[i]
	}
	if weights[hashToken("매출누락")] <= weights[hashToken("가공거래")] {
		t.Fatalf("expected must term weighted above should term, got %+v", weights)
	}
}

func TestEncodeSparseBoolQueryEmpty(t *testing.T) {
	v := encodeSparseBoolQuery(ports.BoolQuery{})
	if len(v.Indices) != 0 {
		t.Fatalf("expected empty sparse vector for empty query, got %+v", v)
	}
}
