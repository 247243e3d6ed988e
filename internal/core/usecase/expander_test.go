package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

func TestExpandViaLLMNormalizesBoostsAndDedup(t *testing.T) {
	gen := &fakeGenerator{jsonResp: `{"must_have":["가공거래","가공거래","제조업"],"should_have":["매입"],"related_terms":["위장거래"],"boost_weights":{"가공거래":5,"제조업":0}}`}
	exp := NewExpander(gen, discardLogger(), nil, false)

	slots := domain.NewSlots()
	result := exp.Expand(context.Background(), "가공거래 제조업 사례", slots, testVocab())

	if len(result.MustHave) != 2 || result.MustHave[0] != "가공거래" || result.MustHave[1] != "제조업" {
		t.Fatalf("expected deduped ordered must_have [가공거래 제조업], got %+v", result.MustHave)
	}
	if result.BoostWeights["가공거래"] != maxBoostWeight {
		t.Fatalf("expected boost clamped to %v, got %v", maxBoostWeight, result.BoostWeights["가공거래"])
	}
	if result.BoostWeights["제조업"] != defaultBoostWeight {
		t.Fatalf("expected zero boost to default to %v, got %v", defaultBoostWeight, result.BoostWeights["제조업"])
	}
	if result.UsedFallback {
		t.Fatalf("expected no fallback")
	}
}

func TestExpandEnsuresMustHaveBoostDefault(t *testing.T) {
	gen := &fakeGenerator{jsonResp: `{"must_have":["명의위장"],"should_have":[],"related_terms":[],"boost_weights":{}}`}
	exp := NewExpander(gen, discardLogger(), nil, false)

	result := exp.Expand(context.Background(), "명의위장 사례", domain.NewSlots(), testVocab())

	if result.BoostWeights["명의위장"] != mustHaveBoostDefault {
		t.Fatalf("expected must_have default boost %v, got %v", mustHaveBoostDefault, result.BoostWeights["명의위장"])
	}
}

func TestExpandFallsBackOnLLMError(t *testing.T) {
	gen := &fakeGenerator{jsonErr: errors.New("timeout")}
	exp := NewExpander(gen, discardLogger(), nil, false)

	slots := domain.NewSlots()
	slots.DomainTags["가공거래"] = struct{}{}
	slots.DomainTags["명의위장"] = struct{}{}

	result := exp.Expand(context.Background(), "가공거래 명의위장", slots, testVocab())

	if !result.UsedFallback {
		t.Fatalf("expected fallback")
	}
	if len(result.MustHave) != 1 {
		t.Fatalf("expected exactly one must_have entry from domain tags, got %+v", result.MustHave)
	}
	if len(result.ShouldHave) != 1 {
		t.Fatalf("expected remaining domain tag in should_have, got %+v", result.ShouldHave)
	}
	if result.RelatedTerms != nil {
		t.Fatalf("expected empty related_terms on fallback, got %+v", result.RelatedTerms)
	}
}

func TestExpandFallsBackOnMalformedJSON(t *testing.T) {
	gen := &fakeGenerator{jsonResp: "garbage"}
	exp := NewExpander(gen, discardLogger(), nil, false)

	result := exp.Expand(context.Background(), "가공거래", domain.NewSlots(), testVocab())
	if !result.UsedFallback {
		t.Fatalf("expected fallback on malformed JSON")
	}
}
