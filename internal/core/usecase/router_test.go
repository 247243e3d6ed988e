package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

func TestRouterClarifiesOnLowConfidence(t *testing.T) {
	r := NewRouter(0.4)
	slots := domain.NewSlots()
	slots.Confidence = 0.2
	slots.DomainTags["가공거래"] = struct{}{}

	route, msg := r.Decide(domain.IntentCaseLookup, slots, domain.Expansion{MustHave: []string{"가공거래"}})
	if route != domain.RouteClarify {
		t.Fatalf("expected clarify, got %v", route)
	}
	if msg == "" {
		t.Fatalf("expected non-empty clarify message")
	}
}

func TestRouterClarifiesOnEmptyMetaSlots(t *testing.T) {
	r := NewRouter(0.4)
	slots := domain.NewSlots()
	slots.Confidence = 0.9

	route, msg := r.Decide(domain.IntentCaseLookup, slots, domain.Expansion{MustHave: []string{"x"}})
	if route != domain.RouteClarify {
		t.Fatalf("expected clarify when industry/domain/code all empty, got %v", route)
	}
	if !strings.Contains(msg, "업종") {
		t.Fatalf("expected message to name missing industry, got %q", msg)
	}
}

func TestRouterClarifiesOnEmptyMustHave(t *testing.T) {
	r := NewRouter(0.4)
	slots := domain.NewSlots()
	slots.Confidence = 0.9
	slots.DomainTags["가공거래"] = struct{}{}

	route, _ := r.Decide(domain.IntentCaseLookup, slots, domain.Expansion{})
	if route != domain.RouteClarify {
		t.Fatalf("expected clarify when must_have empty for case_lookup, got %v", route)
	}
}

func TestRouterSearchesOnWellFormedCaseLookup(t *testing.T) {
	r := NewRouter(0.4)
	slots := domain.NewSlots()
	slots.Confidence = 0.9
	slots.DomainTags["가공거래"] = struct{}{}

	route, _ := r.Decide(domain.IntentCaseLookup, slots, domain.Expansion{MustHave: []string{"가공거래"}})
	if route != domain.RouteSearch {
		t.Fatalf("expected search, got %v", route)
	}
}

func TestRouterExplainsDespiteEmptyExpansion(t *testing.T) {
	r := NewRouter(0.4)
	slots := domain.NewSlots()
	slots.Confidence = 0.9
	slots.DomainTags["가공거래"] = struct{}{}

	route, _ := r.Decide(domain.IntentExplain, slots, domain.Expansion{})
	if route != domain.RouteExplain {
		t.Fatalf("expected explain route even with empty expansion, got %v", route)
	}
}
