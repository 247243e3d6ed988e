package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

func normalizerTestVocab() domain.Vocabulary {
	return domain.Vocabulary{
		Abbreviations: map[string]string{"VAT": "부가가치세"},
		Stopwords:     map[string]struct{}{"사례": {}},
	}
}

func TestNormalizeMasksResidentRegistrationNumber(t *testing.T) {
	n := NewNormalizer(normalizerTestVocab(), discardLogger())

	got := n.Normalize(context.Background(), "주민번호 901231-1234567 고객의 사례")
	if got == "주민번호 901231-1234567 고객의 사례" {
		t.Fatalf("expected resident registration number to be masked, got %q", got)
	}
	if !strings.Contains(got, "[주민번호]") {
		t.Fatalf("expected masked placeholder in %q", got)
	}
}

func TestNormalizeExpandsAbbreviations(t *testing.T) {
	n := NewNormalizer(normalizerTestVocab(), discardLogger())

	got := n.Normalize(context.Background(), "VAT 환급 문의")
	if !strings.Contains(got, "부가가치세") {
		t.Fatalf("expected VAT expanded to 부가가치세, got %q", got)
	}
}

func TestNormalizeRemovesStopwords(t *testing.T) {
	n := NewNormalizer(normalizerTestVocab(), discardLogger())

	got := n.Normalize(context.Background(), "제조업 매출누락 사례 알려줘")
	if strings.Contains(got, "사례") {
		t.Fatalf("expected stopword 사례 removed, got %q", got)
	}
}

func TestNormalizeFallsBackToTrimmedInputWhenResultIsEmpty(t *testing.T) {
	vocab := domain.Vocabulary{Stopwords: map[string]struct{}{"사례": {}}}
	n := NewNormalizer(vocab, discardLogger())

	got := n.Normalize(context.Background(), "  사례  ")
	if got != "사례" {
		t.Fatalf("expected fallback to trimmed raw input, got %q", got)
	}
}
