package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// citationTagRe matches any rendered domain.Citation.Tag(), e.g.
// "[doc-1:12:40-52]".
var citationTagRe = regexp.MustCompile(`\[[^\[\]]+:[^\[\]]+:[^\[\]]+\]`)

const noCitationNotice = "\n\n_Note: this answer could not be grounded in a specific citation; treat it with caution._"
const degradedBackendNotice = "\n\n_Note: one or more search backends were unavailable during this query; results may be incomplete._"

var storeUnavailableWarnings = map[string]struct{}{
	"lexical store unavailable": {},
	"vector store unavailable":  {},
}

// Validator implements §4.11: the last pipeline stage. It turns a
// query-level timeout into a timed-out message, forwards any other
// non-recoverable error untouched, substitutes a fixed message when
// retrieval found nothing, and appends a grounding warning when an answer
// body carries no inline citation tag despite having source blocks.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(qc *domain.QueryContext) (string, error) {
	if qc.Err != nil {
		if domain.IsKind(qc.Err, domain.ErrTimeout) {
			return "The query timed out before an answer could be produced. Please try again.", nil
		}
		return "", qc.Err
	}

	switch qc.Route {
	case domain.RouteClarify:
		return qc.ClarifyMsg, nil
	case domain.RouteExplain:
		return qc.Answer, nil
	default:
		return v.validateSearchAnswer(qc), nil
	}
}

func (v *Validator) validateSearchAnswer(qc *domain.QueryContext) string {
	degraded := hasStoreUnavailableWarning(qc.Warnings)

	if len(qc.BlockRanking) == 0 {
		if degraded {
			return noResultsDegradedMessage(qc.Expansion)
		}
		return noMatchingCasesMessage(qc.Expansion)
	}

	answer := qc.Answer
	if !citationTagRe.MatchString(answer) {
		answer += noCitationNotice
	}
	if degraded {
		answer += degradedBackendNotice
	}
	return answer
}

func hasStoreUnavailableWarning(warnings []string) bool {
	for _, w := range warnings {
		if _, ok := storeUnavailableWarnings[w]; ok {
			return true
		}
	}
	return false
}

func noMatchingCasesMessage(expansion domain.Expansion) string {
	if len(expansion.MustHave) == 0 {
		return "No matching cases were found."
	}
	return fmt.Sprintf("No matching cases were found for: %s.", strings.Join(expansion.MustHave, ", "))
}

// noResultsDegradedMessage distinguishes the case where no results came back
// because a backend was down from the case where the search genuinely found
// nothing (noMatchingCasesMessage).
func noResultsDegradedMessage(expansion domain.Expansion) string {
	if len(expansion.MustHave) == 0 {
		return "No results are available: one or more search backends were unavailable."
	}
	return fmt.Sprintf("No results are available for: %s. One or more search backends were unavailable.", strings.Join(expansion.MustHave, ", "))
}
