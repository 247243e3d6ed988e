package usecase

import "github.com/kirillkom/personal-ai-assistant/internal/core/domain"

// Router decides between clarify, search, and explain per §4.4. The
// must_have-empty gate only applies to case_lookup: explain queries never
// run the expander (§4.3), so must_have is always empty for them and
// checking it there would make explain unreachable.
type Router struct {
	confidenceThreshold float64
}

func NewRouter(confidenceThreshold float64) *Router {
	return &Router{confidenceThreshold: confidenceThreshold}
}

// Decide returns the route and, when the route is clarify, a templated
// message naming the missing slot categories.
func (r *Router) Decide(intent domain.Intent, slots domain.Slots, expansion domain.Expansion) (domain.Route, string) {
	metaEmpty := slots.MetaEmpty()
	lowConfidence := slots.Confidence < r.confidenceThreshold
	mustHaveEmpty := intent == domain.IntentCaseLookup && len(expansion.MustHave) == 0

	if lowConfidence || mustHaveEmpty || metaEmpty {
		return domain.RouteClarify, clarifyMessage(slots, mustHaveEmpty)
	}
	if intent == domain.IntentExplain {
		return domain.RouteExplain, ""
	}
	return domain.RouteSearch, ""
}

func clarifyMessage(slots domain.Slots, mustHaveEmpty bool) string {
	var missing []string
	if len(slots.IndustrySub) == 0 {
		missing = append(missing, "업종(industry_sub)")
	}
	if len(slots.DomainTags) == 0 {
		missing = append(missing, "주제 태그(domain_tags)")
	}
	if len(slots.Code) == 0 {
		missing = append(missing, "세목코드(code)")
	}
	if len(missing) == 0 && mustHaveEmpty {
		missing = append(missing, "검색 키워드")
	}

	msg := "질문이 다소 모호합니다. 다음 중 하나 이상을 포함해 다시 질문해 주세요: "
	for i, m := range missing {
		if i > 0 {
			msg += ", "
		}
		msg += m
	}
	return msg
}
