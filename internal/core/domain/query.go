package domain

import "sort"

// Intent classifies what kind of answer the user wants.
type Intent string

const (
	IntentCaseLookup Intent = "case_lookup"
	IntentExplain    Intent = "explain"
)

// Route is the router's decision over a QueryContext.
type Route string

const (
	RouteClarify Route = "clarify"
	RouteSearch  Route = "search"
	RouteExplain Route = "explain"
)

// Slots are the structured facts the parser extracted from a query,
// produced either by the LLM or by the rule-based fallback extractor.
type Slots struct {
	IndustrySub   map[string]struct{}
	DomainTags    map[string]struct{}
	Code          map[string]struct{}
	Entities      map[string]struct{}
	SectionHints  map[Section][]string
	FreeText      string
	Confidence    float64
	UsedFallback  bool
}

// NewSlots returns an empty, non-nil Slots value.
func NewSlots() Slots {
	return Slots{
		IndustrySub:  make(map[string]struct{}),
		DomainTags:   make(map[string]struct{}),
		Code:         make(map[string]struct{}),
		Entities:     make(map[string]struct{}),
		SectionHints: make(map[Section][]string),
	}
}

// MetaEmpty reports whether industry_sub, domain_tags and code are all
// unpopulated (entities are not considered), the router's
// "industry_sub, domain_tags, code all empty" test.
func (s Slots) MetaEmpty() bool {
	return len(s.IndustrySub) == 0 && len(s.DomainTags) == 0 && len(s.Code) == 0
}

// DomainTagList returns the domain tags in sorted order, so callers that
// depend on a stable first element (e.g. the expander's must_have fallback)
// get the same result on every call regardless of map iteration order.
func (s Slots) DomainTagList() []string {
	out := make([]string, 0, len(s.DomainTags))
	for tag := range s.DomainTags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// KeywordRole classifies an expanded keyword as describing the query's
// setting (context) or the thing being asked about (target). Supplemental
// to the core must_have/should_have split; used only when keyword-role
// classification is enabled.
type KeywordRole string

const (
	KeywordRoleContext KeywordRole = "context"
	KeywordRoleTarget  KeywordRole = "target"
)

// Expansion is the expander's output: keyword sets and boost weights driving
// stage-1/stage-2 query construction.
type Expansion struct {
	// MustHave is ordered: index 0 is the document-level keyword, the rest
	// are block-level filters.
	MustHave     []string
	ShouldHave   []string
	RelatedTerms []string
	BoostWeights map[string]float64
	// KeywordRoles is populated only when keyword-role classification is
	// enabled; absent keywords are treated as unclassified.
	KeywordRoles map[string]KeywordRole
	UsedFallback bool
}

// DocumentKeyword returns must_have[0], or "" if empty.
func (e Expansion) DocumentKeyword() string {
	if len(e.MustHave) == 0 {
		return ""
	}
	return e.MustHave[0]
}

// BlockKeywords returns must_have[1:].
func (e Expansion) BlockKeywords() []string {
	if len(e.MustHave) < 2 {
		return nil
	}
	return e.MustHave[1:]
}

// QueryContext is the single mutable value threaded through the pipeline.
// Each stage reads the fields prior stages wrote and writes only its own.
type QueryContext struct {
	RequestID   string
	RawText     string
	Normalized  string
	Intent      Intent
	Slots       Slots
	Expansion   Expansion
	Route       Route
	ClarifyMsg  string

	TargetDocIDs    []string
	KeywordFreq     map[string]int
	FindingHits     []FindingHit
	SectionGroups   map[Section][]ChunkHit
	BlockRanking    []RankedBlock
	ExcludedBlocks  []RankedBlock
	KeywordBlockCounts map[string]int

	PackedContext PackedContext

	Answer string
	// Err is set when the query deadline was exceeded (ErrTimeout kind, which
	// the validator turns into a timed-out answer) or when a non-recoverable
	// failure occurred; every other failure is absorbed into Answer by the
	// validator.
	Err error

	// Warnings accumulates recovered-degradation notices (e.g. "vector
	// store unavailable") surfaced to the validator.
	Warnings []string
}

func NewQueryContext(requestID, rawText string) *QueryContext {
	return &QueryContext{
		RequestID:     requestID,
		RawText:       rawText,
		Slots:         NewSlots(),
		SectionGroups: make(map[Section][]ChunkHit),
	}
}

func (qc *QueryContext) AddWarning(msg string) {
	qc.Warnings = append(qc.Warnings, msg)
}
