package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/core/usecase/contextpack"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/metrics"
)

// PipelineConfig bounds the whole-query deadline; every other stage's
// tuning knobs are configured on the stage structs themselves.
type PipelineConfig struct {
	QueryDeadline time.Duration
}

// QueryPipeline wires the ten stages into the single ports.QueryService
// entry point: normalize, classify/extract, expand, route, retrieve
// (finding → chunk → block → pack), compose, validate.
type QueryPipeline struct {
	vocab domain.Vocabulary

	normalizer      *Normalizer
	parser          *Parser
	expander        *Expander
	router          *Router
	findingRetriever *FindingRetriever
	chunkRetriever  *ChunkRetriever
	blockPromoter   *BlockPromoter
	packer          *contextpack.Packer
	composer        *Composer
	validator       *Validator

	freqCache *KeywordFreqCache

	cfg     PipelineConfig
	logger  *slog.Logger
	metrics *metrics.HTTPServerMetrics
	service string
}

// SetMetrics attaches stage-level Prometheus instrumentation. Optional: a
// pipeline built without calling this records no metrics.
func (p *QueryPipeline) SetMetrics(m *metrics.HTTPServerMetrics, service string) {
	p.metrics = m
	p.service = service
}

func NewQueryPipeline(
	vocab domain.Vocabulary,
	normalizer *Normalizer,
	parser *Parser,
	expander *Expander,
	router *Router,
	findingRetriever *FindingRetriever,
	chunkRetriever *ChunkRetriever,
	blockPromoter *BlockPromoter,
	packer *contextpack.Packer,
	composer *Composer,
	validator *Validator,
	freqCache *KeywordFreqCache,
	cfg PipelineConfig,
	logger *slog.Logger,
) *QueryPipeline {
	return &QueryPipeline{
		vocab:            vocab,
		normalizer:       normalizer,
		parser:           parser,
		expander:         expander,
		router:           router,
		findingRetriever: findingRetriever,
		chunkRetriever:   chunkRetriever,
		blockPromoter:    blockPromoter,
		packer:           packer,
		composer:         composer,
		validator:        validator,
		freqCache:        freqCache,
		cfg:              cfg,
		logger:           logger,
	}
}

var _ ports.QueryService = (*QueryPipeline)(nil)

// RunQuery drives a single question through the full pipeline under a
// query-level deadline, returning the validated final answer.
func (p *QueryPipeline) RunQuery(ctx context.Context, text string) (string, error) {
	requestID := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.QueryDeadline)
	defer cancel()

	qc := domain.NewQueryContext(requestID, text)
	log := p.logger.With(slog.String("request_id", requestID))

	p.stage(log, "normalize", func() {
		qc.Normalized = p.normalizer.Normalize(ctx, qc.RawText)
	})

	p.stage(log, "classify_intent", func() {
		qc.Intent = p.parser.ClassifyIntent(qc.Normalized)
	})

	p.stage(log, "extract_slots", func() {
		qc.Slots = p.parser.ExtractSlots(ctx, qc.Normalized)
	})

	if qc.Intent == domain.IntentCaseLookup {
		p.stage(log, "expand", func() {
			qc.Expansion = p.expander.Expand(ctx, qc.Normalized, qc.Slots, p.vocab)
		})
	}

	p.stage(log, "route", func() {
		qc.Route, qc.ClarifyMsg = p.router.Decide(qc.Intent, qc.Slots, qc.Expansion)
	})
	if p.metrics != nil {
		p.metrics.RecordRouteDecision(p.service, string(qc.Route))
	}

	switch qc.Route {
	case domain.RouteClarify:
		// nothing further to do; validator emits qc.ClarifyMsg.
	case domain.RouteExplain:
		p.stage(log, "compose_explanation", func() {
			answer, warnings := p.composer.ComposeExplanation(ctx, qc.Normalized)
			qc.Answer = answer
			for _, w := range warnings {
				qc.AddWarning(w)
			}
		})
	default:
		p.runSearch(ctx, log, qc)
	}

	if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) {
		qc.Err = domain.WrapError(domain.ErrTimeout, "run_query", err)
	}

	answer, err := p.validator.Validate(qc)
	if err != nil {
		log.Error("query_failed", "error", err, "route", qc.Route)
		return "", err
	}
	log.Info("query_completed", "route", qc.Route, "warnings", len(qc.Warnings))
	return answer, nil
}

func (p *QueryPipeline) runSearch(ctx context.Context, log *slog.Logger, qc *domain.QueryContext) {
	p.stage(log, "retrieve_findings", func() {
		result := p.findingRetriever.Retrieve(ctx, qc.Expansion, qc.Slots, p.freqCache)
		qc.FindingHits = result.Hits
		qc.TargetDocIDs = result.TargetDocIDs
		qc.KeywordFreq = result.KeywordFreq
		for _, w := range result.Warnings {
			qc.AddWarning(w)
		}
	})

	if len(qc.FindingHits) == 0 {
		qc.AddWarning(domain.ErrEmptyResults.Error())
		if p.metrics != nil {
			p.metrics.RecordEmptyDocSet()
		}
	}

	findingIDs := make([]string, 0, len(qc.FindingHits))
	for _, h := range qc.FindingHits {
		findingIDs = append(findingIDs, h.FindingID)
	}

	p.stage(log, "retrieve_chunks", func() {
		groups, warnings := p.chunkRetriever.Retrieve(ctx, qc.Normalized, qc.Slots, p.vocab, findingIDs, qc.TargetDocIDs)
		qc.SectionGroups = groups
		for _, w := range warnings {
			qc.AddWarning(w)
		}
	})

	p.stage(log, "promote_blocks", func() {
		sections := requiredSections(qc.Slots)
		ranking, excluded, counts := p.blockPromoter.Promote(sections, qc.SectionGroups, qc.FindingHits, qc.Expansion)
		qc.BlockRanking = ranking
		qc.ExcludedBlocks = excluded
		qc.KeywordBlockCounts = counts
	})

	p.stage(log, "pack_context", func() {
		qc.PackedContext = p.packer.Pack(qc.BlockRanking)
	})

	p.stage(log, "compose", func() {
		answer, warnings := p.composer.Compose(ctx, qc.Normalized, qc.PackedContext, qc.BlockRanking, qc.ExcludedBlocks, qc.Expansion, qc.KeywordBlockCounts)
		qc.Answer = answer
		for _, w := range warnings {
			qc.AddWarning(w)
		}
	})
}

func (p *QueryPipeline) stage(log *slog.Logger, name string, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	log.Debug("stage_completed", "stage", name, "duration_ms", elapsed.Milliseconds())
	if p.metrics != nil {
		p.metrics.RecordStageDuration(p.service, name, elapsed)
	}
}
