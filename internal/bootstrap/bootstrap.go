// Package bootstrap wires every concrete adapter into the query pipeline
// behind a single App struct that owns the whole dependency graph and
// exposes one Close for graceful shutdown.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/personal-ai-assistant/internal/config"
	"github.com/kirillkom/personal-ai-assistant/internal/core/usecase"
	"github.com/kirillkom/personal-ai-assistant/internal/core/usecase/contextpack"
	"github.com/kirillkom/personal-ai-assistant/internal/core/vocab"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/cacheinvalidate"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/logging"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/metrics"
)

const serviceName = "tax-case-qa"

// App owns the whole wired dependency graph: the query pipeline itself plus
// every adapter and background loop it needs to run.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Pipeline *usecase.QueryPipeline
	Metrics  *metrics.HTTPServerMetrics

	cacheInvalidator *cacheinvalidate.Publisher
	embedCache       *usecase.EmbeddingCache
	freqCache        *usecase.KeywordFreqCache

	closeFn func()
}

// New resolves config, dials every infrastructure dependency, and wires the
// ten pipeline stages behind a single ports.QueryService.
func New(cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	vocabulary, err := vocab.Load(cfg.VocabPath)
	if err != nil {
		logger.Warn("vocab_load_failed_using_default", "path", cfg.VocabPath, "error", err)
		vocabulary = vocab.Default()
	}

	llmExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: 3,
		BreakerEnabled:   true,
	})
	ollamaClient := ollama.New(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMEmbedModel, cfg.LLMTimeout, llmExecutor)
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	lexicalExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.LexicalRetries,
		BreakerEnabled:   true,
	})
	lexicalClient := qdrant.NewLexicalClient(cfg.LexicalURL, cfg.LexicalTimeout, lexicalExecutor)
	vectorClient := qdrant.New(cfg.VectorURL, cfg.VectorTimeout)

	m := metrics.NewHTTPServerMetrics(serviceName)

	embedCache := usecase.NewEmbeddingCache(cfg.EmbedCacheSize)
	freqCache := usecase.NewKeywordFreqCache(cfg.KeywordFreqCacheSize)

	hybridDeps := usecase.HybridSearchDeps{
		Lexical:    lexicalClient,
		Vector:     vectorClient,
		Embedder:   embedder,
		EmbedCache: embedCache,
		Logger:     logger,
		Metrics:    m,
		Service:    serviceName,
	}

	var roleClassifier *usecase.KeywordRoleClassifier
	if cfg.KeywordRoleClassificationEnabled {
		roleClassifier = usecase.NewKeywordRoleClassifier(generator, logger)
	}

	normalizer := usecase.NewNormalizer(vocabulary, logger)
	parser := usecase.NewParser(vocabulary, generator, logger)
	expander := usecase.NewExpander(generator, logger, roleClassifier, cfg.KeywordRoleClassificationEnabled)
	router := usecase.NewRouter(cfg.ConfidenceThreshold)

	findingRetriever := usecase.NewFindingRetriever(hybridDeps, usecase.FindingRetrieverConfig{
		TopKLex:             cfg.FindingsTopKLex,
		TopKVec:             cfg.FindingsTopKVec,
		RRFK:                cfg.FindingsRRFK,
		FinalTopN:           cfg.FindingsFinalTopN,
		ScoreThreshold:      cfg.VectorScoreThreshold,
		ScoreThresholdMulti: cfg.VectorScoreThresholdMulti,
	})
	chunkRetriever := usecase.NewChunkRetriever(hybridDeps, usecase.ChunkRetrieverConfig{
		TopKLex: cfg.ChunksTopKLex,
		TopKVec: cfg.ChunksTopKVec,
		RRFK:    cfg.FindingsRRFK,
	})
	blockPromoter := usecase.NewBlockPromoter(usecase.BlockPromoterConfig{
		TopKChunks:             cfg.BlockTopKChunks,
		IntersectionMin:        cfg.BlockIntersectionMin,
		FinalTopN:              cfg.BlockFinalTopN,
		MaxBlocksPerDoc:        cfg.MaxBlocksPerDoc,
		SectionWeightFindings:  cfg.SectionWeightFindings,
		SectionWeightTechnique: cfg.SectionWeightTechnique,
	}, logger)
	packer := contextpack.NewPacker(contextpack.WhitespaceTokenEstimator{}, cfg.ContextTokenBudget, cfg.ContextMergeAdjacent)
	composer := usecase.NewComposer(generator, logger)
	validator := usecase.NewValidator()

	pipeline := usecase.NewQueryPipeline(
		vocabulary,
		normalizer,
		parser,
		expander,
		router,
		findingRetriever,
		chunkRetriever,
		blockPromoter,
		packer,
		composer,
		validator,
		freqCache,
		usecase.PipelineConfig{QueryDeadline: cfg.QueryDeadline},
		logger,
	)
	pipeline.SetMetrics(m, serviceName)

	var invalidator *cacheinvalidate.Publisher
	if cfg.CacheInvalidateNATSURL != "" {
		invalidator, err = cacheinvalidate.New(cfg.CacheInvalidateNATSURL, cfg.CacheInvalidateSubject, cacheinvalidate.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, BreakerEnabled: false}),
		})
		if err != nil {
			return nil, fmt.Errorf("init cache-invalidation publisher: %w", err)
		}
	}

	return &App{
		Config:           cfg,
		Logger:           logger,
		Pipeline:         pipeline,
		Metrics:          m,
		cacheInvalidator: invalidator,
		embedCache:       embedCache,
		freqCache:        freqCache,
		closeFn: func() {
			if invalidator != nil {
				invalidator.Close()
			}
		},
	}, nil
}

// CacheInvalidator exposes the optional NATS-backed flush publisher/subscriber,
// nil when no NATS URL is configured.
func (a *App) CacheInvalidator() *cacheinvalidate.Publisher {
	return a.cacheInvalidator
}

// FlushCaches drops every in-process cache; the handler SubscribeFlush calls
// on every received flush notification.
func (a *App) FlushCaches() {
	a.embedCache.Purge()
	a.freqCache.Purge()
	a.Logger.Info("caches_flushed")
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

