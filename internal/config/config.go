// Package config loads the query pipeline's tuning surface from the
// environment: every field has a sensible default, and Load returns an
// error only when a present override fails to parse.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	LogLevel string

	HTTPAddr    string
	MetricsAddr string
	MCPEnabled  bool
	MCPAddr     string

	LLMBaseURL    string
	LLMModel      string
	LLMEmbedModel string

	LexicalURL string

	VectorURL string

	VocabPath string

	FindingsTopKLex   int
	FindingsTopKVec   int
	FindingsRRFK      int
	FindingsFinalTopN int

	ChunksTopKLex int
	ChunksTopKVec int

	BlockTopKChunks      int
	BlockIntersectionMin int
	BlockFinalTopN       int
	MaxBlocksPerDoc      int

	VectorScoreThreshold      float64
	VectorScoreThresholdMulti float64

	ConfidenceThreshold float64

	ContextTokenBudget   int
	ContextMergeAdjacent bool

	SectionWeightFindings  float64
	SectionWeightTechnique float64

	QueryDeadline  time.Duration
	LLMTimeout     time.Duration
	LexicalTimeout time.Duration
	LexicalRetries int
	VectorTimeout  time.Duration

	EmbedCacheSize       int
	KeywordFreqCacheSize int

	CacheInvalidateNATSURL string
	CacheInvalidateSubject string

	KeywordRoleClassificationEnabled bool
}

// Load reads every configuration key from the environment. It returns an
// error only when a present override fails to parse; an unset key never
// errors.
func Load() (Config, error) {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	intv := func(key string, fallback int) int {
		v, err := mustEnvInt(key, fallback)
		note(err)
		return v
	}
	floatv := func(key string, fallback float64) float64 {
		v, err := mustEnvFloat(key, fallback)
		note(err)
		return v
	}
	boolv := func(key string, fallback bool) bool {
		v, err := mustEnvBool(key, fallback)
		note(err)
		return v
	}
	durv := func(key string, fallback time.Duration) time.Duration {
		v, err := mustEnvDuration(key, fallback)
		note(err)
		return v
	}

	cfg := Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		HTTPAddr:    mustEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: mustEnv("METRICS_ADDR", ":9090"),
		MCPEnabled:  boolv("MCP_ENABLED", false),
		MCPAddr:     mustEnv("MCP_ADDR", ":8081"),

		LLMBaseURL:    mustEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMModel:      mustEnv("LLM_MODEL", "gemma3:12b"),
		LLMEmbedModel: mustEnv("LLM_EMBED_MODEL", "bge-m3"),

		// LexicalURL speaks to the same Qdrant-flavored REST API as VectorURL
		// (sparse vectors in a "<index>_lexical" collection rather than a
		// separate Elasticsearch/OpenSearch cluster); it defaults to the same
		// instance and is only split out for operators who run lexical and
		// dense search on separate Qdrant deployments.
		LexicalURL: mustEnv("LEXICAL_URL", "http://localhost:6333"),

		VectorURL: mustEnv("VECTOR_URL", "http://localhost:6333"),

		VocabPath: mustEnv("VOCAB_PATH", "./config/vocabulary.yaml"),

		FindingsTopKLex:   intv("FINDINGS_TOP_K_LEX", 150),
		FindingsTopKVec:   intv("FINDINGS_TOP_K_VEC", 150),
		FindingsRRFK:      intv("FINDINGS_RRF_K", 60),
		FindingsFinalTopN: intv("FINDINGS_FINAL_TOP_N", 30),

		ChunksTopKLex: intv("CHUNKS_TOP_K_LEX", 300),
		ChunksTopKVec: intv("CHUNKS_TOP_K_VEC", 300),

		BlockTopKChunks:      intv("BLOCK_TOP_K_CHUNKS", 3),
		BlockIntersectionMin: intv("BLOCK_INTERSECTION_MIN", 2),
		BlockFinalTopN:       intv("BLOCK_FINAL_TOP_N", 3),
		MaxBlocksPerDoc:      intv("MAX_BLOCKS_PER_DOC", 2),

		VectorScoreThreshold:      floatv("VECTOR_SCORE_THRESHOLD", 0.35),
		VectorScoreThresholdMulti: floatv("VECTOR_SCORE_THRESHOLD_MULTI", 0.65),

		ConfidenceThreshold: floatv("CONFIDENCE_THRESHOLD", 0.4),

		ContextTokenBudget:   intv("CONTEXT_TOKEN_BUDGET", 4000),
		ContextMergeAdjacent: boolv("CONTEXT_MERGE_ADJACENT", true),

		SectionWeightFindings:  floatv("SECTION_WEIGHT_FINDINGS", 0.5),
		SectionWeightTechnique: floatv("SECTION_WEIGHT_TECHNIQUE", 0.5),

		QueryDeadline:  durv("QUERY_DEADLINE", 90*time.Second),
		LLMTimeout:     durv("LLM_TIMEOUT", 60*time.Second),
		LexicalTimeout: durv("LEXICAL_TIMEOUT", 30*time.Second),
		LexicalRetries: intv("LEXICAL_RETRIES", 3),
		VectorTimeout:  durv("VECTOR_TIMEOUT", 10*time.Second),

		EmbedCacheSize:       intv("EMBED_CACHE_SIZE", 100),
		KeywordFreqCacheSize: intv("KEYWORD_FREQ_CACHE_SIZE", 1000),

		CacheInvalidateNATSURL: mustEnv("CACHE_INVALIDATE_NATS_URL", "nats://localhost:4222"),
		CacheInvalidateSubject: mustEnv("CACHE_INVALIDATE_SUBJECT", "cache.invalidate"),

		KeywordRoleClassificationEnabled: boolv("KEYWORD_ROLE_CLASSIFICATION_ENABLED", false),
	}

	if firstErr != nil {
		return Config{}, fmt.Errorf("load config: %w", firstErr)
	}
	return cfg, nil
}

func mustEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("parse %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func mustEnvFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("parse %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func mustEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("parse %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func mustEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("parse %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}
