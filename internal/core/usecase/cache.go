package usecase

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbeddingCache is a process-wide, query-keyed dense-vector cache: an LRU
// keyed by a digest of the normalized query text. Reads only need the cache
// lock; misses compute the embedding outside the lock and install the
// result afterward, so concurrent misses for the same query may each pay
// for one embed call rather than blocking on a single in-flight request.
type EmbeddingCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, []float32]
}

func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 100
	}
	c, _ := lru.New[string, []float32](capacity)
	return &EmbeddingCache{inner: c}
}

// EmbeddingCacheKey digests the normalized query text with blake2b-256.
func EmbeddingCacheKey(normalizedQuery string) string {
	sum := blake2b.Sum256([]byte(normalizedQuery))
	return string(sum[:])
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(key)
}

func (c *EmbeddingCache) Put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, vec)
}

func (c *EmbeddingCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}

// KeywordFreqCache caches §4.6's keyword-frequency aggregation, keyed by the
// sorted doc-id set and sorted keyword set it was computed over.
type KeywordFreqCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, map[string]int]
}

func NewKeywordFreqCache(capacity int) *KeywordFreqCache {
	if capacity <= 0 {
		capacity = 1000
	}
	c, _ := lru.New[string, map[string]int](capacity)
	return &KeywordFreqCache{inner: c}
}

// KeywordFreqCacheKey builds the "(sorted doc_ids|sorted keywords)" key.
func KeywordFreqCacheKey(docIDs, keywords []string) string {
	sortedDocs := append([]string(nil), docIDs...)
	sort.Strings(sortedDocs)
	sortedKeywords := append([]string(nil), keywords...)
	sort.Strings(sortedKeywords)
	return strings.Join(sortedDocs, ",") + "|" + strings.Join(sortedKeywords, ",")
}

func (c *KeywordFreqCache) Get(key string) (map[string]int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	out := make(map[string]int, len(v))
	for k, n := range v {
		out[k] = n
	}
	return out, true
}

func (c *KeywordFreqCache) Put(key string, freq map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]int, len(freq))
	for k, n := range freq {
		cp[k] = n
	}
	c.inner.Add(key, cp)
}

func (c *KeywordFreqCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}
