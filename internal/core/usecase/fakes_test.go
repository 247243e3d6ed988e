package usecase

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// fakeLexicalStore and its siblings below are small hand-written fakes over
// the outbound ports; no mocking framework, just func fields set per test.
type fakeLexicalStore struct {
	searchFunc func(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error)
	aggFunc    func(ctx context.Context, index string, docIDs, keywords []string) (map[string]int, error)
	getFunc    func(ctx context.Context, index, id string) (map[string]any, error)
}

func (f *fakeLexicalStore) Search(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
	if f.searchFunc == nil {
		return nil, nil
	}
	return f.searchFunc(ctx, index, query, size)
}

func (f *fakeLexicalStore) AggregateKeywordFrequency(ctx context.Context, index string, docIDs, keywords []string) (map[string]int, error) {
	if f.aggFunc == nil {
		return nil, nil
	}
	return f.aggFunc(ctx, index, docIDs, keywords)
}

func (f *fakeLexicalStore) GetByID(ctx context.Context, index string, id string) (map[string]any, error) {
	if f.getFunc == nil {
		return nil, nil
	}
	return f.getFunc(ctx, index, id)
}

type fakeVectorStore struct {
	searchFunc func(ctx context.Context, collection string, vec []float32, filter domain.SearchFilter, limit int, threshold float64) ([]ports.VectorHit, error)
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, vec []float32, filter domain.SearchFilter, limit int, threshold float64) ([]ports.VectorHit, error) {
	if f.searchFunc == nil {
		return nil, nil
	}
	return f.searchFunc(ctx, collection, vec, filter, limit, threshold)
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeCacheInvalidator struct {
	published int
	handler   func()
}

func (f *fakeCacheInvalidator) PublishFlush(ctx context.Context) error {
	f.published++
	return nil
}

func (f *fakeCacheInvalidator) SubscribeFlush(ctx context.Context, handler func()) error {
	f.handler = handler
	return nil
}
