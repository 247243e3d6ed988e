package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// LexicalClient implements ports.LexicalStore on top of Qdrant's sparse
// vectors, grounded on sparse_encoder.go's BM25-like term weighting: the
// pack carries no Elasticsearch/OpenSearch client, so the lexical store
// reuses the same Qdrant instance as a second, sparse-indexed collection
// per logical index ("findings_lexical", "chunks_lexical").
type LexicalClient struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewLexicalClient(baseURL string, timeout time.Duration, executor *resilience.Executor) *LexicalClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.Config{BreakerEnabled: false})
	}
	return &LexicalClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

var _ ports.LexicalStore = (*LexicalClient)(nil)

func lexicalCollection(index string) string {
	return index + "_lexical"
}

// textFieldForIndex names the full-text payload field keyword-frequency
// aggregation should match against: findings carry their normalized reason
// text in reason_kw_norm, chunks in text_norm.
func textFieldForIndex(index string) string {
	if index == "findings" {
		return "reason_kw_norm"
	}
	return "text_norm"
}

func (c *LexicalClient) Search(ctx context.Context, index string, query ports.BoolQuery, size int) ([]ports.LexicalHit, error) {
	sparse := encodeSparseBoolQuery(query)
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "sparse_text",
			"vector": map[string]any{"indices": sparse.Indices, "values": sparse.Values},
		},
		"limit":        size,
		"with_payload": true,
	}
	if must := filterClauses(query.Filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/points/search", lexicalCollection(index)), reqBody, &resp); err != nil {
		return nil, err
	}

	out := make([]ports.LexicalHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, ports.LexicalHit{
			ID:     pointIDString(r.ID, r.Payload),
			Score:  r.Score,
			Source: r.Payload,
		})
	}
	return out, nil
}

// AggregateKeywordFrequency runs one concurrent points/count call per
// keyword (§4.6: "a single grouped query"  — grouped over doc_id scope, one
// round trip per keyword, fanned out concurrently rather than serialized).
func (c *LexicalClient) AggregateKeywordFrequency(ctx context.Context, index string, docIDs, keywords []string) (map[string]int, error) {
	if len(docIDs) == 0 || len(keywords) == 0 {
		return map[string]int{}, nil
	}

	field := textFieldForIndex(index)
	collection := lexicalCollection(index)
	counts := make([]int, len(keywords))

	g, gctx := errgroup.WithContext(ctx)
	for i, kw := range keywords {
		i, kw := i, kw
		g.Go(func() error {
			n, err := c.countMatching(gctx, collection, field, kw, docIDs)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate keyword frequency: %w", err)
	}

	out := make(map[string]int, len(keywords))
	for i, kw := range keywords {
		out[kw] = counts[i]
	}
	return out, nil
}

func (c *LexicalClient) countMatching(ctx context.Context, collection, field, keyword string, docIDs []string) (int, error) {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				matchAnyClause("doc_id", docIDs),
				{"key": field, "match": map[string]any{"text": keyword}},
			},
		},
		"exact": true,
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/points/count", collection), reqBody, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (c *LexicalClient) GetByID(ctx context.Context, index string, id string) (map[string]any, error) {
	url := fmt.Sprintf("%s/collections/%s/points/%s", c.baseURL, lexicalCollection(index), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create get-by-id request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant get-by-id request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant get-by-id status: %s", resp.Status)
	}

	var decoded struct {
		Result struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode get-by-id response: %w", err)
	}
	return decoded.Result.Payload, nil
}

func (c *LexicalClient) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	return c.executor.Execute(ctx, path, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrLexicalUnavailable, path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return &statusError{Path: path, StatusCode: resp.StatusCode, Status: resp.Status}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response for %s: %w", path, err)
		}
		return nil
	}, classifyLexicalError)
}
