package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// Client is the dense-vector backend adapter: one Qdrant instance hosting
// the findings_vectors and chunks_vectors collections named in §4.6/§4.7.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ ports.VectorStore = (*Client)(nil)

// Search implements ports.VectorStore against a single named collection,
// translating domain.SearchFilter into Qdrant's must-clause filter DSL and
// applying a server-side score threshold.
func (c *Client) Search(ctx context.Context, collection string, queryVector []float32, filter domain.SearchFilter, limit int, scoreThreshold float64) ([]ports.VectorHit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		reqBody["score_threshold"] = scoreThreshold
	}
	if must := filterClauses(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]ports.VectorHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, ports.VectorHit{
			ID:      pointIDString(r.ID, r.Payload),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return out, nil
}

// pointIDString prefers the payload's business-level id (finding_id/
// chunk_id) over Qdrant's internal point id, since the rest of the pipeline
// addresses hits by that id.
func pointIDString(pointID any, payload map[string]any) string {
	for _, key := range []string{"finding_id", "chunk_id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("%v", pointID)
}

func filterClauses(filter domain.SearchFilter) []map[string]any {
	var must []map[string]any
	if len(filter.DocIDs) > 0 {
		must = append(must, matchAnyClause("doc_id", filter.DocIDs))
	}
	if len(filter.FindingIDs) > 0 {
		must = append(must, matchAnyClause("finding_id", filter.FindingIDs))
	}
	if filter.Section != "" {
		must = append(must, map[string]any{"key": "section", "match": map[string]any{"value": string(filter.Section)}})
	}
	if len(filter.Code) > 0 {
		must = append(must, matchAnyClause("code", filter.Code))
	}
	if len(filter.IndustrySub) > 0 {
		must = append(must, matchAnyClause("industry_sub", filter.IndustrySub))
	}
	if len(filter.DomainTags) > 0 {
		must = append(must, matchAnyClause("domain_tags", filter.DomainTags))
	}
	return must
}

func matchAnyClause(key string, values []string) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"any": values}}
}
