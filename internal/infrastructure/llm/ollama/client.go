package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// requestsPerSecond caps how often this process hits a single, usually
// locally-hosted, Ollama instance; concurrent pipeline runs would otherwise
// queue every generate/embed call behind the same GPU without limit.
const requestsPerSecond = 8

// Client is the raw Ollama HTTP transport shared by Generator and Embedder.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

func New(baseURL, genModel, embedModel string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// Generator adapts Client to ports.Generator.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

var _ ports.Generator = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return g.client.generate(ctx, "generate", map[string]any{
		"model":   g.client.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": map[string]any{"temperature": temperature},
	})
}

func (g *Generator) GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	return g.client.generate(ctx, "generate_json", map[string]any{
		"model":   g.client.genModel,
		"prompt":  prompt,
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": temperature},
	})
}

// Embedder adapts Client to ports.Embedder.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

var _ ports.Embedder = (*Embedder)(nil)

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.client.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit wait: %w", err)
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	op := "embed"
	err := e.client.executor.Execute(ctx, op, func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, op)
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(op, err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) generate(ctx context.Context, op string, reqBody map[string]any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s rate limit wait: %w", op, err)
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, op, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, op)
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(op, err)
	}
	return strings.TrimSpace(response.Response), nil
}
