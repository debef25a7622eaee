package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kemingtech/catalog-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL      string
	genModel     string
	embedModel   string
	httpClient   *http.Client
	executor     *resilience.Executor
	embedTimeout time.Duration
	genTimeout   time.Duration
}

type Options struct {
	EmbedTimeout time.Duration
	GenTimeout   time.Duration
	Executor     *resilience.Executor
}

func New(baseURL, genModel, embedModel string, options Options) *Client {
	embedTimeout := options.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	genTimeout := options.GenTimeout
	if genTimeout <= 0 {
		genTimeout = 120 * time.Second
	}
	executor := options.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), nil)
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		genModel:     genModel,
		embedModel:   embedModel,
		httpClient:   &http.Client{},
		executor:     executor,
		embedTimeout: embedTimeout,
		genTimeout:   genTimeout,
	}
}

// Embedder implements the embedding capability over /api/embed.
// Each call is bounded by the configured embed timeout.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.executor.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.client.embedTimeout)
		defer cancel()
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Generator implements the text-generation capability over
// /api/generate. Each call is bounded by the configured generation
// timeout; a timeout surfaces as an error, never a hang.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := g.client.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.client.genTimeout)
		defer cancel()
		return g.client.postJSON(callCtx, "/api/generate", request, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
