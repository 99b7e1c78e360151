// Package openai adapts any OpenAI-compatible API (OpenAI, Nebius, vLLM, LM Studio) for embeddings and answers.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/resilience"
)

type Config struct {
	APIKey      string
	BaseURL     string
	EmbedModel  string
	GenModel    string
	Temperature float32
	MaxTokens   int
}

type Client struct {
	api      *openai.Client
	cfg      Config
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		api:      openai.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		executor: executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Model() string {
	return e.client.cfg.EmbedModel
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := e.client.execute(ctx, "embed", func(callCtx context.Context) error {
		var err error
		resp, err = e.client.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input:          texts,
			Model:          openai.EmbeddingModel(e.client.cfg.EmbedModel),
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Model() string {
	return g.client.cfg.GenModel
}

func (g *Generator) GenerateAnswer(ctx context.Context, req domain.GenerationRequest) (string, error) {
	var resp openai.ChatCompletionResponse
	err := g.client.execute(ctx, "generate", func(callCtx context.Context) error {
		var err error
		resp, err = g.client.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: g.client.cfg.GenModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: prompt.System()},
				{Role: openai.ChatMessageRoleUser, Content: prompt.Build(req)},
			},
			Temperature: g.client.cfg.Temperature,
			MaxTokens:   g.client.cfg.MaxTokens,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Probe verifies the API answers and, when it lists models, that the generation model is among them.
func (g *Generator) Probe(ctx context.Context) error {
	var list openai.ModelsList
	err := g.client.execute(ctx, "list models", func(callCtx context.Context) error {
		var err error
		list, err = g.client.api.ListModels(callCtx)
		return err
	})
	if err != nil {
		return err
	}
	if len(list.Models) == 0 {
		return nil
	}
	for _, m := range list.Models {
		if m.ID == g.client.cfg.GenModel {
			return nil
		}
	}
	return fmt.Errorf("openai model %q is not available", g.client.cfg.GenModel)
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := c.executor.Execute(ctx, "openai."+operation, fn, classifyOpenAIError)
	if err != nil {
		return resilience.WrapTemporary("openai "+operation, fmt.Errorf("openai %s: %w", operation, err), classifyOpenAIError)
	}
	return nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if status := statusCode(err); status != 0 {
		return resilience.ClassifyHTTPError(&resilience.HTTPStatusError{
			Provider:   "openai",
			StatusCode: status,
			Status:     http.StatusText(status),
		})
	}
	return resilience.ClassifyHTTPError(err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
