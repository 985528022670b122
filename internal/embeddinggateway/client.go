// Package embeddinggateway implements the text-embeddings boundary
// described in SPEC_FULL.md §4.2: batched requests to an OpenAI-compatible
// embeddings endpoint, with a strict dimension check against the caller's
// declared vector_dim.
package embeddinggateway

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentoven/agent-runtime/pkg/models"
)

// DefaultBatchSize bounds how many texts are sent per embeddings request.
const DefaultBatchSize = 100

// Option configures a Client.
type Option func(*Client)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// Client is the production contracts.EmbeddingGateway backed by go-openai.
type Client struct {
	batchSize int
	newClient func(setting models.Setting) *openai.Client
}

// New builds a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		batchSize: DefaultBatchSize,
		newClient: newOpenAIClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newOpenAIClient(setting models.Setting) *openai.Client {
	cfg := openai.DefaultConfig(setting.EmbeddingAPIKey)
	if setting.EmbeddingBaseURL != "" {
		cfg.BaseURL = setting.EmbeddingBaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Embed returns one vector per input text, in order, batching internally
// when len(texts) exceeds the configured batch size. Every returned
// vector's length is checked against setting.VectorDim.
func (c *Client) Embed(ctx context.Context, setting models.Setting, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client := c.newClient(setting)

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: batch,
			Model: openai.EmbeddingModel(setting.EmbeddingModel),
		})
		if err != nil {
			return nil, &models.TransportError{Provider: "openai-embeddings", Err: err}
		}
		if len(resp.Data) != len(batch) {
			return nil, &models.ProviderError{Provider: "openai-embeddings", Reason: "embedding count did not match input count"}
		}
		for _, d := range resp.Data {
			vec := make([]float64, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float64(v)
			}
			if setting.VectorDim > 0 && len(vec) != setting.VectorDim {
				return nil, &models.DimensionMismatchError{Want: setting.VectorDim, Got: len(vec)}
			}
			out = append(out, vec)
		}
	}
	return out, nil
}
