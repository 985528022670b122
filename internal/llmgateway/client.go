// Package llmgateway implements the chat-completions boundary described
// in SPEC_FULL.md §4.1: plain, tool-calling, and structured-output asks
// over an OpenAI-compatible endpoint, with per-session token accounting,
// bounded retries on rate limits, and one retry on transport failures.
package llmgateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// DefaultMaxCompletionTokens is forwarded whenever a caller leaves
// max_completion_tokens unset — the gateway never sends a null value.
const DefaultMaxCompletionTokens = 1024

// maxRateLimitRetries bounds how many times a 429 is retried before the
// call surfaces as a ProviderError.
const maxRateLimitRetries = 2

// Client is the production contracts.LLMGateway backed by go-openai.
type Client struct {
	counter   contracts.TokenCounter
	sessionID string
	newClient func(setting models.Setting) *openai.Client
}

// New builds a Client scoped to a single turn's session id. The session
// id is fixed for the lifetime of the Client and every Ask* call records
// usage under it.
func New(counter contracts.TokenCounter, sessionID string) *Client {
	return &Client{
		counter:   counter,
		sessionID: sessionID,
		newClient: newOpenAIClient,
	}
}

func newOpenAIClient(setting models.Setting) *openai.Client {
	cfg := openai.DefaultConfig(setting.ChatAPIKey)
	if setting.ChatBaseURL != "" {
		cfg.BaseURL = setting.ChatBaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) recordUsage(usage openai.Usage) {
	c.counter.RecordUsage(c.sessionID, usage.PromptTokens, usage.CompletionTokens)
}

func maxTokens(setting models.Setting) int {
	_ = setting // reserved for a future per-setting override
	return DefaultMaxCompletionTokens
}

// Ask performs a plain completion over messages and returns its text.
func (c *Client) Ask(ctx context.Context, setting models.Setting, messages []models.ChatMessage) (contracts.AskResult, error) {
	client := c.newClient(setting)
	req := openai.ChatCompletionRequest{
		Model:               setting.ChatModel,
		Messages:            toOpenAIMessages(messages),
		Temperature:         setting.Temperature,
		TopP:                setting.TopP,
		MaxCompletionTokens: maxTokens(setting),
	}

	resp, err := c.completeWithRetry(ctx, client, req)
	if err != nil {
		return contracts.AskResult{}, err
	}
	c.recordUsage(resp.Usage)

	if len(resp.Choices) == 0 {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "no choices returned"}
	}
	return contracts.AskResult{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// AskWithTools performs a completion the model may answer by invoking one
// of tools instead of replying with plain text.
func (c *Client) AskWithTools(ctx context.Context, setting models.Setting, messages []models.ChatMessage, tools []contracts.ToolSpec) (contracts.AskResult, error) {
	client := c.newClient(setting)
	req := openai.ChatCompletionRequest{
		Model:               setting.ChatModel,
		Messages:            toOpenAIMessages(messages),
		Temperature:         setting.Temperature,
		TopP:                setting.TopP,
		MaxCompletionTokens: maxTokens(setting),
		Tools:               toOpenAITools(tools),
	}

	resp, err := c.completeWithRetry(ctx, client, req)
	if err != nil {
		return contracts.AskResult{}, err
	}
	c.recordUsage(resp.Usage)

	if len(resp.Choices) == 0 {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "no choices returned"}
	}
	msg := resp.Choices[0].Message

	result := contracts.AskResult{
		Content:      msg.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		result.ToolCalls = append(result.ToolCalls, contracts.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return result, nil
}

// AskStructured performs a completion constrained to schema and unmarshals
// the result into out, re-asking once on a parse failure before giving up
// with a BadResponseError.
func (c *Client) AskStructured(ctx context.Context, setting models.Setting, messages []models.ChatMessage, schemaName string, schema map[string]interface{}, out interface{}) (contracts.AskResult, error) {
	client := c.newClient(setting)
	req := openai.ChatCompletionRequest{
		Model:               setting.ChatModel,
		Messages:            toOpenAIMessages(messages),
		Temperature:         setting.Temperature,
		TopP:                setting.TopP,
		MaxCompletionTokens: maxTokens(setting),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: jsonSchemaMarshaler(schema),
				Strict: true,
			},
		},
	}

	resp, err := c.completeWithRetry(ctx, client, req)
	if err != nil {
		return contracts.AskResult{}, err
	}
	c.recordUsage(resp.Usage)

	if len(resp.Choices) == 0 {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "no choices returned"}
	}
	content := resp.Choices[0].Message.Content
	if json.Unmarshal([]byte(content), out) == nil {
		return contracts.AskResult{
			Content:      content,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}, nil
	}

	// Repair attempt: append a system note and re-ask exactly once.
	repairMessages := append(append([]models.ChatMessage{}, messages...), models.ChatMessage{
		Role:    models.RoleSystem,
		Content: "your last response was not valid JSON for this schema",
	})
	req.Messages = toOpenAIMessages(repairMessages)
	resp, err = c.completeWithRetry(ctx, client, req)
	if err != nil {
		return contracts.AskResult{}, err
	}
	c.recordUsage(resp.Usage)
	if len(resp.Choices) == 0 {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "no choices returned on repair attempt"}
	}
	content = resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "structured output did not parse after repair: " + err.Error()}
	}
	return contracts.AskResult{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// completeWithRetry performs req, retrying rate-limit failures with
// exponential backoff up to maxRateLimitRetries times and a transport
// failure once.
func (c *Client) completeWithRetry(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRateLimitRetries)
	bo = backoff.WithContext(bo, ctx)

	transportRetried := false
	op := func() error {
		r, err := client.CreateChatCompletion(ctx, req)
		if err == nil {
			resp = r
			return nil
		}

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.HTTPStatusCode == 429:
				return err // retryable
			case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
				return backoff.Permanent(&models.ProviderError{Provider: "openai", Reason: "authentication failed: " + apiErr.Message})
			case apiErr.HTTPStatusCode >= 500:
				return backoff.Permanent(&models.ProviderError{Provider: "openai", Reason: apiErr.Message})
			}
			return backoff.Permanent(&models.ProviderError{Provider: "openai", Reason: apiErr.Message})
		}
		if !transportRetried {
			transportRetried = true
			return &models.TransportError{Provider: "openai", Err: err} // retryable once
		}
		return backoff.Permanent(&models.TransportError{Provider: "openai", Err: err})
	}

	if err := backoff.Retry(op, bo); err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return resp, &models.ProviderError{Provider: "openai", Reason: "rate limit retries exhausted: " + apiErr.Message}
		}
		return resp, err
	}
	return resp, nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func toOpenAITools(tools []contracts.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// jsonSchemaMarshaler adapts a plain map into go-openai's
// json.Marshaler-satisfying schema type.
type jsonSchemaMarshaler map[string]interface{}

func (s jsonSchemaMarshaler) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}
