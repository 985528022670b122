// Package contracts defines the service interfaces that the orchestrator,
// agents, and HTTP handlers depend on. Each interface has one concrete
// production implementation; LLMGateway, EmbeddingGateway, and
// VectorStoreDriver also have an in-memory test double.
package contracts

import (
	"context"

	"github.com/agentoven/agent-runtime/pkg/models"
)

// ── LLM Gateway ──────────────────────────────────────────────

// ToolSpec describes a callable tool surfaced to the LLM in a tool-calling
// request, in OpenAI function-calling shape.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// ToolCall is one tool invocation the model asked for.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// AskResult is the outcome of a plain or tool-calling LLM call.
type AskResult struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// LLMGateway is the boundary to a chat-completions provider.
// Production implementation: internal/llmgateway.Client (go-openai backed).
// Test double: internal/llmgateway.Stub.
type LLMGateway interface {
	// Ask performs a plain completion and returns its text. The session a
	// call belongs to is bound into the gateway at construction time, not
	// passed per call.
	Ask(ctx context.Context, setting models.Setting, messages []models.ChatMessage) (AskResult, error)

	// AskWithTools performs a completion the model may answer by calling
	// one of the supplied tools instead of replying directly.
	AskWithTools(ctx context.Context, setting models.Setting, messages []models.ChatMessage, tools []ToolSpec) (AskResult, error)

	// AskStructured performs a completion constrained to the given JSON
	// schema and unmarshals the result into out.
	AskStructured(ctx context.Context, setting models.Setting, messages []models.ChatMessage, schemaName string, schema map[string]interface{}, out interface{}) (AskResult, error)
}

// ── Embedding Gateway ────────────────────────────────────────

// EmbeddingGateway is the boundary to a text-embeddings provider.
// Production implementation: internal/embeddinggateway.Client (go-openai backed).
type EmbeddingGateway interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, setting models.Setting, texts []string) ([][]float64, error)
}

// ── Vector Store ─────────────────────────────────────────────

// VectorMatch is one scored hit from a similarity query.
type VectorMatch struct {
	Feedback models.Feedback
	Score    float64
}

// VectorStoreDriver is the boundary to the feedback vector index.
// Production implementation: internal/vectorstore.WeaviateDriver.
// Test double: internal/vectorstore.MemoryDriver.
type VectorStoreDriver interface {
	// EnsureCollection creates the named collection if absent, or verifies
	// its existing vector dimension matches dim.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// Insert adds feedbacks (each already carrying its Vector) and returns
	// their assigned IDs, one per input, in order.
	Insert(ctx context.Context, collection string, feedbacks []models.Feedback) ([]string, error)

	// Query returns the topK nearest feedbacks to vector, optionally
	// restricted to entries whose Tags() contain every tag in filterTags.
	Query(ctx context.Context, collection string, vector []float64, topK int, filterTags []string) ([]VectorMatch, error)

	// List returns a paginated scan of the collection: up to limit
	// feedbacks starting at offset, in storage order.
	List(ctx context.Context, collection string, offset, limit int) ([]models.Feedback, error)

	// DeleteAll removes every object in the collection but keeps the
	// collection (and its schema) in place.
	DeleteAll(ctx context.Context, collection string) error

	// DropCollection removes the collection entirely, schema included.
	DropCollection(ctx context.Context, collection string) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Token Counter ────────────────────────────────────────────

// TokenCounter is the process-wide, session-scoped usage registry.
// Production implementation: internal/tokencount.Registry.
type TokenCounter interface {
	// RecordUsage adds input/output tokens to sessionID's running total,
	// creating the session entry if it doesn't exist (evicting the oldest
	// entry first if the registry is at capacity).
	RecordUsage(sessionID string, inputTokens, outputTokens int)

	// Usage returns the current totals for sessionID.
	Usage(sessionID string) models.TokenUsage
}

// ── Action Executor ──────────────────────────────────────────

// ActionExecutor runs a selected Action (built-in send_message_to_user or
// a caller-supplied RequestTool) and produces its Result.
// Production implementation: internal/actionexecutor.Executor.
type ActionExecutor interface {
	Execute(ctx context.Context, action models.Action, tools []models.RequestTool) models.Result
}
