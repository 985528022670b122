package llmgateway

import (
	"context"
	"encoding/json"

	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// Stub is a scripted contracts.LLMGateway for tests. Responses are
// consumed in call order across Ask/AskWithTools/AskStructured; it is not
// safe for concurrent use.
type Stub struct {
	counter   contracts.TokenCounter
	sessionID string
	Responses []StubResponse
	calls     int
}

// StubResponse is one scripted answer.
type StubResponse struct {
	Content      string
	ToolCalls    []contracts.ToolCall
	StructuredJSON string
	Err          error
	InputTokens  int
	OutputTokens int
}

// NewStub builds a Stub that records token usage into counter under
// sessionID, exactly like the production Client.
func NewStub(counter contracts.TokenCounter, sessionID string, responses ...StubResponse) *Stub {
	return &Stub{counter: counter, sessionID: sessionID, Responses: responses}
}

func (s *Stub) next() (StubResponse, bool) {
	if s.calls >= len(s.Responses) {
		return StubResponse{}, false
	}
	r := s.Responses[s.calls]
	s.calls++
	return r, true
}

func (s *Stub) Ask(ctx context.Context, setting models.Setting, messages []models.ChatMessage) (contracts.AskResult, error) {
	r, ok := s.next()
	if !ok {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "stub exhausted"}
	}
	if r.Err != nil {
		return contracts.AskResult{}, r.Err
	}
	s.counter.RecordUsage(s.sessionID, r.InputTokens, r.OutputTokens)
	return contracts.AskResult{Content: r.Content, InputTokens: r.InputTokens, OutputTokens: r.OutputTokens}, nil
}

func (s *Stub) AskWithTools(ctx context.Context, setting models.Setting, messages []models.ChatMessage, tools []contracts.ToolSpec) (contracts.AskResult, error) {
	r, ok := s.next()
	if !ok {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "stub exhausted"}
	}
	if r.Err != nil {
		return contracts.AskResult{}, r.Err
	}
	s.counter.RecordUsage(s.sessionID, r.InputTokens, r.OutputTokens)
	return contracts.AskResult{
		Content:      r.Content,
		ToolCalls:    r.ToolCalls,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
	}, nil
}

func (s *Stub) AskStructured(ctx context.Context, setting models.Setting, messages []models.ChatMessage, schemaName string, schema map[string]interface{}, out interface{}) (contracts.AskResult, error) {
	r, ok := s.next()
	if !ok {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "stub exhausted"}
	}
	if r.Err != nil {
		return contracts.AskResult{}, r.Err
	}
	if err := json.Unmarshal([]byte(r.StructuredJSON), out); err != nil {
		return contracts.AskResult{}, &models.BadResponseError{Reason: "stub structured output did not parse: " + err.Error()}
	}
	s.counter.RecordUsage(s.sessionID, r.InputTokens, r.OutputTokens)
	return contracts.AskResult{Content: r.StructuredJSON, InputTokens: r.InputTokens, OutputTokens: r.OutputTokens}, nil
}
