package orchestrator

import (
	"context"
	"testing"

	"github.com/agentoven/agent-runtime/internal/actionexecutor"
	"github.com/agentoven/agent-runtime/internal/embeddinggateway"
	"github.com/agentoven/agent-runtime/internal/feedback"
	"github.com/agentoven/agent-runtime/internal/llmgateway"
	"github.com/agentoven/agent-runtime/internal/tokencount"
	"github.com/agentoven/agent-runtime/internal/vectorstore"
	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

func depsWithScriptedLLM(counter contracts.TokenCounter, responses ...llmgateway.StubResponse) Dependencies {
	fb := feedback.New(vectorstore.NewMemoryDriver(), embeddinggateway.NewStub(4))
	return Dependencies{
		Counter:  counter,
		Feedback: fb,
		Executor: actionexecutor.New(),
		NewGateway: func(_ contracts.TokenCounter, sessionID string) contracts.LLMGateway {
			return llmgateway.NewStub(counter, sessionID, responses...)
		},
		Budget: DefaultBudget,
	}
}

func TestTurnRejectsInvalidSetting(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	deps := depsWithScriptedLLM(counter)

	result := Turn(context.Background(), deps, models.Setting{}, models.Memory{}, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil, false, nil)
	if result.ResultType != models.ResultError {
		t.Fatalf("expected ResultError for an invalid setting, got %+v", result)
	}
}

func TestTurnNoFSMEmitsReplyAndTerminates(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	deps := depsWithScriptedLLM(counter,
		llmgateway.StubResponse{StructuredJSON: `{"name":"ad_hoc","scenario":"greeting","instruction":"say hi"}`, InputTokens: 10, OutputTokens: 2},
		llmgateway.StubResponse{Content: "hello!", InputTokens: 20, OutputTokens: 4},
	)
	setting := models.Setting{AgentName: "support_bot", ChatAPIKey: "key", VectorDim: 0}

	result := Turn(context.Background(), deps, setting, models.Memory{}, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil, false, nil)

	if result.ResultType != models.ResultSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.LLMCallingTimes != 2 {
		t.Fatalf("expected one NewStateAgent call plus one SelectActionsAgent call, got %d", result.LLMCallingTimes)
	}
	last := result.Memory.Steps[len(result.Memory.Steps)-1]
	if !last.IsUserVisibleReply() {
		t.Fatalf("expected the final step to be a user-visible reply, got %+v", last)
	}
	if result.TotalInputToken != 30 || result.TotalOutputToken != 6 {
		t.Fatalf("expected token totals to match recorded usage, got in=%d out=%d", result.TotalInputToken, result.TotalOutputToken)
	}
}

func TestTurnBudgetExceededSynthesizesApology(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	// Plain text would be synthesized into send_message_to_user, so to
	// force budget exhaustion every iteration scripts a New-State answer
	// followed by a non-terminating "noop" tool call.
	deps := depsWithScriptedLLM(counter,
		repeatedNewStateAndToolCall(DefaultBudget)...,
	)
	setting := models.Setting{AgentName: "support_bot", ChatAPIKey: "key"}

	result := Turn(context.Background(), deps, setting, models.Memory{}, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil, false, []models.RequestTool{{Name: "noop"}})

	if result.ResultType != models.ResultBudgetExceeded {
		t.Fatalf("expected budget_exceeded, got %+v", result)
	}
	last := result.Memory.Steps[len(result.Memory.Steps)-1]
	if !last.IsUserVisibleReply() {
		t.Fatalf("expected an apology reply as the final step, got %+v", last)
	}
}

func repeatedNewStateAndToolCall(n int) []llmgateway.StubResponse {
	var out []llmgateway.StubResponse
	for i := 0; i < n; i++ {
		out = append(out,
			llmgateway.StubResponse{StructuredJSON: `{"name":"ad_hoc","scenario":"s","instruction":"i"}`},
			llmgateway.StubResponse{ToolCalls: []contracts.ToolCall{{ID: "c", Name: "noop"}}},
		)
	}
	return out
}
