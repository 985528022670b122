package agents

import (
	"context"
	"testing"

	"github.com/agentoven/agent-runtime/internal/fsm"
	"github.com/agentoven/agent-runtime/internal/llmgateway"
	"github.com/agentoven/agent-runtime/internal/tokencount"
	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

func testMachine() *fsm.Machine {
	return fsm.New(&models.StateMachine{
		States: []models.State{
			{Name: "greeting", Scenario: "first contact", Instruction: "say hi", NextStates: []string{"qualify"}},
			{Name: "qualify", Scenario: "asking questions", Instruction: "ask about needs"},
		},
	})
}

func TestStateSelectAgentAcceptsValidChoice(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	stub := llmgateway.NewStub(counter, "sess-1", llmgateway.StubResponse{
		StructuredJSON: `{"state_name":"qualify","reason":"moving the conversation forward"}`,
	})
	agent := NewStateSelectAgent(stub)

	memory := models.Memory{}
	memory.Append(models.Step{Role: models.RoleAssistant, StateName: "greeting"})

	state, err := agent.Step(context.Background(), models.Setting{}, memory, nil, testMachine())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Name != "qualify" {
		t.Fatalf("got state %q, want qualify", state.Name)
	}
}

func TestStateSelectAgentFallsBackOnRepeatedViolation(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	stub := llmgateway.NewStub(counter, "sess-1",
		llmgateway.StubResponse{StructuredJSON: `{"state_name":"not_a_real_state","reason":"oops"}`},
		llmgateway.StubResponse{StructuredJSON: `{"state_name":"still_wrong","reason":"oops again"}`},
	)
	agent := NewStateSelectAgent(stub)

	state, err := agent.Step(context.Background(), models.Setting{}, models.Memory{}, nil, testMachine())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Name != "greeting" {
		t.Fatalf("expected deterministic fallback to the first candidate, got %q", state.Name)
	}
}

func TestNewStateAgentReturnsTransientState(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	stub := llmgateway.NewStub(counter, "sess-1", llmgateway.StubResponse{
		StructuredJSON: `{"name":"ad_hoc","scenario":"user asked something unusual","instruction":"answer helpfully"}`,
	})
	agent := NewNewStateAgent(stub)

	state, err := agent.Step(context.Background(), models.Setting{}, models.Memory{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Name != "ad_hoc" {
		t.Fatalf("got %+v", state)
	}
}

func TestSelectActionsAgentSynthesizesSendMessageFromPlainText(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	stub := llmgateway.NewStub(counter, "sess-1", llmgateway.StubResponse{Content: "hello, how can I help?"})
	agent := NewSelectActionsAgent(stub)

	actions, err := agent.Step(context.Background(), models.Setting{}, models.Memory{}, models.State{Name: "greeting"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 || actions[0].Name != models.SendMessageToUserTool {
		t.Fatalf("got %+v", actions)
	}
	if actions[0].Arguments["agent_message"] != "hello, how can I help?" {
		t.Fatalf("got %+v", actions[0].Arguments)
	}
}

func TestSelectActionsAgentAssignsDefaultToolCallIDWhenMissing(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	stub := llmgateway.NewStub(counter, "sess-1", llmgateway.StubResponse{
		ToolCalls: []contracts.ToolCall{{Name: "lookup_weather", Arguments: map[string]interface{}{"city": "austin"}}},
	})
	agent := NewSelectActionsAgent(stub)

	actions, err := agent.Step(context.Background(), models.Setting{}, models.Memory{}, models.State{}, []models.RequestTool{{Name: "lookup_weather"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 || actions[0].ToolCallID != "call_0" {
		t.Fatalf("got %+v", actions)
	}
}

func TestSelectActionsAgentDefaultsMissingArgumentsToEmptyObject(t *testing.T) {
	counter := tokencount.NewRegistry(10)
	stub := llmgateway.NewStub(counter, "sess-1", llmgateway.StubResponse{
		ToolCalls: []contracts.ToolCall{{ID: "c1", Name: "ping"}},
	})
	agent := NewSelectActionsAgent(stub)

	actions, err := agent.Step(context.Background(), models.Setting{}, models.Memory{}, models.State{}, []models.RequestTool{{Name: "ping"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actions[0].Arguments == nil {
		t.Fatal("expected missing arguments to default to an empty (non-nil) map")
	}
}
