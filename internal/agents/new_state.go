package agents

import (
	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"

	"context"
)

// NewStateAgent synthesizes a transient State from history alone, used
// when the caller's Setting carries no FSM.
type NewStateAgent struct {
	llm contracts.LLMGateway
}

// NewNewStateAgent builds a NewStateAgent over llm.
func NewNewStateAgent(llm contracts.LLMGateway) *NewStateAgent {
	return &NewStateAgent{llm: llm}
}

type newStateChoice struct {
	Name        string `json:"name"`
	Scenario    string `json:"scenario"`
	Instruction string `json:"instruction"`
}

var newStateSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":        map[string]interface{}{"type": "string"},
		"scenario":    map[string]interface{}{"type": "string"},
		"instruction": map[string]interface{}{"type": "string"},
	},
	"required": []string{"name", "scenario", "instruction"},
}

// Step asks the model to invent a state given the conversation so far.
// The returned State is transient: it is never added to the caller's FSM.
func (a *NewStateAgent) Step(ctx context.Context, setting models.Setting, memory models.Memory) (models.State, error) {
	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "No conversation policy is configured. Given the conversation so far, invent a short, descriptive state name, a one-line scenario, and an instruction describing how the assistant should behave right now."},
	}
	messages = append(messages, windowedHistory(memory, setting.HistoryLen())...)

	var choice newStateChoice
	if _, err := a.llm.AskStructured(ctx, setting, messages, "new_state", newStateSchema, &choice); err != nil {
		return models.State{}, err
	}
	return models.State{
		Name:        choice.Name,
		Scenario:    choice.Scenario,
		Instruction: choice.Instruction,
	}, nil
}
