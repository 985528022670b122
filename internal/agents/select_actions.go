package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/agent-runtime/internal/tools"
	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// SelectActionsAgent asks the model to emit one or more tool calls (or
// plain text, synthesized into a send_message_to_user action) given the
// chosen State.
type SelectActionsAgent struct {
	llm contracts.LLMGateway
}

// NewSelectActionsAgent builds a SelectActionsAgent over llm.
func NewSelectActionsAgent(llm contracts.LLMGateway) *SelectActionsAgent {
	return &SelectActionsAgent{llm: llm}
}

// Step builds the system+history message list, calls ask_with_tools, and
// parses the result into an ordered list of Actions. Unknown tool names
// never appear here — the Action Executor reports them as skipped when
// it can't find a matching RequestTool; this agent only distinguishes
// "the model asked for some tool" (well-formed ToolCall) from "the model
// just replied" (no tool calls, synthesized into send_message_to_user).
func (a *SelectActionsAgent) Step(ctx context.Context, setting models.Setting, memory models.Memory, state models.State, requestTools []models.RequestTool) ([]models.Action, error) {
	messages := buildSelectActionsPrompt(setting, memory, state)
	toolSpecs := tools.Definitions(requestTools)

	result, err := a.llm.AskWithTools(ctx, setting, messages, toolSpecs)
	if err != nil {
		return nil, err
	}

	if len(result.ToolCalls) == 0 {
		if result.Content == "" {
			return nil, nil
		}
		return []models.Action{{
			Name:      models.SendMessageToUserTool,
			Arguments: map[string]interface{}{"agent_message": result.Content},
		}}, nil
	}

	actions := make([]models.Action, 0, len(result.ToolCalls))
	for i, tc := range result.ToolCalls {
		args := tc.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		id := tc.ID
		if id == "" {
			id = defaultToolCallID(i)
		}
		actions = append(actions, models.Action{
			Name:       tc.Name,
			Arguments:  args,
			ToolCallID: id,
		})
	}
	return actions, nil
}

func defaultToolCallID(i int) string {
	return fmt.Sprintf("call_%d", i)
}

func buildSelectActionsPrompt(setting models.Setting, memory models.Memory, state models.State) []models.ChatMessage {
	var sb strings.Builder
	if setting.GlobalPrompt != "" {
		sb.WriteString(setting.GlobalPrompt)
		sb.WriteString("\n\n")
	}
	sb.WriteString(state.Instruction)

	messages := []models.ChatMessage{{Role: models.RoleSystem, Content: sb.String()}}
	messages = append(messages, windowedHistory(memory, setting.HistoryLen())...)
	return messages
}
