// Package orchestrator implements the per-turn Chat Orchestrator loop
// described in SPEC_FULL.md §4.10: it advances the FSM, asks the agents
// to choose a state and a set of actions, executes those actions, and
// returns the updated memory and token accounting.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agent-runtime/internal/actionexecutor"
	"github.com/agentoven/agent-runtime/internal/agents"
	"github.com/agentoven/agent-runtime/internal/feedback"
	"github.com/agentoven/agent-runtime/internal/fsm"
	"github.com/agentoven/agent-runtime/internal/llmgateway"
	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// DefaultBudget is the per-turn ceiling on loop iterations. Each iteration
// makes at least two LLM calls (one state choice, one action choice), so
// a turn's LLM call count can exceed the budget.
const DefaultBudget = 8

// ApologyMessage is synthesized when the loop exhausts its budget without
// producing a user-visible reply.
const ApologyMessage = "I wasn't able to complete this within the allotted number of steps. Could you rephrase or simplify your request?"

// Result is what Turn returns to the HTTP layer.
type Result struct {
	Memory           models.Memory
	ResultType       models.ResultType
	LLMCallingTimes  int
	TotalInputToken  int
	TotalOutputToken int
}

// Dependencies bundles the process-wide services a turn needs. LLMGateway
// is intentionally absent: it's constructed fresh per turn by NewGateway,
// since it's bound to a single session id.
type Dependencies struct {
	Counter        contracts.TokenCounter
	Feedback       *feedback.Service
	Executor       *actionexecutor.Executor
	NewGateway     func(counter contracts.TokenCounter, sessionID string) contracts.LLMGateway
	Budget         int
}

// NewDependencies wires the default production gateway constructor and
// the default budget.
func NewDependencies(counter contracts.TokenCounter, fb *feedback.Service, executor *actionexecutor.Executor) Dependencies {
	return Dependencies{
		Counter:  counter,
		Feedback: fb,
		Executor: executor,
		NewGateway: func(counter contracts.TokenCounter, sessionID string) contracts.LLMGateway {
			return llmgateway.New(counter, sessionID)
		},
		Budget: DefaultBudget,
	}
}

// Turn runs exactly one conversational step.
func Turn(ctx context.Context, deps Dependencies, setting models.Setting, memory models.Memory, userMessage []models.ChatMessage, editedLastResponse *string, recallLastUserMessage bool, requestTools []models.RequestTool) Result {
	if err := setting.Validate(); err != nil {
		return Result{Memory: memory, ResultType: models.ResultError}
	}
	if err := fsm.Validate(setting.StateMachine); err != nil {
		return Result{Memory: memory, ResultType: models.ResultError}
	}

	if recallLastUserMessage {
		memory.RecallLastUserTurn()
	}
	if editedLastResponse != nil {
		overwriteLastSendMessage(&memory, *editedLastResponse)
	}

	for _, m := range userMessage {
		memory.Append(models.Step{Role: models.RoleUser, Content: m.Content})
	}

	sessionID := fmt.Sprintf("%s:%s", setting.AgentName, uuid.NewString())
	llm := deps.NewGateway(deps.Counter, sessionID)
	machine := fsm.New(setting.StateMachine)

	queryText := latestUserContent(memory)
	var feedbacks []models.Feedback
	if setting.FeedbackEnabled() && deps.Feedback != nil {
		fb, err := deps.Feedback.Retrieve(ctx, setting, queryText, setting.TopK, nil)
		if err != nil {
			log.Warn().Err(err).Str("agent_name", setting.AgentName).Msg("feedback retrieval failed, continuing without examples")
		} else {
			feedbacks = fb
		}
	}

	stateSelect := agents.NewStateSelectAgent(llm)
	newState := agents.NewNewStateAgent(llm)
	selectActions := agents.NewSelectActionsAgent(llm)

	budget := deps.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	terminated := false
	callCount := 0

	for callCount < budget {
		callCount++

		var state models.State
		var err error
		// An FSM with no candidates for the current state falls through to
		// the New-State Agent, like an empty FSM.
		if !machine.Empty() && len(machine.NextCandidates(memory.LastAssistantStateName())) > 0 {
			state, err = stateSelect.Step(ctx, setting, memory, feedbacks, machine)
		} else {
			state, err = newState.Step(ctx, setting, memory)
		}
		if err != nil {
			return errorResult(memory, deps.Counter, sessionID)
		}

		actions, err := selectActions.Step(ctx, setting, memory, state, requestTools)
		if err != nil {
			return errorResult(memory, deps.Counter, sessionID)
		}

		if !containsTerminatingAction(actions) {
			results := deps.Executor.ExecuteBatch(ctx, actions, requestTools)
			for i, action := range actions {
				result := results[i]
				memory.Append(models.Step{
					Role:      models.RoleAssistant,
					Action:    &action,
					Result:    &result,
					StateName: state.Name,
				})
			}
		} else {
			for _, action := range actions {
				result := deps.Executor.Execute(ctx, action, requestTools)
				memory.Append(models.Step{
					Role:      models.RoleAssistant,
					Action:    &action,
					Result:    &result,
					StateName: state.Name,
				})
				if action.Name == models.SendMessageToUserTool && result.ExecState == models.ExecSuccess {
					terminated = true
					break
				}
			}
		}
		if terminated {
			break
		}
	}

	if !terminated {
		apology := models.Action{
			Name:      models.SendMessageToUserTool,
			Arguments: map[string]interface{}{"agent_message": ApologyMessage},
		}
		result := deps.Executor.Execute(ctx, apology, nil)
		memory.Append(models.Step{Role: models.RoleAssistant, Action: &apology, Result: &result})
	}

	memory.DedupeTrailingSendMessage()

	usage := deps.Counter.Usage(sessionID)
	resultType := models.ResultSuccess
	if !terminated {
		resultType = models.ResultBudgetExceeded
	}

	return Result{
		Memory:           memory,
		ResultType:       resultType,
		LLMCallingTimes:  usage.CallCount,
		TotalInputToken:  usage.TotalInputTokens,
		TotalOutputToken: usage.TotalOutputTokens,
	}
}

func errorResult(memory models.Memory, counter contracts.TokenCounter, sessionID string) Result {
	usage := counter.Usage(sessionID)
	return Result{
		Memory:           memory,
		ResultType:       models.ResultError,
		LLMCallingTimes:  usage.CallCount,
		TotalInputToken:  usage.TotalInputTokens,
		TotalOutputToken: usage.TotalOutputTokens,
	}
}

func containsTerminatingAction(actions []models.Action) bool {
	for _, a := range actions {
		if a.Name == models.SendMessageToUserTool {
			return true
		}
	}
	return false
}

func latestUserContent(memory models.Memory) string {
	for i := len(memory.Steps) - 1; i >= 0; i-- {
		if memory.Steps[i].Role == models.RoleUser {
			return memory.Steps[i].Content
		}
	}
	return ""
}

func overwriteLastSendMessage(memory *models.Memory, content string) {
	idx := memory.LastSendMessageIndex()
	if idx < 0 {
		return
	}
	step := memory.Steps[idx]
	if step.Action != nil {
		step.Action.Arguments["agent_message"] = content
	}
	if step.Result != nil {
		step.Result.Content = content
	}
	memory.Steps[idx] = step
}
