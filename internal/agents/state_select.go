// Package agents implements the three LLM-driven agents that make up a
// turn: State-Select, New-State, and Select-Actions, per SPEC_FULL.md
// §4.6-§4.8.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/agent-runtime/internal/fsm"
	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// StateSelectAgent picks the next FSM state given the candidate set
// computed from the current state.
type StateSelectAgent struct {
	llm contracts.LLMGateway
}

// NewStateSelectAgent builds a StateSelectAgent over llm.
func NewStateSelectAgent(llm contracts.LLMGateway) *StateSelectAgent {
	return &StateSelectAgent{llm: llm}
}

type stateChoice struct {
	StateName string `json:"state_name"`
	Reason    string `json:"reason"`
}

var stateChoiceSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"state_name": map[string]interface{}{"type": "string"},
		"reason":     map[string]interface{}{"type": "string"},
	},
	"required": []string{"state_name", "reason"},
}

// Step chooses the next state. It returns fsm.Machine's NextCandidates[0]
// as a deterministic fallback if the model picks outside the candidate
// set twice in a row.
func (a *StateSelectAgent) Step(ctx context.Context, setting models.Setting, memory models.Memory, feedbacks []models.Feedback, machine *fsm.Machine) (models.State, error) {
	current := memory.LastAssistantStateName()
	candidates := machine.NextCandidates(current)
	if len(candidates) == 0 {
		return models.State{}, errNoCandidates
	}

	messages := buildStateSelectPrompt(setting, memory, feedbacks, candidates, "")

	var choice stateChoice
	if _, err := a.llm.AskStructured(ctx, setting, messages, "state_choice", stateChoiceSchema, &choice); err != nil {
		return models.State{}, err
	}
	if s, ok := findState(candidates, choice.StateName); ok {
		return s, nil
	}

	// Re-ask once with an explicit constraint.
	retryMessages := buildStateSelectPrompt(setting, memory, feedbacks, candidates, choice.StateName)
	var retry stateChoice
	if _, err := a.llm.AskStructured(ctx, setting, retryMessages, "state_choice", stateChoiceSchema, &retry); err != nil {
		return models.State{}, err
	}
	if s, ok := findState(candidates, retry.StateName); ok {
		return s, nil
	}

	// Deterministic fallback on a second failure.
	return candidates[0], nil
}

var errNoCandidates = &models.BadResponseError{Reason: "no candidate states available"}

func findState(candidates []models.State, name string) (models.State, bool) {
	for _, s := range candidates {
		if s.Name == name {
			return s, true
		}
	}
	return models.State{}, false
}

func buildStateSelectPrompt(setting models.Setting, memory models.Memory, feedbacks []models.Feedback, candidates []models.State, rejectedChoice string) []models.ChatMessage {
	var sb strings.Builder
	sb.WriteString("Choose the next conversation state from the candidate list.\n\n")
	sb.WriteString("Candidates:\n")
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", c.Name, c.Scenario, c.Instruction)
	}
	if len(feedbacks) > 0 {
		sb.WriteString("\nRelevant past examples:\n")
		for _, f := range feedbacks {
			fmt.Fprintf(&sb, "- %s\n", f.CanonicalText())
		}
	}
	if rejectedChoice != "" {
		fmt.Fprintf(&sb, "\nYour previous answer %q was not one of the candidates. You must respond with state_name set to exactly one of the candidate names listed above.\n", rejectedChoice)
	}

	messages := []models.ChatMessage{{Role: models.RoleSystem, Content: sb.String()}}
	history := windowedHistory(memory, setting.HistoryLen())
	messages = append(messages, history...)
	return messages
}

// windowedHistory renders up to maxLen trailing Steps as ChatML messages.
func windowedHistory(memory models.Memory, maxLen int) []models.ChatMessage {
	steps := memory.Steps
	if maxLen > 0 && len(steps) > maxLen {
		steps = steps[len(steps)-maxLen:]
	}

	var out []models.ChatMessage
	for _, s := range steps {
		switch s.Role {
		case models.RoleUser:
			out = append(out, models.ChatMessage{Role: models.RoleUser, Content: s.Content})
		case models.RoleAssistant:
			if s.Result != nil {
				content := s.Result.Content
				if s.Result.Error != "" {
					content = s.Result.Error
				}
				out = append(out, models.ChatMessage{Role: models.RoleAssistant, Content: content})
			}
		}
	}
	return out
}
