// Package models holds the data shapes shared across the agent runtime:
// the per-turn Setting, the FSM definitions, conversation Memory, stored
// Feedback documents, and the tool descriptors the Orchestrator dispatches.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// ── Setting ──────────────────────────────────────────────────

// Setting is the per-request configuration. It is immutable during a turn.
type Setting struct {
	AgentName string `json:"agent_name"`

	ChatBaseURL   string  `json:"chat_base_url"`
	ChatAPIKey    string  `json:"chat_api_key"`
	ChatModel     string  `json:"chat_model"`
	Temperature   float32 `json:"temperature,omitempty"`
	TopP          float32 `json:"top_p,omitempty"`
	MaxHistoryLen int     `json:"max_history_len,omitempty"`

	EmbeddingBaseURL string `json:"embedding_base_url"`
	EmbeddingAPIKey  string `json:"embedding_api_key"`
	EmbeddingModel   string `json:"embedding_model"`
	VectorDim        int    `json:"vector_dim"`

	VectorDBURL string `json:"vector_db_url,omitempty"`
	TopK        int    `json:"top_k,omitempty"`

	GlobalPrompt string        `json:"global_prompt,omitempty"`
	StateMachine *StateMachine `json:"state_machine,omitempty"`
}

// DefaultMaxHistoryLen is the hard truncation unit (in Steps, not tokens)
// applied when Setting.MaxHistoryLen is unset. See SPEC_FULL.md §9 Open
// Questions.
const DefaultMaxHistoryLen = 128

// HistoryLen returns the configured max history length, or the default.
func (s Setting) HistoryLen() int {
	if s.MaxHistoryLen > 0 {
		return s.MaxHistoryLen
	}
	return DefaultMaxHistoryLen
}

// FeedbackEnabled reports whether the feedback subsystem should be used
// for this turn.
func (s Setting) FeedbackEnabled() bool {
	return s.VectorDBURL != ""
}

// Validate checks the ConfigError-class invariants from SPEC_FULL.md §7.
func (s Setting) Validate() error {
	if s.AgentName == "" {
		return &ConfigError{Reason: "agent_name must not be empty"}
	}
	if s.ChatAPIKey == "" {
		return &ConfigError{Reason: "chat_api_key must not be empty"}
	}
	if s.VectorDim < 0 {
		return &ConfigError{Reason: "vector_dim must be >= 0"}
	}
	if s.FeedbackEnabled() && s.VectorDim <= 0 {
		return &ConfigError{Reason: "vector_dim must be positive when vector_db_url is set"}
	}
	return nil
}

// ── FSM ──────────────────────────────────────────────────────

// State is one node of a StateMachine.
type State struct {
	Name        string   `json:"name"`
	Scenario    string   `json:"scenario,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	NextStates  []string `json:"next_states,omitempty"`
}

// StateMachine is the policy skeleton for multi-turn dialogue.
type StateMachine struct {
	States     []State  `json:"states"`
	FreeStates []string `json:"free_states,omitempty"`
	EntryState string   `json:"entry_state,omitempty"`
}

// Empty reports whether the state machine has no states configured. The
// Orchestrator makes its New-State Agent decision on fsm.Machine instead.
func (sm *StateMachine) Empty() bool {
	return sm == nil || len(sm.States) == 0
}

// ── Roles ────────────────────────────────────────────────────

// Role identifies who produced a Step or a ChatML message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one element of a ChatML-style message sequence. A bare
// string user_message is normalized into a single-element slice of these
// at the HTTP boundary (SPEC_FULL.md §9, "ChatML mixed with raw strings").
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ── Steps & Memory ───────────────────────────────────────────

// ExecState is the execution status of an action's result.
type ExecState string

const (
	ExecPending ExecState = "pending"
	ExecRunning ExecState = "running"
	ExecSuccess ExecState = "success"
	ExecFailed  ExecState = "failed"
	ExecSkipped ExecState = "skipped"
)

// Action is the selected tool call for an assistant Step.
type Action struct {
	Name       string                 `json:"name"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
}

// Result is the outcome of executing an Action.
type Result struct {
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	ExecState ExecState `json:"exec_state"`
}

// Step is one element of conversation Memory: either a user turn (Action
// and Result are absent) or an assistant action plus its execution result.
type Step struct {
	Role      Role    `json:"role"`
	Content   string  `json:"content,omitempty"` // user-role content
	Action    *Action `json:"action,omitempty"`
	Result    *Result `json:"result,omitempty"`
	StateName string  `json:"state_name,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// IsUserVisibleReply reports whether this Step is a successful
// send_message_to_user assistant action.
func (s Step) IsUserVisibleReply() bool {
	return s.Role == RoleAssistant &&
		s.Action != nil && s.Action.Name == SendMessageToUserTool &&
		s.Result != nil && s.Result.ExecState == ExecSuccess
}

// Memory is the ordered sequence of Steps making up the conversation so
// far. It is created by the caller, mutated only by the Orchestrator
// within a single turn, and returned to the caller.
type Memory struct {
	Steps []Step `json:"steps"`
}

// NextOrdinal returns the CreatedAt value the next appended Step should
// carry, preserving non-decreasing order.
func (m *Memory) NextOrdinal() int64 {
	if len(m.Steps) == 0 {
		return 0
	}
	return m.Steps[len(m.Steps)-1].CreatedAt + 1
}

// Append adds a Step to memory, stamping CreatedAt.
func (m *Memory) Append(s Step) {
	s.CreatedAt = m.NextOrdinal()
	m.Steps = append(m.Steps, s)
}

// LastAssistantStateName returns the state_name of the most recent
// assistant Step, or "" if there is none.
func (m *Memory) LastAssistantStateName() string {
	for i := len(m.Steps) - 1; i >= 0; i-- {
		if m.Steps[i].Role == RoleAssistant {
			return m.Steps[i].StateName
		}
	}
	return ""
}

// LastSendMessageIndex returns the index of the most recent assistant
// send_message_to_user Step, or -1 if there is none.
func (m *Memory) LastSendMessageIndex() int {
	for i := len(m.Steps) - 1; i >= 0; i-- {
		s := m.Steps[i]
		if s.Role == RoleAssistant && s.Action != nil && s.Action.Name == SendMessageToUserTool {
			return i
		}
	}
	return -1
}

// RecallLastUserTurn strips the trailing user Step and every assistant
// Step that followed it, per the Orchestrator's recall_last_user_message
// precondition.
func (m *Memory) RecallLastUserTurn() {
	lastUser := -1
	for i := len(m.Steps) - 1; i >= 0; i-- {
		if m.Steps[i].Role == RoleUser {
			lastUser = i
			break
		}
	}
	if lastUser >= 0 {
		m.Steps = m.Steps[:lastUser]
	}
}

// DedupeTrailingSendMessage collapses runs of identical consecutive
// assistant send_message_to_user Steps, keeping only the last occurrence
// of each run.
func (m *Memory) DedupeTrailingSendMessage() {
	if len(m.Steps) == 0 {
		return
	}
	out := make([]Step, 0, len(m.Steps))
	for _, s := range m.Steps {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if isSameSendMessage(prev, s) {
				out[n-1] = s // keep the last occurrence
				continue
			}
		}
		out = append(out, s)
	}
	m.Steps = out
}

func isSameSendMessage(a, b Step) bool {
	if a.Role != RoleAssistant || b.Role != RoleAssistant {
		return false
	}
	if a.Action == nil || b.Action == nil {
		return false
	}
	if a.Action.Name != SendMessageToUserTool || b.Action.Name != SendMessageToUserTool {
		return false
	}
	return agentMessage(a.Action) == agentMessage(b.Action)
}

func agentMessage(a *Action) string {
	if a == nil || a.Arguments == nil {
		return ""
	}
	if v, ok := a.Arguments["agent_message"].(string); ok {
		return v
	}
	return ""
}

// ── Feedback ─────────────────────────────────────────────────

// Observation is the input half of a stored (observation, action) pair.
type Observation struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// FeedbackAction is the output half of a stored (observation, action) pair.
type FeedbackAction struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Feedback is a stored (observation, action) exemplar retrievable by
// semantic similarity.
type Feedback struct {
	ID          string         `json:"id,omitempty"`
	AgentName   string         `json:"agent_name"`
	Observation Observation    `json:"observation"`
	Action      FeedbackAction `json:"action"`
	StateName   string         `json:"state_name,omitempty"`
	Vector      []float64      `json:"vector,omitempty"`
}

// CanonicalText is the fixed text rendering embedded and indexed for a
// Feedback, per SPEC_FULL.md §4.4.
func (f Feedback) CanonicalText() string {
	return f.Observation.Name + ": " + f.Observation.Content + "\n" + f.Action.Name + ": " + f.Action.Content
}

// Tags derives the filterable tags for a Feedback.
func (f Feedback) Tags() []string {
	var tags []string
	if f.Observation.Name != "" {
		tags = append(tags, "observation_name:"+f.Observation.Name)
	}
	if f.StateName != "" {
		tags = append(tags, "state_name:"+f.StateName)
	}
	return tags
}

// ── Tool descriptors ─────────────────────────────────────────

// SendMessageToUserTool is the fixed built-in tool name.
const SendMessageToUserTool = "send_message_to_user"

// RequestTool describes a caller-supplied HTTP tool.
type RequestTool struct {
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	TimeoutMS       int               `json:"timeout_ms,omitempty"`
	ParameterSchema json.RawMessage   `json:"parameter_schema,omitempty"`
}

// DefaultRequestToolTimeout is used when a RequestTool doesn't set
// TimeoutMS.
const DefaultRequestToolTimeout = 30 * time.Second

// Timeout returns the configured per-tool timeout, or the default.
func (t RequestTool) Timeout() time.Duration {
	if t.TimeoutMS <= 0 {
		return DefaultRequestToolTimeout
	}
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// ── Token accounting ─────────────────────────────────────────

// TokenUsage is the running total for one session id.
type TokenUsage struct {
	SessionID         string `json:"session_id"`
	TotalInputTokens  int    `json:"total_input_tokens"`
	TotalOutputTokens int    `json:"total_output_tokens"`
	CallCount         int    `json:"call_count"`
}

// ── Chat API shapes ──────────────────────────────────────────

// ResultType is the outcome classification returned to the caller.
type ResultType string

const (
	ResultSuccess        ResultType = "success"
	ResultBudgetExceeded ResultType = "budget_exceeded"
	ResultError          ResultType = "error"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserMessage           json.RawMessage `json:"user_message"`
	EditedLastResponse    *string         `json:"edited_last_response,omitempty"`
	RecallLastUserMessage bool            `json:"recall_last_user_message,omitempty"`
	Settings              Setting         `json:"settings"`
	Memory                Memory          `json:"memory"`
	RequestTools          []RequestTool   `json:"request_tools,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response         Memory     `json:"response"`
	Memory           Memory     `json:"memory"`
	ResultType       ResultType `json:"result_type"`
	LLMCallingTimes  int        `json:"llm_calling_times"`
	TotalInputToken  int        `json:"total_input_token"`
	TotalOutputToken int        `json:"total_output_token"`
}

// LearnRequest is the body of POST /learn.
type LearnRequest struct {
	Settings  Setting    `json:"settings"`
	Feedbacks []Feedback `json:"feedbacks"`
}

// LearnResponse is the body returned by POST /learn.
type LearnResponse struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
}

// ── Error kinds (SPEC_FULL.md §7) ────────────────────────────

// ConfigError is fatal at turn start: missing api key, empty agent_name,
// vector_dim <= 0.
type ConfigError struct{ Reason string }

func (e *ConfigError) Error() string { return "config error: " + e.Reason }

// TransportError wraps a network/timeout failure to any external
// provider. The LLM Gateway retries it once with jittered backoff and
// returns it on a second failure; the Embedding Gateway and the vector
// store drivers return it on the first failure, without a retry.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return "transport error (" + e.Provider + "): " + e.Err.Error()
}
func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is an auth failure, a rate limit exhausted past its
// retries, or a provider 5xx.
type ProviderError struct {
	Provider string
	Reason   string
}

func (e *ProviderError) Error() string { return "provider error (" + e.Provider + "): " + e.Reason }

// BadResponseError means the LLM's structured output could not be parsed
// after one repair attempt.
type BadResponseError struct{ Reason string }

func (e *BadResponseError) Error() string { return "bad response: " + e.Reason }

// DimensionMismatchError means the embedding provider returned vectors of
// a different dimension than declared.
type DimensionMismatchError struct {
	Want, Got int
}

func (e *DimensionMismatchError) Error() string {
	return "embedding dimension mismatch: want " + strconv.Itoa(e.Want) + ", got " + strconv.Itoa(e.Got)
}

// DimensionConflictError means a collection already exists with a
// different vector dimension than requested.
type DimensionConflictError struct {
	Collection string
	Want, Got  int
}

func (e *DimensionConflictError) Error() string {
	return "vector store dimension conflict on " + e.Collection + ": want " + strconv.Itoa(e.Want) + ", got " + strconv.Itoa(e.Got)
}
