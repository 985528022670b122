// Package handlers implements the HTTP surface described in
// SPEC_FULL.md §6: POST /chat, POST /learn, the feedbacks collection
// endpoints, and the ambient /health and /version endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agent-runtime/internal/actionexecutor"
	"github.com/agentoven/agent-runtime/internal/config"
	"github.com/agentoven/agent-runtime/internal/embeddinggateway"
	"github.com/agentoven/agent-runtime/internal/feedback"
	"github.com/agentoven/agent-runtime/internal/orchestrator"
	"github.com/agentoven/agent-runtime/internal/tokencount"
	"github.com/agentoven/agent-runtime/internal/vectorstore"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// Handlers holds the process-wide services the HTTP layer dispatches
// into. Per-request state (the vector store driver bound to a turn's
// vector_db_url, the feedback.Service wrapping it) is built fresh per
// request by feedbackFor, since Setting.VectorDBURL varies per call.
type Handlers struct {
	Config   *config.Config
	Counter  *tokencount.Registry
	Embedder *embeddinggateway.Client
	Executor *actionexecutor.Executor
}

// New wires a Handlers instance from the process-wide dependencies built
// in pkg/server.
func New(cfg *config.Config, counter *tokencount.Registry, embedder *embeddinggateway.Client, executor *actionexecutor.Executor) *Handlers {
	return &Handlers{Config: cfg, Counter: counter, Embedder: embedder, Executor: executor}
}

// feedbackFor resolves the Feedback Service for a single request's
// Setting. When the turn has no vector_db_url, feedback is disabled; a
// Service over an in-memory driver is still returned so callers never
// need a nil check — every method on it becomes a no-op because
// Setting.FeedbackEnabled() is false.
func (h *Handlers) feedbackFor(setting models.Setting) *feedback.Service {
	if setting.VectorDBURL == "" {
		return feedback.New(vectorstore.NewMemoryDriver(), h.Embedder)
	}
	driver, err := vectorstore.NewWeaviateDriver(setting.VectorDBURL)
	if err != nil {
		log.Warn().Err(err).Str("vector_db_url", setting.VectorDBURL).Msg("invalid vector_db_url, feedback disabled for this call")
		return feedback.New(vectorstore.NewMemoryDriver(), h.Embedder)
	}
	return feedback.New(driver, h.Embedder)
}

// Chat handles POST /chat — one turn of the orchestrator loop.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	messages, err := normalizeUserMessage(req.UserMessage)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	deps := orchestrator.NewDependencies(h.Counter, h.feedbackFor(req.Settings), h.Executor)

	result := orchestrator.Turn(r.Context(), deps, req.Settings, req.Memory, messages, req.EditedLastResponse, req.RecallLastUserMessage, req.RequestTools)

	status := http.StatusOK
	if result.ResultType == models.ResultError {
		status = http.StatusBadRequest
	}
	respondJSON(w, status, models.ChatResponse{
		Response:         result.Memory,
		Memory:           result.Memory,
		ResultType:       result.ResultType,
		LLMCallingTimes:  result.LLMCallingTimes,
		TotalInputToken:  result.TotalInputToken,
		TotalOutputToken: result.TotalOutputToken,
	})
}

// normalizeUserMessage implements the backward-compatibility rule from
// SPEC_FULL.md §6: user_message may be a bare string or a ChatML array;
// a bare string normalizes to a single user-role message. ChatML roles
// outside system/user/assistant are rejected.
func normalizeUserMessage(raw json.RawMessage) ([]models.ChatMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []models.ChatMessage{{Role: models.RoleUser, Content: asString}}, nil
	}

	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, &requestError{"user_message must be a string or an array of {role, content} messages"}
	}
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem, models.RoleUser, models.RoleAssistant:
		default:
			return nil, &requestError{"user_message role must be one of system, user, assistant"}
		}
	}
	return messages, nil
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

// Learn handles POST /learn — inserts feedbacks for an agent.
func (h *Handlers) Learn(w http.ResponseWriter, r *http.Request) {
	var req models.LearnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Settings.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc := h.feedbackFor(req.Settings)
	ids, err := svc.Add(r.Context(), req.Settings, req.Feedbacks)
	if err != nil {
		respondJSON(w, http.StatusOK, models.LearnResponse{Status: "Failed", Data: []string{err.Error()}})
		return
	}
	respondJSON(w, http.StatusOK, models.LearnResponse{Status: "Success", Data: ids})
}

// ListFeedbacks handles GET /feedbacks?agent_name=&vector_db_url=&offset=&limit=.
func (h *Handlers) ListFeedbacks(w http.ResponseWriter, r *http.Request) {
	setting, err := feedbackSettingFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", feedback.MaxPageSize)

	svc := h.feedbackFor(setting)
	feedbacks, err := svc.List(r.Context(), setting, offset, limit)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, feedbacks)
}

// DeleteFeedbacks handles DELETE /feedbacks?agent_name=&vector_db_url= —
// clears every feedback for the agent but keeps its collection.
func (h *Handlers) DeleteFeedbacks(w http.ResponseWriter, r *http.Request) {
	setting, err := feedbackSettingFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.feedbackFor(setting).Clear(r.Context(), setting); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DropCollection handles DELETE /collections/{agent_name}?vector_db_url=
// — removes the agent's collection entirely, schema included.
func (h *Handlers) DropCollection(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agent_name")
	if agentName == "" {
		respondError(w, http.StatusBadRequest, "agent_name is required")
		return
	}
	setting := models.Setting{AgentName: agentName, VectorDBURL: r.URL.Query().Get("vector_db_url")}
	if err := h.feedbackFor(setting).Drop(r.Context(), setting); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// feedbackSettingFromQuery builds the minimal Setting needed to address a
// collection by agent_name. VectorDim is set to a nonzero placeholder so
// FeedbackEnabled()'s companion Validate() invariant isn't tripped by
// these read/delete paths, which never create a collection from scratch.
func feedbackSettingFromQuery(r *http.Request) (models.Setting, error) {
	agentName := r.URL.Query().Get("agent_name")
	if agentName == "" {
		return models.Setting{}, &requestError{"agent_name is required"}
	}
	return models.Setting{
		AgentName:   agentName,
		VectorDBURL: r.URL.Query().Get("vector_db_url"),
		VectorDim:   1,
	}, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version handles GET /version.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.Config.Version})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
