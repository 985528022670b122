// Package feedback implements the Feedback Service described in
// SPEC_FULL.md §4.4: a thin layer over the Embedding Gateway and the
// Vector Store Client that stores and retrieves (observation, action)
// exemplars per agent.
package feedback

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// MaxPageSize is the hard cap on list()'s limit parameter.
const MaxPageSize = 10000

// Service is the production Feedback Service.
type Service struct {
	vectorStore contracts.VectorStoreDriver
	embedder    contracts.EmbeddingGateway
}

// New builds a Service over the given drivers.
func New(vectorStore contracts.VectorStoreDriver, embedder contracts.EmbeddingGateway) *Service {
	return &Service{vectorStore: vectorStore, embedder: embedder}
}

// CollectionName converts agentName to the PascalCase identifier Weaviate
// class names require, per SPEC_FULL.md §3.2.
func CollectionName(agentName string) string {
	chunks := splitPattern.Split(agentName, -1)
	var b strings.Builder
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		b.WriteString(strings.ToUpper(chunk[:1]))
		if len(chunk) > 1 {
			b.WriteString(chunk[1:])
		}
	}
	return b.String()
}

var splitPattern = regexp.MustCompile(`[\s_\-]+`)

// EnsureReady idempotently ensures the per-agent collection exists with
// the expected vector dimension.
func (s *Service) EnsureReady(ctx context.Context, setting models.Setting) error {
	if !setting.FeedbackEnabled() {
		return nil
	}
	return s.vectorStore.EnsureCollection(ctx, CollectionName(setting.AgentName), setting.VectorDim)
}

// Add embeds and stores each feedback, generating a fresh id per entry
// and returning the assigned ids in order. ID generation happens inside
// this loop, at call time — never hoisted to a default argument — per the
// historical-bug note in SPEC_FULL.md §4.4.
func (s *Service) Add(ctx context.Context, setting models.Setting, feedbacks []models.Feedback) ([]string, error) {
	if !setting.FeedbackEnabled() || len(feedbacks) == 0 {
		return nil, nil
	}
	if err := s.EnsureReady(ctx, setting); err != nil {
		return nil, err
	}

	texts := make([]string, len(feedbacks))
	prepared := make([]models.Feedback, len(feedbacks))
	for i, f := range feedbacks {
		f.ID = uuid.NewString()
		f.AgentName = setting.AgentName
		texts[i] = f.CanonicalText()
		prepared[i] = f
	}

	vectors, err := s.embedder.Embed(ctx, setting, texts)
	if err != nil {
		return nil, err
	}
	for i := range prepared {
		prepared[i].Vector = vectors[i]
	}

	return s.vectorStore.Insert(ctx, CollectionName(setting.AgentName), prepared)
}

// List returns a paginated scan of every feedback stored for the agent.
// limit is clamped to MaxPageSize.
func (s *Service) List(ctx context.Context, setting models.Setting, offset, limit int) ([]models.Feedback, error) {
	if !setting.FeedbackEnabled() {
		return nil, nil
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.vectorStore.List(ctx, CollectionName(setting.AgentName), offset, limit)
}

// Retrieve embeds queryText and returns the top_k nearest feedbacks,
// optionally filtered by tags. It returns an empty slice (not an error)
// when the feedback subsystem is disabled. When the collection doesn't
// exist yet, the result depends on the driver: MemoryDriver reports no
// matches, while a WeaviateDriver query error is returned as an error.
func (s *Service) Retrieve(ctx context.Context, setting models.Setting, queryText string, topK int, tags []string) ([]models.Feedback, error) {
	if !setting.FeedbackEnabled() {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, setting, []string{queryText})
	if err != nil {
		return nil, err
	}

	matches, err := s.vectorStore.Query(ctx, CollectionName(setting.AgentName), vectors[0], topK, tags)
	if err != nil {
		return nil, err
	}

	out := make([]models.Feedback, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Feedback)
	}
	return out, nil
}

// Clear removes every stored feedback for the agent but keeps the
// collection in place.
func (s *Service) Clear(ctx context.Context, setting models.Setting) error {
	if !setting.FeedbackEnabled() {
		return nil
	}
	return s.vectorStore.DeleteAll(ctx, CollectionName(setting.AgentName))
}

// Drop removes the agent's collection entirely, schema included.
func (s *Service) Drop(ctx context.Context, setting models.Setting) error {
	if !setting.FeedbackEnabled() {
		return nil
	}
	return s.vectorStore.DropCollection(ctx, CollectionName(setting.AgentName))
}
