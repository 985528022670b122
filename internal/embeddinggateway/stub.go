package embeddinggateway

import (
	"context"

	"github.com/agentoven/agent-runtime/pkg/models"
)

// Stub is a deterministic contracts.EmbeddingGateway for tests: it hashes
// each text into a fixed-dimension vector rather than calling a real
// provider, so retrieval tests can assert on similarity ordering without
// network access.
type Stub struct {
	Dim int
}

// NewStub builds a Stub producing vectors of the given dimension.
func NewStub(dim int) *Stub {
	return &Stub{Dim: dim}
}

func (s *Stub) Embed(ctx context.Context, setting models.Setting, texts []string) ([][]float64, error) {
	dim := s.Dim
	if dim <= 0 {
		dim = setting.VectorDim
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, dim)
	}
	return out, nil
}

// hashVector derives a deterministic pseudo-embedding from text so that
// similar strings land closer together than dissimilar ones, using a
// simple rolling hash per dimension bucket.
func hashVector(text string, dim int) []float64 {
	vec := make([]float64, dim)
	if dim == 0 {
		return vec
	}
	var h uint32 = 2166136261
	for i, r := range text {
		h ^= uint32(r)
		h *= 16777619
		vec[i%dim] += float64(h%1000) / 1000.0
	}
	return vec
}
