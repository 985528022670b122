package embeddinggateway

import (
	"context"
	"testing"

	"github.com/agentoven/agent-runtime/pkg/models"
)

func TestStubEmbedReturnsOneVectorPerText(t *testing.T) {
	stub := NewStub(8)
	vecs, err := stub.Embed(context.Background(), models.Setting{VectorDim: 8}, []string{"hello", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	for _, v := range vecs {
		if len(v) != 8 {
			t.Errorf("vector dim = %d, want 8", len(v))
		}
	}
}

func TestStubEmbedIsDeterministic(t *testing.T) {
	stub := NewStub(8)
	v1, _ := stub.Embed(context.Background(), models.Setting{}, []string{"hello"})
	v2, _ := stub.Embed(context.Background(), models.Setting{}, []string{"hello"})
	for i := range v1[0] {
		if v1[0][i] != v2[0][i] {
			t.Fatalf("expected deterministic embedding, got %v vs %v", v1[0], v2[0])
		}
	}
}

func TestWithBatchSizeOption(t *testing.T) {
	c := New(WithBatchSize(7))
	if c.batchSize != 7 {
		t.Errorf("batchSize = %d, want 7", c.batchSize)
	}
}
