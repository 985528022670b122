package vectorstore

import (
	"context"
	"testing"

	"github.com/agentoven/agent-runtime/pkg/models"
)

func TestEnsureCollectionIsIdempotent(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	if err := d.EnsureCollection(ctx, "Agent", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.EnsureCollection(ctx, "Agent", 4); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
}

func TestEnsureCollectionDetectsDimensionConflict(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	_ = d.EnsureCollection(ctx, "Agent", 4)
	err := d.EnsureCollection(ctx, "Agent", 8)
	if err == nil {
		t.Fatal("expected a dimension conflict error")
	}
	if _, ok := err.(*models.DimensionConflictError); !ok {
		t.Fatalf("expected *models.DimensionConflictError, got %T", err)
	}
}

func TestInsertAndQueryRanksByCosineSimilarity(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	_ = d.EnsureCollection(ctx, "Agent", 2)

	_, err := d.Insert(ctx, "Agent", []models.Feedback{
		{Observation: models.Observation{Name: "o1"}, Vector: []float64{1, 0}},
		{Observation: models.Observation{Name: "o2"}, Vector: []float64{0, 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, err := d.Query(ctx, "Agent", []float64{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Feedback.Observation.Name != "o1" {
		t.Fatalf("expected o1 as the top match, got %+v", matches)
	}
}

func TestQueryFiltersByTags(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	_ = d.EnsureCollection(ctx, "Agent", 2)

	_, _ = d.Insert(ctx, "Agent", []models.Feedback{
		{Observation: models.Observation{Name: "o1"}, StateName: "greeting", Vector: []float64{1, 0}},
		{Observation: models.Observation{Name: "o2"}, StateName: "close", Vector: []float64{1, 0}},
	})

	matches, err := d.Query(ctx, "Agent", []float64{1, 0}, 10, []string{"state_name:close"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Feedback.Observation.Name != "o2" {
		t.Fatalf("expected only o2 to match the tag filter, got %+v", matches)
	}
}

func TestDeleteAllKeepsCollection(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	_ = d.EnsureCollection(ctx, "Agent", 2)
	_, _ = d.Insert(ctx, "Agent", []models.Feedback{{Vector: []float64{1, 0}}})

	if err := d.DeleteAll(ctx, "Agent"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ := d.List(ctx, "Agent", 0, 0)
	if len(list) != 0 {
		t.Fatalf("expected empty collection after DeleteAll, got %d entries", len(list))
	}
	if err := d.EnsureCollection(ctx, "Agent", 2); err != nil {
		t.Fatalf("collection should still exist after DeleteAll: %v", err)
	}
}

func TestDropCollectionRemovesSchema(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	_ = d.EnsureCollection(ctx, "Agent", 2)
	_ = d.DropCollection(ctx, "Agent")

	// A fresh dimension should now be accepted without a conflict.
	if err := d.EnsureCollection(ctx, "Agent", 99); err != nil {
		t.Fatalf("expected no conflict after drop, got %v", err)
	}
}

func TestInsertGeneratesFreshIDPerCall(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()
	_ = d.EnsureCollection(ctx, "Agent", 2)

	ids1, _ := d.Insert(ctx, "Agent", []models.Feedback{{Vector: []float64{1, 0}}})
	ids2, _ := d.Insert(ctx, "Agent", []models.Feedback{{Vector: []float64{0, 1}}})
	if ids1[0] == ids2[0] {
		t.Fatalf("expected distinct ids per insert call, got %q twice", ids1[0])
	}
}
