package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

type memoryCollection struct {
	dim    int
	byID   map[string]models.Feedback
	order  []string // insertion order, for list()
}

// MemoryDriver is an in-process contracts.VectorStoreDriver backed by a
// brute-force cosine scan. It exists so tests can exercise the Feedback
// Service without a live Weaviate instance.
type MemoryDriver struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryDriver constructs an empty MemoryDriver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{collections: make(map[string]*memoryCollection)}
}

func (d *MemoryDriver) EnsureCollection(ctx context.Context, collection string, dim int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.collections[collection]; ok {
		if c.dim != dim {
			return &models.DimensionConflictError{Collection: collection, Want: dim, Got: c.dim}
		}
		return nil
	}
	d.collections[collection] = &memoryCollection{dim: dim, byID: make(map[string]models.Feedback)}
	return nil
}

func (d *MemoryDriver) Insert(ctx context.Context, collection string, feedbacks []models.Feedback) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections[collection]
	if !ok {
		c = &memoryCollection{byID: make(map[string]models.Feedback)}
		d.collections[collection] = c
	}

	ids := make([]string, 0, len(feedbacks))
	for _, f := range feedbacks {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		f.ID = id
		if _, exists := c.byID[id]; !exists {
			c.order = append(c.order, id)
		}
		c.byID[id] = f
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *MemoryDriver) Query(ctx context.Context, collection string, vector []float64, topK int, filterTags []string) ([]contracts.VectorMatch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[collection]
	if !ok {
		return nil, nil
	}

	var matches []contracts.VectorMatch
	for _, id := range c.order {
		f := c.byID[id]
		if !hasAllTags(f.Tags(), filterTags) {
			continue
		}
		matches = append(matches, contracts.VectorMatch{
			Feedback: f,
			Score:    cosineSimilarity(vector, f.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (d *MemoryDriver) List(ctx context.Context, collection string, offset, limit int) ([]models.Feedback, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[collection]
	if !ok {
		return nil, nil
	}
	if offset >= len(c.order) {
		return nil, nil
	}
	end := len(c.order)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.Feedback, 0, end-offset)
	for _, id := range c.order[offset:end] {
		out = append(out, c.byID[id])
	}
	return out, nil
}

func (d *MemoryDriver) DeleteAll(ctx context.Context, collection string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections[collection]
	if !ok {
		return nil
	}
	c.byID = make(map[string]models.Feedback)
	c.order = nil
	return nil
}

func (d *MemoryDriver) DropCollection(ctx context.Context, collection string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.collections, collection)
	return nil
}

func (d *MemoryDriver) HealthCheck(ctx context.Context) error {
	return nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	haveSet := make(map[string]bool, len(have))
	for _, t := range have {
		haveSet[t] = true
	}
	for _, t := range want {
		if !haveSet[t] {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
