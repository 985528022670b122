package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"

	"github.com/agentoven/agent-runtime/pkg/contracts"
	runtimemodels "github.com/agentoven/agent-runtime/pkg/models"
)

// MaxListPageSize bounds the limit parameter of List, per SPEC_FULL.md §4.3.
const MaxListPageSize = 10000

// vectorDimProperty is a sidecar Weaviate property used to remember the
// dimension a collection was created with, since Weaviate class schemas
// don't otherwise expose vector dimension for inspection.
const vectorDimProperty = "vector_dim"

// WeaviateDriver is the production contracts.VectorStoreDriver backed by
// github.com/weaviate/weaviate-go-client/v5.
type WeaviateDriver struct {
	client *weaviate.Client
}

// NewWeaviateDriver builds a driver against the Weaviate instance at url.
func NewWeaviateDriver(url string) (*WeaviateDriver, error) {
	scheme, host, err := splitSchemeHost(url)
	if err != nil {
		return nil, err
	}
	cfg := weaviate.Config{Host: host, Scheme: scheme}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	return &WeaviateDriver{client: client}, nil
}

func splitSchemeHost(url string) (scheme, host string, err error) {
	if strings.HasPrefix(url, "https://") {
		return "https", strings.TrimPrefix(url, "https://"), nil
	}
	if strings.HasPrefix(url, "http://") {
		return "http", strings.TrimPrefix(url, "http://"), nil
	}
	return "", "", fmt.Errorf("vector_db_url must start with http:// or https://: %q", url)
}

func (d *WeaviateDriver) EnsureCollection(ctx context.Context, collection string, dim int) error {
	existing, err := d.client.Schema().ClassGetter().WithClassName(collection).Do(ctx)
	if err == nil && existing != nil {
		got, err := d.existingDim(ctx, collection)
		if err != nil {
			return err
		}
		if got != 0 && got != dim {
			return &runtimemodels.DimensionConflictError{Collection: collection, Want: dim, Got: got}
		}
		return nil
	}

	class := &weaviatemodels.Class{
		Class:      collection,
		Vectorizer: "none",
		VectorIndexConfig: map[string]interface{}{
			"distance":       "cosine",
			"efConstruction": 128,
			"maxConnections": 64,
		},
		Properties: []*weaviatemodels.Property{
			{Name: "observation_name", DataType: []string{"text"}},
			{Name: "observation_content", DataType: []string{"text"}},
			{Name: "action_name", DataType: []string{"text"}},
			{Name: "action_content", DataType: []string{"text"}},
			{Name: "state_name", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: vectorDimProperty, DataType: []string{"int"}},
		},
	}
	if err := d.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	return nil
}

// existingDim reads the vector_dim sidecar property off one existing
// object in collection, since Weaviate class schemas don't otherwise
// expose vector dimension for inspection. Returns 0 if the collection
// is empty, meaning no conflict is yet possible.
func (d *WeaviateDriver) existingDim(ctx context.Context, collection string) (int, error) {
	resp, err := d.client.Data().ObjectsGetter().
		WithClassName(collection).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return 0, &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	if len(resp) == 0 {
		return 0, nil
	}
	m, _ := resp[0].Properties.(map[string]interface{})
	return intProp(m, vectorDimProperty), nil
}

func (d *WeaviateDriver) Insert(ctx context.Context, collection string, feedbacks []runtimemodels.Feedback) ([]string, error) {
	ids := make([]string, 0, len(feedbacks))
	for _, f := range feedbacks {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		props := map[string]interface{}{
			"observation_name":    f.Observation.Name,
			"observation_content": f.Observation.Content,
			"action_name":         f.Action.Name,
			"action_content":      f.Action.Content,
			"state_name":          f.StateName,
			"tags":                f.Tags(),
			vectorDimProperty:     len(f.Vector),
		}
		vector := make([]float32, len(f.Vector))
		for i, v := range f.Vector {
			vector[i] = float32(v)
		}
		_, err := d.client.Data().Creator().
			WithClassName(collection).
			WithID(id).
			WithProperties(props).
			WithVector(vector).
			Do(ctx)
		if err != nil {
			return nil, &runtimemodels.TransportError{Provider: "weaviate", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *WeaviateDriver) Query(ctx context.Context, collection string, vector []float64, topK int, filterTags []string) ([]contracts.VectorMatch, error) {
	vec32 := make([]float32, len(vector))
	for i, v := range vector {
		vec32[i] = float32(v)
	}

	fields := []graphql.Field{
		{Name: "observation_name"}, {Name: "observation_content"},
		{Name: "action_name"}, {Name: "action_content"},
		{Name: "state_name"}, {Name: "tags"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	nearVector := d.client.GraphQL().NearVectorArgBuilder().WithVector(vec32)

	builder := d.client.GraphQL().Get().
		WithClassName(collection).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK)

	if len(filterTags) > 0 {
		var ops []*filters.WhereBuilder
		for _, tag := range filterTags {
			ops = append(ops, filters.Where().
				WithPath([]string{"tags"}).
				WithOperator(filters.ContainsAny).
				WithValueText(tag))
		}
		where := ops[0]
		if len(ops) > 1 {
			where = filters.Where().WithOperator(filters.And).WithOperands(ops)
		}
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	return parseGraphQLMatches(resp, collection)
}

func (d *WeaviateDriver) List(ctx context.Context, collection string, offset, limit int) ([]runtimemodels.Feedback, error) {
	if limit <= 0 || limit > MaxListPageSize {
		limit = MaxListPageSize
	}
	resp, err := d.client.Data().ObjectsGetter().
		WithClassName(collection).
		WithLimit(limit).
		WithOffset(offset).
		Do(ctx)
	if err != nil {
		return nil, &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}

	out := make([]runtimemodels.Feedback, 0, len(resp))
	for _, obj := range resp {
		out = append(out, feedbackFromProperties(string(obj.ID), obj.Properties))
	}
	return out, nil
}

func (d *WeaviateDriver) DeleteAll(ctx context.Context, collection string) error {
	resp, err := d.client.Data().ObjectsGetter().
		WithClassName(collection).
		WithLimit(MaxListPageSize).
		Do(ctx)
	if err != nil {
		return &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	for _, obj := range resp {
		if err := d.client.Data().Deleter().
			WithClassName(collection).
			WithID(string(obj.ID)).
			Do(ctx); err != nil {
			return &runtimemodels.TransportError{Provider: "weaviate", Err: err}
		}
	}
	return nil
}

func (d *WeaviateDriver) DropCollection(ctx context.Context, collection string) error {
	if err := d.client.Schema().ClassDeleter().WithClassName(collection).Do(ctx); err != nil {
		return &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	return nil
}

func (d *WeaviateDriver) HealthCheck(ctx context.Context) error {
	live, err := d.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return &runtimemodels.TransportError{Provider: "weaviate", Err: err}
	}
	if !live {
		return &runtimemodels.ProviderError{Provider: "weaviate", Reason: "not live"}
	}
	return nil
}

func feedbackFromProperties(id string, props weaviatemodels.PropertySchema) runtimemodels.Feedback {
	m, _ := props.(map[string]interface{})
	return runtimemodels.Feedback{
		ID:        id,
		StateName: stringProp(m, "state_name"),
		Observation: runtimemodels.Observation{
			Name:    stringProp(m, "observation_name"),
			Content: stringProp(m, "observation_content"),
		},
		Action: runtimemodels.FeedbackAction{
			Name:    stringProp(m, "action_name"),
			Content: stringProp(m, "action_content"),
		},
	}
}

func stringProp(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// intProp reads a numeric property. Weaviate returns sidecar int
// properties as float64 once decoded through the REST JSON response.
func intProp(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func parseGraphQLMatches(resp *weaviatemodels.GraphQLResponse, collection string) ([]contracts.VectorMatch, error) {
	if resp == nil || len(resp.Errors) > 0 {
		if resp != nil && len(resp.Errors) > 0 {
			return nil, &runtimemodels.ProviderError{Provider: "weaviate", Reason: resp.Errors[0].Message}
		}
		return nil, nil
	}

	getData, _ := resp.Data["Get"].(map[string]interface{})
	rows, _ := getData[collection].([]interface{})

	out := make([]contracts.VectorMatch, 0, len(rows))
	for _, row := range rows {
		m, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		additional, _ := m["_additional"].(map[string]interface{})
		id, _ := additional["id"].(string)
		distance, _ := additional["distance"].(float64)

		out = append(out, contracts.VectorMatch{
			Feedback: feedbackFromProperties(id, m),
			Score:    1 - distance, // cosine distance -> similarity
		})
	}
	return out, nil
}
