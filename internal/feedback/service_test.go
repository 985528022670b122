package feedback

import (
	"context"
	"testing"

	"github.com/agentoven/agent-runtime/internal/embeddinggateway"
	"github.com/agentoven/agent-runtime/internal/vectorstore"
	"github.com/agentoven/agent-runtime/pkg/models"
)

func TestCollectionNamePascalCases(t *testing.T) {
	cases := map[string]string{
		"support_bot":   "SupportBot",
		"sales-agent":   "SalesAgent",
		"My Agent Name": "MyAgentName",
		"already":       "Already",
	}
	for in, want := range cases {
		if got := CollectionName(in); got != want {
			t.Errorf("CollectionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func newTestService() *Service {
	return New(vectorstore.NewMemoryDriver(), embeddinggateway.NewStub(4))
}

func testSetting() models.Setting {
	return models.Setting{AgentName: "support_bot", VectorDim: 4, VectorDBURL: "http://weaviate.local:8080"}
}

func TestAddGeneratesDistinctIDsPerFeedback(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	setting := testSetting()

	ids, err := s.Add(ctx, setting, []models.Feedback{
		{Observation: models.Observation{Name: "o1", Content: "hi"}, Action: models.FeedbackAction{Name: "reply", Content: "hello"}},
		{Observation: models.Observation{Name: "o2", Content: "bye"}, Action: models.FeedbackAction{Name: "reply", Content: "goodbye"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected two distinct ids, got %v", ids)
	}
}

func TestRetrieveReturnsEmptyWhenFeedbackDisabled(t *testing.T) {
	s := newTestService()
	setting := testSetting()
	setting.VectorDBURL = ""

	got, err := s.Retrieve(context.Background(), setting, "hi", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no feedbacks when disabled, got %+v", got)
	}
}

func TestAddThenRetrieveRoundTrips(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	setting := testSetting()

	_, err := s.Add(ctx, setting, []models.Feedback{
		{Observation: models.Observation{Name: "greeting", Content: "hi there"}, Action: models.FeedbackAction{Name: "reply", Content: "hello!"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Retrieve(ctx, setting, "hi there", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one retrieved feedback, got %d", len(got))
	}
}

func TestClearKeepsCollectionDropRemovesIt(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	setting := testSetting()

	_, _ = s.Add(ctx, setting, []models.Feedback{
		{Observation: models.Observation{Name: "o", Content: "c"}, Action: models.FeedbackAction{Name: "a", Content: "c"}},
	})

	if err := s.Clear(ctx, setting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ := s.List(ctx, setting, 0, 10)
	if len(list) != 0 {
		t.Fatalf("expected empty list after Clear, got %d", len(list))
	}

	if err := s.Drop(ctx, setting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListClampsLimitToMaxPageSize(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	setting := testSetting()
	_, _ = s.Add(ctx, setting, []models.Feedback{
		{Observation: models.Observation{Name: "o", Content: "c"}, Action: models.FeedbackAction{Name: "a", Content: "c"}},
	})

	got, err := s.List(ctx, setting, 0, MaxPageSize+1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %d", len(got))
	}
}
