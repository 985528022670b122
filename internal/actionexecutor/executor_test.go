package actionexecutor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/agent-runtime/pkg/models"
)

func TestExecuteSendMessageToUser(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), models.Action{
		Name:      models.SendMessageToUserTool,
		Arguments: map[string]interface{}{"agent_message": "hello there"},
	}, nil)

	if result.ExecState != models.ExecSuccess || result.Content != "hello there" {
		t.Fatalf("got %+v", result)
	}
}

func TestExecuteUnknownToolIsSkipped(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), models.Action{Name: "does_not_exist"}, nil)
	if result.ExecState != models.ExecSkipped || result.Error != "unknown tool" {
		t.Fatalf("got %+v", result)
	}
}

func TestExecuteRequestToolSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-City") != "austin" {
			t.Errorf("expected rendered header, got %q", r.Header.Get("X-City"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := New()
	tool := models.RequestTool{
		Name:    "lookup",
		Method:  http.MethodGet,
		URL:     srv.URL,
		Headers: map[string]string{"X-City": "{{city}}"},
	}
	result := e.Execute(context.Background(), models.Action{
		Name:      "lookup",
		Arguments: map[string]interface{}{"city": "austin"},
	}, []models.RequestTool{tool})

	if result.ExecState != models.ExecSuccess || result.Content != "ok" {
		t.Fatalf("got %+v", result)
	}
}

func TestExecuteRequestToolNon2xxIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad input"))
	}))
	defer srv.Close()

	e := New()
	tool := models.RequestTool{Name: "lookup", Method: http.MethodGet, URL: srv.URL}
	result := e.Execute(context.Background(), models.Action{Name: "lookup"}, []models.RequestTool{tool})

	if result.ExecState != models.ExecFailed {
		t.Fatalf("expected failed exec state, got %+v", result)
	}
	if result.Content != "bad input" {
		t.Errorf("expected body to be kept on failure, got %q", result.Content)
	}
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	e := New()
	actions := []models.Action{
		{Name: models.SendMessageToUserTool, Arguments: map[string]interface{}{"agent_message": "a"}},
		{Name: models.SendMessageToUserTool, Arguments: map[string]interface{}{"agent_message": "b"}},
		{Name: models.SendMessageToUserTool, Arguments: map[string]interface{}{"agent_message": "c"}},
	}
	results := e.ExecuteBatch(context.Background(), actions, nil)
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if results[i].Content != w {
			t.Fatalf("results[%d] = %q, want %q", i, results[i].Content, w)
		}
	}
}
