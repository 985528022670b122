// Package actionexecutor runs a selected Action — the built-in
// send_message_to_user or a caller-supplied RequestTool — and produces
// its Result, per SPEC_FULL.md §4.9.
package actionexecutor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/agentoven/agent-runtime/internal/tools"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// MaxResponseBodySize bounds how much of a RequestTool's response body is
// kept in the resulting Step.
const MaxResponseBodySize = 64 * 1024

// Executor is the production contracts.ActionExecutor.
type Executor struct {
	client *http.Client
}

// New builds an Executor with its own http.Client (timeouts are applied
// per-request via context, not via the client's own Timeout field, since
// RequestTool.Timeout() varies per tool).
func New() *Executor {
	return &Executor{client: &http.Client{}}
}

// Execute runs action, looking it up against tools when it isn't the
// built-in send_message_to_user.
func (e *Executor) Execute(ctx context.Context, action models.Action, requestTools []models.RequestTool) models.Result {
	if action.Name == models.SendMessageToUserTool {
		return e.executeSendMessage(action)
	}

	tool, ok := findTool(requestTools, action.Name)
	if !ok {
		return models.Result{ExecState: models.ExecSkipped, Error: "unknown tool"}
	}
	return e.executeRequestTool(ctx, tool, action.Arguments)
}

// ExecuteBatch runs actions concurrently — used when the Orchestrator
// knows none of them is a terminating send_message_to_user — and returns
// their Results in the same order as actions, per the gather-and-reorder
// rule in SPEC_FULL.md §5.
func (e *Executor) ExecuteBatch(ctx context.Context, actions []models.Action, requestTools []models.RequestTool) []models.Result {
	results := make([]models.Result, len(actions))
	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func(i int, action models.Action) {
			defer wg.Done()
			results[i] = e.Execute(ctx, action, requestTools)
		}(i, action)
	}
	wg.Wait()
	return results
}

func findTool(requestTools []models.RequestTool, name string) (models.RequestTool, bool) {
	for _, t := range requestTools {
		if t.Name == name {
			return t, true
		}
	}
	return models.RequestTool{}, false
}

func (e *Executor) executeSendMessage(action models.Action) models.Result {
	message, _ := action.Arguments["agent_message"].(string)
	return models.Result{ExecState: models.ExecSuccess, Content: message}
}

func (e *Executor) executeRequestTool(ctx context.Context, tool models.RequestTool, args map[string]interface{}) models.Result {
	url, err := tools.Render(tool.URL, args)
	if err != nil {
		return models.Result{ExecState: models.ExecFailed, Error: "template error in url: " + err.Error()}
	}
	body, err := tools.Render(tool.Body, args)
	if err != nil {
		return models.Result{ExecState: models.ExecFailed, Error: "template error in body: " + err.Error()}
	}
	headers, err := tools.RenderHeaders(tool.Headers, args)
	if err != nil {
		return models.Result{ExecState: models.ExecFailed, Error: "template error in headers: " + err.Error()}
	}

	reqCtx, cancel := context.WithTimeout(ctx, tool.Timeout())
	defer cancel()

	method := tool.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		return models.Result{ExecState: models.ExecFailed, Error: "build request: " + err.Error()}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return models.Result{ExecState: models.ExecFailed, Error: "transport error: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return models.Result{ExecState: models.ExecSuccess, Content: string(respBody)}
	}
	return models.Result{
		ExecState: models.ExecFailed,
		Error:     fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(http.StatusText(resp.StatusCode))),
		Content:   string(respBody),
	}
}
