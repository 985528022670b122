// Package tools renders RequestTool URL/header/body templates and
// converts tool descriptors into the OpenAI-compatible function-calling
// schema the LLM Gateway sends upstream.
package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/agentoven/agent-runtime/pkg/contracts"
	"github.com/agentoven/agent-runtime/pkg/models"
)

// templateVarRegex matches a plain {{argument_name}} placeholder.
var templateVarRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// exprPrefix marks a template value as a full expr-lang expression rather
// than plain substitution, per SPEC_FULL.md §4.9.
const exprPrefix = "expr:"

// Render substitutes {{argument_name}} placeholders in tmpl using args, or,
// if tmpl begins with "expr:", evaluates the remainder as an expr-lang
// expression against an "arguments" environment variable.
func Render(tmpl string, args map[string]interface{}) (string, error) {
	if strings.HasPrefix(tmpl, exprPrefix) {
		return renderExpr(strings.TrimPrefix(tmpl, exprPrefix), args)
	}
	return renderVars(tmpl, args), nil
}

func renderVars(tmpl string, args map[string]interface{}) string {
	return templateVarRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := templateVarRegex.FindStringSubmatch(match)[1]
		if v, ok := args[name]; ok {
			return fmt.Sprintf("%v", v)
		}
		return match
	})
}

func renderExpr(exprSrc string, args map[string]interface{}) (string, error) {
	env := map[string]interface{}{"arguments": args}
	program, err := expr.Compile(exprSrc, expr.Env(env))
	if err != nil {
		return "", fmt.Errorf("compile expr template: %w", err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return "", fmt.Errorf("evaluate expr template: %w", err)
	}
	return fmt.Sprintf("%v", out), nil
}

// ExtractVariables returns the distinct {{name}} placeholders referenced
// in tmpl, in first-occurrence order. It does not inspect expr: templates.
func ExtractVariables(tmpl string) []string {
	if strings.HasPrefix(tmpl, exprPrefix) {
		return nil
	}
	matches := templateVarRegex.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// RenderHeaders applies Render to every header value.
func RenderHeaders(headers map[string]string, args map[string]interface{}) (map[string]string, error) {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		rendered, err := Render(v, args)
		if err != nil {
			return nil, err
		}
		out[k] = rendered
	}
	return out, nil
}

// Definitions converts the built-in send_message_to_user tool plus every
// RequestTool into the contracts.ToolSpec shape the LLM Gateway forwards
// to the model.
func Definitions(requestTools []models.RequestTool) []contracts.ToolSpec {
	specs := []contracts.ToolSpec{sendMessageToUserSpec()}
	for _, t := range requestTools {
		specs = append(specs, requestToolSpec(t))
	}
	return specs
}

func sendMessageToUserSpec() contracts.ToolSpec {
	return contracts.ToolSpec{
		Name:        models.SendMessageToUserTool,
		Description: "Send a visible reply to the user. Ends the current turn.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"agent_message": map[string]interface{}{
					"type":        "string",
					"description": "The text to show the user.",
				},
			},
			"required": []string{"agent_message"},
		},
	}
}

func requestToolSpec(t models.RequestTool) contracts.ToolSpec {
	return contracts.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  describeSchema(t),
	}
}

// describeSchema returns the tool's declared parameter_schema if present,
// otherwise a permissive open-object schema.
func describeSchema(t models.RequestTool) map[string]interface{} {
	if len(t.ParameterSchema) > 0 {
		var schema map[string]interface{}
		if json.Unmarshal(t.ParameterSchema, &schema) == nil {
			return schema
		}
	}
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
	}
}
