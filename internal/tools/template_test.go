package tools

import "testing"

func TestRenderSubstitutesPlainVars(t *testing.T) {
	got, err := Render("https://api.example.com/{{city}}", map[string]interface{}{"city": "austin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://api.example.com/austin" {
		t.Errorf("got %q", got)
	}
}

func TestRenderLeavesUnknownVarsUntouched(t *testing.T) {
	got, _ := Render("{{missing}}", map[string]interface{}{})
	if got != "{{missing}}" {
		t.Errorf("got %q, want placeholder left as-is", got)
	}
}

func TestRenderEvaluatesExprExpression(t *testing.T) {
	got, err := Render(`expr:arguments.city + "," + arguments.country_code`, map[string]interface{}{
		"city":         "Austin",
		"country_code": "US",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Austin,US" {
		t.Errorf("got %q, want %q", got, "Austin,US")
	}
}

func TestExtractVariablesFindsDistinctNamesInOrder(t *testing.T) {
	got := ExtractVariables("{{a}}/{{b}}/{{a}}")
	want := []string{"a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExtractVariablesIgnoresExprTemplates(t *testing.T) {
	got := ExtractVariables("expr:arguments.city")
	if got != nil {
		t.Errorf("expected nil for expr templates, got %v", got)
	}
}

func TestDefinitionsAlwaysIncludesSendMessageToUser(t *testing.T) {
	specs := Definitions(nil)
	if len(specs) != 1 || specs[0].Name != "send_message_to_user" {
		t.Fatalf("expected exactly the built-in tool, got %+v", specs)
	}
}
