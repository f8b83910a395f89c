package mcptools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/terra-clan/maturity-engine/internal/framework"
)

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

const pipelineFramework = `
meta:
  name: Pipeline Health
domains:
  - id: ci
    name: Continuous Integration
    weight: 0.6
    questions:
      - id: ci1
        text: Does every commit build?
        options:
          - {score: 0, text: "No"}
          - {score: 2, text: "Mostly"}
          - {score: 4, text: "Always"}
  - id: cd
    name: Continuous Delivery
    weight: 0.4
    questions:
      - id: cd1
        text: Can you deploy on demand?
`

func TestValidateTool_Definition(t *testing.T) {
	def := NewValidateTool().Definition()
	if def.Name != "validate_framework" {
		t.Errorf("tool name = %q, want %q", def.Name, "validate_framework")
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "document" {
		t.Errorf("required = %v, want [document]", def.InputSchema.Required)
	}
}

func TestValidateTool_Handle(t *testing.T) {
	tool := NewValidateTool()

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"document": pipelineFramework,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resultText(result), "Framework is valid") {
		t.Errorf("expected valid verdict, got:\n%s", resultText(result))
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"document": `{"meta": {"name": "Empty"}, "domains": []}`,
	}))
	text := resultText(result)
	if !strings.Contains(text, "Framework is invalid") || !strings.Contains(text, "at least one domain") {
		t.Errorf("expected invalid verdict with domain error, got:\n%s", text)
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected error result for missing document")
	}
}

func TestScoreTool_CustomFramework(t *testing.T) {
	tool := NewScoreTool(nil)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"framework": pipelineFramework,
		"responses": `{"ci1": 4, "cd1": 2}`,
		"team_name": "Checkout",
		"format":    "json",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(result))
	}

	// ci: 4/4 = 100 * 0.6, cd: 2/5 = 40 * 0.4
	text := resultText(result)
	if !strings.Contains(text, `"overall_score": 76`) {
		t.Errorf("expected overall score 76, got:\n%s", text)
	}
	if !strings.Contains(text, `"team_name": "Checkout"`) {
		t.Errorf("expected team name in report, got:\n%s", text)
	}
}

func TestScoreTool_Errors(t *testing.T) {
	tool := NewScoreTool(nil)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "incomplete default framework",
			args: map[string]interface{}{"responses": `{"g1_1_q1": 3}`},
			want: "unanswered",
		},
		{
			name: "option score not offered",
			args: map[string]interface{}{"framework": pipelineFramework, "responses": `{"ci1": 3, "cd1": 2}`},
			want: "does not accept score 3",
		},
		{
			name: "unknown question",
			args: map[string]interface{}{"framework": pipelineFramework, "responses": `{"ci1": 2, "cd1": 2, "zz": 1}`},
			want: "unknown question",
		},
		{
			name: "invalid framework",
			args: map[string]interface{}{"framework": `{"domains": []}`, "responses": `{}`},
			want: "framework is invalid",
		},
		{
			name: "unknown format",
			args: map[string]interface{}{"responses": `{}`, "format": "pdf"},
			want: "unknown report format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), makeReq(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected error result, got:\n%s", resultText(result))
			}
			if !strings.Contains(resultText(result), tt.want) {
				t.Errorf("error %q does not mention %q", resultText(result), tt.want)
			}
		})
	}
}

func TestScoreTool_DefaultFrameworkMarkdown(t *testing.T) {
	var pairs []string
	for _, ref := range framework.Default().Refs() {
		pairs = append(pairs, fmt.Sprintf("%q: 5", ref.Question.ID))
	}

	result, err := NewScoreTool(nil).Handle(context.Background(), makeReq(map[string]interface{}{
		"responses": "{" + strings.Join(pairs, ", ") + "}",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), "Optimizing") {
		t.Errorf("expected level 5 name in report, got:\n%s", resultText(result))
	}
}

func TestTemplateTool_IsValid(t *testing.T) {
	result, err := NewTemplateTool().Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := framework.ValidateBytes([]byte(resultText(result))); !r.Valid {
		t.Errorf("template is invalid: %v", r.Errors)
	}
}

func TestNewRegistersTools(t *testing.T) {
	s := New("test")
	tools := s.ListTools()
	for _, name := range []string{"validate_framework", "score_assessment", "framework_template"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}
