// Package mcptools exposes framework validation and scoring as MCP tools.
//
// Each tool follows the same shape:
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tools are stateless: documents travel in the tool arguments.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/report"
	"github.com/terra-clan/maturity-engine/internal/scoring"
)

// New creates an MCP server with every maturity tool registered
func New(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"maturity-engine",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	validate := NewValidateTool()
	s.AddTool(validate.Definition(), validate.Handle)

	score := NewScoreTool(nil)
	s.AddTool(score.Definition(), score.Handle)

	template := NewTemplateTool()
	s.AddTool(template.Definition(), template.Handle)

	return s
}

// ValidateTool handles the validate_framework MCP tool.
type ValidateTool struct{}

// NewValidateTool creates a ValidateTool.
func NewValidateTool() *ValidateTool {
	return &ValidateTool{}
}

// Definition returns the MCP tool definition for validate_framework.
func (t *ValidateTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_framework",
		mcp.WithDescription(
			"Validate a custom maturity framework document (JSON or YAML). "+
				"Returns every structural error and weight warning found.",
		),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("The framework document with meta and domains"),
		),
	)
}

// Handle processes the validate_framework tool call.
func (t *ValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := req.GetString("document", "")
	if strings.TrimSpace(doc) == "" {
		return mcp.NewToolResultError("document is required"), nil
	}

	result := framework.ValidateBytes([]byte(doc))

	var sb strings.Builder
	if result.Valid {
		sb.WriteString("## Framework is valid\n")
	} else {
		sb.WriteString("## Framework is invalid\n")
	}
	writeList(&sb, "Errors", result.Errors)
	writeList(&sb, "Warnings", result.Warnings)

	return mcp.NewToolResultText(sb.String()), nil
}

// ScoreTool handles the score_assessment MCP tool.
type ScoreTool struct {
	engine *scoring.Engine
}

// NewScoreTool creates a ScoreTool. A nil engine uses the default banding.
func NewScoreTool(engine *scoring.Engine) *ScoreTool {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	return &ScoreTool{engine: engine}
}

// Definition returns the MCP tool definition for score_assessment.
func (t *ScoreTool) Definition() mcp.Tool {
	return mcp.NewTool("score_assessment",
		mcp.WithDescription(
			"Score a complete set of responses against a framework and return the maturity report. "+
				"Omit the framework to use the built-in DevOps maturity model.",
		),
		mcp.WithString("responses",
			mcp.Required(),
			mcp.Description("Responses as a JSON/YAML map of question ID to score, or a list of {question_id, score}"),
		),
		mcp.WithString("framework",
			mcp.Description("Custom framework document (JSON or YAML); defaults to the built-in framework"),
		),
		mcp.WithString("team_name",
			mcp.Description("Team name shown in the report title"),
		),
		mcp.WithString("format",
			mcp.Description("Report format"),
			mcp.Enum(string(report.FormatMarkdown), string(report.FormatText), string(report.FormatJSON)),
		),
	)
}

// Handle processes the score_assessment tool call.
func (t *ScoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := report.ParseFormat(req.GetString("format", string(report.FormatMarkdown)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fw := framework.Default()
	if doc := req.GetString("framework", ""); strings.TrimSpace(doc) != "" {
		parsed, result := framework.Parse([]byte(doc))
		if !result.Valid {
			return mcp.NewToolResultError("framework is invalid: " + strings.Join(result.Errors, "; ")), nil
		}
		fw = parsed
	}

	responses, err := assessment.ParseResponses([]byte(req.GetString("responses", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := assessment.CheckResponses(fw, responses); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if missing := assessment.Missing(fw, responses); len(missing) > 0 {
		return mcp.NewToolResultError(fmt.Sprintf("%d questions are unanswered: %s",
			len(missing), strings.Join(missing, ", "))), nil
	}

	result := t.engine.Score(fw, responses)
	rep := report.Build(report.Meta{TeamName: req.GetString("team_name", "")}, fw, result)

	var sb strings.Builder
	if err := report.Render(&sb, rep, format); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// TemplateTool handles the framework_template MCP tool.
type TemplateTool struct{}

// NewTemplateTool creates a TemplateTool.
func NewTemplateTool() *TemplateTool {
	return &TemplateTool{}
}

// Definition returns the MCP tool definition for framework_template.
func (t *TemplateTool) Definition() mcp.Tool {
	return mcp.NewTool("framework_template",
		mcp.WithDescription("Return a starter custom framework document to edit and validate."),
	)
}

// Handle processes the framework_template tool call.
func (t *TemplateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(string(framework.Template())), nil
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### %s (%d)\n\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}

