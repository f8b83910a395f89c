package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/report"
	"github.com/terra-clan/maturity-engine/pkg/client"
)

var submitFlags struct {
	server     string
	apiKey     string
	assessment string
	responses  string
	format     string
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Save responses and submit an assessment on a maturity-engine server",
	Long: "Optionally uploads a response file, then submits the assessment and prints its report.\n" +
		"The API key defaults to $MATURITY_API_KEY.",
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.server, "server", "http://localhost:8080", "Server base URL")
	f.StringVar(&submitFlags.apiKey, "api-key", os.Getenv("MATURITY_API_KEY"), "API key")
	f.StringVar(&submitFlags.assessment, "assessment", "", "Assessment ID (required)")
	f.StringVarP(&submitFlags.responses, "responses", "r", "", "Responses file to save before submitting")
	f.StringVar(&submitFlags.format, "format", "text", "Report format: text, markdown or json")

	_ = submitCmd.MarkFlagRequired("assessment")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(submitFlags.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c := client.NewClient(strings.TrimRight(submitFlags.server, "/"), submitFlags.apiKey)
	out := cmd.OutOrStdout()

	if submitFlags.responses != "" {
		data, err := readInput(cmd.InOrStdin(), submitFlags.responses)
		if err != nil {
			return err
		}
		responses, err := assessment.ParseResponses(data)
		if err != nil {
			return err
		}
		if _, err := c.SaveResponses(ctx, submitFlags.assessment, responses); err != nil {
			return fmt.Errorf("save responses: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %d responses\n", len(responses))
	}

	a, err := c.Submit(ctx, submitFlags.assessment)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && len(apiErr.Missing()) > 0 {
			return fmt.Errorf("assessment is incomplete, unanswered: %s", strings.Join(apiErr.Missing(), ", "))
		}
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "assessment %s completed: %.2f%%, level %d\n", a.ID, *a.OverallScore, *a.MaturityLevel)

	if format == report.FormatJSON {
		rep, err := c.GetReport(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("get report: %w", err)
		}
		return report.Render(out, rep, format)
	}

	rendered, err := c.RenderReport(ctx, a.ID, format)
	if err != nil {
		return fmt.Errorf("get report: %w", err)
	}
	fmt.Fprint(out, rendered)
	return nil
}
