package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/report"
	"github.com/terra-clan/maturity-engine/internal/scoring"
)

// scoreFlags is shared by score and report
var scoreFlags struct {
	framework string
	responses string
	format    string
	team      string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a complete response set offline",
	RunE:  runScore,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the full maturity report of a response set",
	RunE:  runReport,
}

func init() {
	for _, c := range []*cobra.Command{scoreCmd, reportCmd} {
		f := c.Flags()
		f.StringVarP(&scoreFlags.framework, "framework", "f", "default", "Framework file, or \"default\" for the built-in framework")
		f.StringVarP(&scoreFlags.responses, "responses", "r", "", "Responses file (JSON or YAML), or - for stdin (required)")
		f.StringVar(&scoreFlags.format, "format", "text", "Output format: text, markdown or json")
		f.StringVar(&scoreFlags.team, "team", "", "Team name shown in the output")
		_ = c.MarkFlagRequired("responses")
	}
}

func scoreInputs(cmd *cobra.Command) (*models.Framework, models.ScoringResult, report.Format, error) {
	format, err := report.ParseFormat(scoreFlags.format)
	if err != nil {
		return nil, models.ScoringResult{}, "", err
	}
	fw, err := loadFramework(cmd.InOrStdin(), scoreFlags.framework)
	if err != nil {
		return nil, models.ScoringResult{}, "", err
	}
	responses, err := loadResponses(cmd.InOrStdin(), scoreFlags.responses, fw)
	if err != nil {
		return nil, models.ScoringResult{}, "", err
	}
	return fw, scoring.Score(fw, responses), format, nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	fw, result, format, err := scoreInputs(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if format == report.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s: %.2f%% - Level %d %s", titleOf(fw), result.OverallScore, result.MaturityLevel, result.MaturityName))
	t.AppendHeader(table.Row{"Domain", "Weight", "Score", "Level", "Answers"})
	for _, ds := range result.DomainScores {
		t.AppendRow(table.Row{
			ds.Name,
			fmt.Sprintf("%.0f%%", ds.Weight*100),
			fmt.Sprintf("%.2f", ds.Score),
			ds.MaturityLevel,
			fmt.Sprintf("%d/%d", ds.Current, ds.Max),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	if format == report.FormatMarkdown {
		fmt.Fprintln(out, t.RenderMarkdown())
	} else {
		fmt.Fprintln(out, t.Render())
	}
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	fw, result, format, err := scoreInputs(cmd)
	if err != nil {
		return err
	}
	rep := report.Build(report.Meta{TeamName: scoreFlags.team}, fw, result)
	return report.Render(cmd.OutOrStdout(), rep, format)
}

func titleOf(fw *models.Framework) string {
	if scoreFlags.team != "" {
		return scoreFlags.team + " - " + fw.Name
	}
	return fw.Name
}
