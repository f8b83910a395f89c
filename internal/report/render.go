package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects how a report is rendered
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat maps user input to a Format, defaulting to text
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "ascii", "table":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType returns the HTTP content type of a format
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render writes the report in the given format
func Render(w io.Writer, r *Report, f Format) error {
	if f == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	var b strings.Builder
	heading := func(s string) {
		if f == FormatMarkdown {
			fmt.Fprintf(&b, "\n## %s\n\n", s)
		} else {
			fmt.Fprintf(&b, "\n%s\n%s\n", s, strings.Repeat("=", len(s)))
		}
	}

	title := r.FrameworkName
	if r.TeamName != "" {
		title = r.TeamName + " - " + r.FrameworkName
	}
	if f == FormatMarkdown {
		fmt.Fprintf(&b, "# %s\n", title)
	} else {
		fmt.Fprintf(&b, "%s\n", title)
	}

	summary := newTable(f)
	summary.AppendHeader(table.Row{"Overall Score", "Maturity Level", "Description"})
	summary.AppendRow(table.Row{
		fmt.Sprintf("%.2f", r.OverallScore),
		fmt.Sprintf("%d - %s", r.MaturityLevel.Level, r.MaturityLevel.Name),
		r.MaturityLevel.Description,
	})
	b.WriteString("\n")
	b.WriteString(renderTable(summary, f))
	b.WriteString("\n")

	heading("Domains")
	domains := newTable(f)
	domains.AppendHeader(table.Row{"Domain", "Weight", "Score", "Level"})
	for _, d := range r.Domains {
		domains.AppendRow(table.Row{d.Name, fmt.Sprintf("%.0f%%", d.Weight*100), fmt.Sprintf("%d%%", d.DisplayScore), d.MaturityLevel})
	}
	domains.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	b.WriteString(renderTable(domains, f))
	b.WriteString("\n")

	if len(r.GateScores) > 0 {
		heading("Gates")
		gates := newTable(f)
		gates.AppendHeader(table.Row{"Gate", "Score", "Percentage"})
		for _, g := range r.GateScores {
			gates.AppendRow(table.Row{g.Name, fmt.Sprintf("%d/%d", g.Score, g.MaxScore), fmt.Sprintf("%.2f%%", g.Percentage)})
		}
		gates.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 50},
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
		})
		b.WriteString(renderTable(gates, f))
		b.WriteString("\n")
	}

	writeList(&b, heading, "Strengths", r.TopStrengths)
	writeList(&b, heading, "Gaps", r.TopGaps)
	writeList(&b, heading, "Recommendations", r.Recommendations)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, heading func(string), title string, items []string) {
	if len(items) == 0 {
		return
	}
	heading(title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func newTable(f Format) table.Writer {
	t := table.NewWriter()
	if f != FormatMarkdown {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func renderTable(t table.Writer, f Format) string {
	if f == FormatMarkdown {
		return t.RenderMarkdown() + "\n"
	}
	return t.Render() + "\n"
}
