package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/scoring"
)

func scoredDefault(t *testing.T, score func(i int) int) (*models.Framework, models.ScoringResult) {
	t.Helper()
	fw := framework.Default()
	var responses []models.Response
	for i, ref := range fw.Refs() {
		responses = append(responses, models.Response{QuestionID: ref.Question.ID, Score: score(i)})
	}
	return fw, scoring.Score(fw, responses)
}

func TestBuildGateScores(t *testing.T) {
	// Alternate 5 and 1 so every gate sits at 6/10
	fw, result := scoredDefault(t, func(i int) int {
		if i%2 == 0 {
			return 5
		}
		return 1
	})

	r := Build(Meta{AssessmentID: "a-1", TeamName: "Payments"}, fw, result)
	require.Len(t, r.GateScores, 20)
	for _, g := range r.GateScores {
		assert.Equal(t, 6, g.Score, g.GateID)
		assert.Equal(t, 10, g.MaxScore, g.GateID)
		assert.Equal(t, 60.0, g.Percentage, g.GateID)
	}

	assert.Equal(t, 60.0, r.OverallScore)
	assert.Equal(t, 3, r.MaturityLevel.Level)
	assert.Len(t, r.TopStrengths, TopItems)
	assert.Len(t, r.TopGaps, TopItems)

	require.NotEmpty(t, r.Recommendations)
	gapRecs := 0
	for _, rec := range r.Recommendations {
		if strings.HasPrefix(rec, "Address identified gap: ") {
			gapRecs++
		}
	}
	assert.Equal(t, GapRecommendations, gapRecs)
	assert.Equal(t, levelGuidance[3], r.Recommendations[len(r.Recommendations)-1])
}

func TestBuildPerfectScoreHasNoGaps(t *testing.T) {
	fw, result := scoredDefault(t, func(int) int { return 5 })
	r := Build(Meta{}, fw, result)

	assert.Equal(t, 100.0, r.OverallScore)
	assert.Equal(t, "Optimizing", r.MaturityLevel.Name)
	assert.Empty(t, r.TopGaps)
	assert.Equal(t, []string{levelGuidance[5]}, r.Recommendations)
}

func TestBuildWeakestDomain(t *testing.T) {
	fw := &models.Framework{
		ID:   "flat",
		Name: "Flat",
		Domains: []models.Domain{
			{ID: "a", Name: "Alpha", Weight: 0.5, Questions: []models.Question{{ID: "q1", Text: "One"}}},
			{ID: "b", Name: "Beta", Weight: 0.5, Questions: []models.Question{{ID: "q2", Text: "Two"}}},
		},
	}
	result := scoring.Score(fw, []models.Response{{QuestionID: "q1", Score: 5}, {QuestionID: "q2", Score: 3}})

	r := Build(Meta{}, fw, result)
	assert.Empty(t, r.GateScores)
	assert.Contains(t, r.Recommendations, "Prioritize Beta, the lowest scoring domain at 60%.")
}

func TestRenderFormats(t *testing.T) {
	fw, result := scoredDefault(t, func(i int) int { return i % 6 })
	r := Build(Meta{TeamName: "Core"}, fw, result)

	var text bytes.Buffer
	require.NoError(t, Render(&text, r, FormatText))
	assert.Contains(t, text.String(), "Core - DevOps Maturity Model")
	assert.Contains(t, text.String(), "Security & Compliance")
	assert.Contains(t, text.String(), "Recommendations\n===============")

	var md bytes.Buffer
	require.NoError(t, Render(&md, r, FormatMarkdown))
	assert.Contains(t, md.String(), "# Core - DevOps Maturity Model")
	assert.Contains(t, md.String(), "## Domains")
	assert.Contains(t, md.String(), "| Domain |")

	var js bytes.Buffer
	require.NoError(t, Render(&js, r, FormatJSON))
	var decoded Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, r.OverallScore, decoded.OverallScore)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "md": FormatMarkdown, "JSON": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}
