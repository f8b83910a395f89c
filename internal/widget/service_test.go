package widget

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/ingest"
	"github.com/terra-clan/maturity-engine/internal/kvstore"
	"github.com/terra-clan/maturity-engine/internal/models"
)

const smallFramework = `
meta:
  name: Tiny
domains:
  - id: build
    name: Build
    weight: 0.5
    questions:
      - id: b1
        text: Is the build reproducible?
  - id: run
    name: Run
    weight: 0.5
    questions:
      - id: r1
        text: Are alerts actionable?
`

func newTestService(t *testing.T) (*Service, *ingest.Manager) {
	t.Helper()
	store, err := kvstore.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	frameworks := ingest.NewManager(store, nil, time.Minute)
	return NewService(store, frameworks, nil), frameworks
}

func allAnswered(fw *models.Framework, score int) []models.Response {
	var out []models.Response
	for _, ref := range fw.Refs() {
		out = append(out, models.Response{QuestionID: ref.Question.ID, Score: score})
	}
	return out
}

func TestSubmitAgainstDefaultFramework(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	entry, err := s.Submit(ctx, "acme", "Payments", allAnswered(framework.Default(), 4))
	require.NoError(t, err)
	assert.Equal(t, framework.DefaultID, entry.FrameworkID)
	assert.Equal(t, 80.0, entry.OverallScore)
	assert.Equal(t, 4, entry.MaturityLevel)
	assert.Len(t, entry.DomainScores, 5)
	assert.Equal(t, 80, entry.DomainScores["domain1"])
	assert.Len(t, entry.Responses, 40)

	history, err := s.History(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)

	got, err := s.Entry(ctx, "acme", entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Payments", got.TeamName)

	missing, err := s.Entry(ctx, "acme", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubmitUsesActiveCustomFramework(t *testing.T) {
	s, frameworks := newTestService(t)
	ctx := context.Background()

	_, err := frameworks.Upload(ctx, "acme", []byte(smallFramework))
	require.NoError(t, err)
	fw, err := frameworks.Confirm(ctx, "acme")
	require.NoError(t, err)

	entry, err := s.Submit(ctx, "acme", "Core", []models.Response{
		{QuestionID: "b1", Score: 5},
		{QuestionID: "r1", Score: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, fw.ID, entry.FrameworkID)
	assert.Equal(t, "Tiny", entry.FrameworkName)
	assert.Equal(t, 60.0, entry.OverallScore)
	assert.Equal(t, map[string]int{"build": 100, "run": 20}, entry.DomainScores)

	// Another scope still uses the default framework
	_, err = s.Submit(ctx, "globex", "Core", []models.Response{{QuestionID: "b1", Score: 5}})
	assert.ErrorIs(t, err, assessment.ErrUnknownQuestion)
}

func TestSubmitRequiresEveryQuestion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	responses := allAnswered(framework.Default(), 3)
	_, err := s.Submit(ctx, "acme", "Payments", responses[:len(responses)-1])
	require.Error(t, err)

	var incomplete *assessment.IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{responses[len(responses)-1].QuestionID}, incomplete.Missing)

	_, err = s.Submit(ctx, "acme", "", responses)
	assert.ErrorIs(t, err, assessment.ErrInvalidInput)

	bad := append([]models.Response{}, responses...)
	bad[0].Score = 9
	_, err = s.Submit(ctx, "acme", "Payments", bad)
	assert.ErrorIs(t, err, assessment.ErrScoreOutOfRange)

	history, err := s.History(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryIsNewestFirstAndCapped(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	responses := allAnswered(framework.Default(), 2)

	for i := 0; i < HistoryLimit+3; i++ {
		_, err := s.Submit(ctx, "acme", fmt.Sprintf("team-%02d", i), responses)
		require.NoError(t, err)
	}

	history, err := s.History(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, history, HistoryLimit)
	assert.Equal(t, fmt.Sprintf("team-%02d", HistoryLimit+2), history[0].TeamName)
	assert.Equal(t, "team-03", history[HistoryLimit-1].TeamName)
}
