package storage

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/maturity-engine/internal/models"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_scores.sql":  {Data: []byte("SELECT 2")},
		"001_initial.sql": {Data: []byte("SELECT 1")},
		"README.md":       {Data: []byte("docs")},
		"old/000.sql":     {Data: []byte("SELECT 0")},
	}

	got, err := listMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_initial.sql", "002_scores.sql"}, got)

	assert.Equal(t, []string{"002_scores.sql"}, pending(got, map[string]bool{"001_initial.sql": true}))
	assert.Empty(t, pending(got, map[string]bool{"001_initial.sql": true, "002_scores.sql": true}))
}

func TestRepoMigrationsAreListed(t *testing.T) {
	got, err := listMigrations(os.DirFS("../../migrations"))
	require.NoError(t, err)
	assert.Contains(t, got, "001_initial.sql")
	assert.Contains(t, got, "002_assessment_framework_index.sql")
}

// newTestRepository connects to MATURITY_TEST_DSN and applies the migrations
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("MATURITY_TEST_DSN")
	if dsn == "" {
		t.Skip("MATURITY_TEST_DSN not set")
	}

	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, RunMigrations(ctx, repo.Pool(), "../../migrations"))
	return repo
}

func TestPostgresAssessmentRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	org := &models.Organization{ID: uuid.New().String(), Name: "Acme", Slug: "acme-" + uuid.New().String()[:8], CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateOrganization(ctx, org))
	t.Cleanup(func() { repo.DeleteOrganization(ctx, org.ID) })

	a := &models.Assessment{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		TeamName:       "Payments",
		FrameworkID:    "devops-maturity",
		Status:         models.StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.CreateAssessment(ctx, a))

	require.NoError(t, repo.SaveResponses(ctx, a.ID, []models.Response{
		{QuestionID: "q1", Score: 2, UpdatedAt: now},
		{QuestionID: "q2", Score: 4, Notes: "pipeline in place", Evidence: []string{"https://ci"}, UpdatedAt: now},
	}))
	require.NoError(t, repo.SaveResponses(ctx, a.ID, []models.Response{{QuestionID: "q1", Score: 5, UpdatedAt: now}}))

	responses, err := repo.GetResponses(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, 5, responses[0].Score)
	assert.Equal(t, []string{"https://ci"}, responses[1].Evidence)

	score, level := 77.5, 4
	a.Status = models.StatusCompleted
	a.OverallScore = &score
	a.MaturityLevel = &level
	a.CompletedAt = &now
	a.DomainScores = []models.DomainScore{{DomainID: "d1", Name: "Build", Weight: 1, Score: 77.5, DisplayScore: 78, MaturityLevel: 4, Current: 7, Max: 10}}
	require.NoError(t, repo.CompleteAssessment(ctx, a))
	assert.Error(t, repo.CompleteAssessment(ctx, a), "second completion must fail")

	got, err := repo.GetAssessment(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 77.5, *got.OverallScore)
	require.Len(t, got.DomainScores, 1)
	assert.Equal(t, 78, got.DomainScores[0].DisplayScore)
	assert.Equal(t, []string{}, got.DomainScores[0].Strengths)

	list, err := repo.ListAssessments(ctx, models.ListFilters{OrganizationID: org.ID, Status: models.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := repo.GetAssessment(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgresOrganizationAndFramework(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	org := &models.Organization{ID: uuid.New().String(), Name: "Globex", Slug: "globex-" + uuid.New().String()[:8], CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateOrganization(ctx, org))
	t.Cleanup(func() { repo.DeleteOrganization(ctx, org.ID) })

	org.Description = "Platform teams"
	org.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.UpdateOrganization(ctx, org))

	got, err := repo.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Platform teams", got.Description)

	fw := &models.Framework{
		ID:             "custom-" + uuid.New().String()[:8],
		Name:           "Release Health",
		Version:        "1.0",
		OrganizationID: org.ID,
		CreatedAt:      now,
		Domains: []models.Domain{{
			ID: "ship", Name: "Shipping", Weight: 1,
			Questions: []models.Question{{ID: "s1", Text: "Do you ship daily?"}},
		}},
	}
	require.NoError(t, repo.CreateFramework(ctx, fw))

	stored, err := repo.GetFramework(ctx, fw.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, org.ID, stored.OrganizationID)
	assert.False(t, stored.Builtin)
	require.Len(t, stored.Domains, 1)
	assert.Equal(t, "s1", stored.Domains[0].Questions[0].ID)

	list, err := repo.ListFrameworks(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	inUse, err := repo.FrameworkInUse(ctx, fw.ID)
	require.NoError(t, err)
	assert.False(t, inUse)

	a := &models.Assessment{
		ID: uuid.New().String(), OrganizationID: org.ID, TeamName: "Billing", FrameworkID: fw.ID,
		Status: models.StatusDraft, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateAssessment(ctx, a))
	inUse, err = repo.FrameworkInUse(ctx, fw.ID)
	require.NoError(t, err)
	assert.True(t, inUse)
	require.NoError(t, repo.DeleteAssessment(ctx, a.ID))

	require.NoError(t, repo.DeleteFramework(ctx, fw.ID))
	assert.Error(t, repo.DeleteFramework(ctx, fw.ID))

	missing, err := repo.GetOrganization(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
