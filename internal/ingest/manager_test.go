package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/maturity-engine/internal/events"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/kvstore"
	"github.com/terra-clan/maturity-engine/internal/models"
)

const customDoc = `{
  "meta": {"name": "Team Health", "version": "3"},
  "domains": [
    {"id": "flow", "name": "Flow", "weight": 0.6, "questions": [{"id": "f1", "text": "Is WIP limited?"}]},
    {"id": "care", "name": "Care", "weight": 0.3, "questions": [{"id": "c1", "text": "Are on-call rotations fair?"}]}
  ]
}`

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(t *testing.T) (*Manager, *events.Hub, *clock) {
	t.Helper()
	store, err := kvstore.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := events.NewHub()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(store, hub, 10*time.Minute)
	m.now = c.now
	return m, hub, c
}

func TestUploadConfirmClear(t *testing.T) {
	ctx := context.Background()
	m, hub, _ := newTestManager(t)
	sub := hub.Subscribe("")
	defer sub.Close()

	status, err := m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StateNoCustomFramework, status.State)

	fw, custom, err := m.Active(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, custom)
	assert.Equal(t, framework.DefaultID, fw.ID)

	preview, err := m.Upload(ctx, "acme", []byte(customDoc))
	require.NoError(t, err)
	assert.Equal(t, "Team Health", preview.Name)
	assert.Equal(t, 2, preview.DomainCount)
	assert.Equal(t, 2, preview.QuestionCount)
	require.Len(t, preview.Warnings, 1)
	assert.Contains(t, preview.Warnings[0], "0.90")
	assert.Contains(t, preview.Diff, "+++ uploaded/team-health.json")

	status, err = m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StatePreviewing, status.State)
	require.NotNil(t, status.Pending)

	// Still the default until confirmed
	fw, custom, err = m.Active(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, custom)

	confirmed, err := m.Confirm(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Team Health", confirmed.Name)

	status, err = m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StateActive, status.State)
	assert.Nil(t, status.Pending)
	assert.Equal(t, 2, status.Active.QuestionCount)

	fw, custom, err = m.Active(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, custom)
	assert.Equal(t, "team-health", fw.ID)

	require.NoError(t, m.Clear(ctx, "acme"))
	status, err = m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StateNoCustomFramework, status.State)

	assert.ErrorIs(t, m.Clear(ctx, "acme"), ErrNoCustomFramework)

	require.Len(t, sub.C, 2)
	assert.Equal(t, models.EventFrameworkActivated, (<-sub.C).Type)
	assert.Equal(t, models.EventFrameworkCleared, (<-sub.C).Type)
}

func TestRejectedUploadKeepsActiveFramework(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.Upload(ctx, "acme", []byte(customDoc))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, "acme")
	require.NoError(t, err)

	for _, bad := range []string{`{not json`, `{"meta": {"name": "x"}}`} {
		_, err = m.Upload(ctx, "acme", []byte(bad))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRejected)

		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.False(t, rejected.Result.Valid)
		assert.NotEmpty(t, rejected.Result.Errors)
	}

	status, err := m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StateActive, status.State)

	fw, custom, err := m.Active(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, custom)
	assert.Equal(t, "Team Health", fw.Name)
}

func TestRejectedUploadKeepsPendingPreview(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.Upload(ctx, "acme", []byte(customDoc))
	require.NoError(t, err)

	_, err = m.Upload(ctx, "acme", []byte(`{"domains": "nope"}`))
	assert.ErrorIs(t, err, ErrRejected)

	status, err := m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StatePreviewing, status.State)
	assert.Equal(t, "Team Health", status.Pending.Name)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	assert.ErrorIs(t, m.Cancel(ctx, "acme"), ErrNoPendingUpload)

	_, err := m.Upload(ctx, "acme", []byte(customDoc))
	require.NoError(t, err)
	require.NoError(t, m.Cancel(ctx, "acme"))

	_, err = m.Confirm(ctx, "acme")
	assert.ErrorIs(t, err, ErrNoPendingUpload)
}

func TestExpiredPreview(t *testing.T) {
	ctx := context.Background()
	m, _, c := newTestManager(t)

	_, err := m.Upload(ctx, "acme", []byte(customDoc))
	require.NoError(t, err)
	_, err = m.Upload(ctx, "globex", []byte(customDoc))
	require.NoError(t, err)

	c.t = c.t.Add(11 * time.Minute)

	status, err := m.Status(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StateNoCustomFramework, status.State)

	_, err = m.Confirm(ctx, "acme")
	assert.ErrorIs(t, err, ErrPreviewExpired)

	purged, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged, "acme was already removed by Confirm")

	_, err = m.Confirm(ctx, "globex")
	assert.ErrorIs(t, err, ErrNoPendingUpload)
}

func TestScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.Upload(ctx, "acme", []byte(customDoc))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, "acme")
	require.NoError(t, err)

	_, custom, err := m.Active(ctx, "globex")
	require.NoError(t, err)
	assert.False(t, custom)
}

func TestScope(t *testing.T) {
	assert.Equal(t, "acme-app", Scope("", "acme-app"))
	assert.Equal(t, "org-acme/acme-app", Scope("org-acme", "acme-app"))
	assert.Equal(t, "org-acme", ScopeOrganization(Scope("org-acme", "acme-app")))
	assert.Equal(t, "", ScopeOrganization("acme-app"))
}

func TestEventsCarryScopeOrganization(t *testing.T) {
	m, hub, _ := newTestManager(t)
	ctx := context.Background()
	sub := hub.Subscribe("org-acme")
	defer sub.Close()

	scope := Scope("org-acme", "portal")
	_, err := m.Upload(ctx, scope, []byte(customDoc))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, scope)
	require.NoError(t, err)

	select {
	case evt := <-sub.C:
		assert.Equal(t, models.EventFrameworkActivated, evt.Type)
		assert.Equal(t, "org-acme", evt.OrganizationID)
		assert.Equal(t, scope, evt.Scope)
	case <-time.After(time.Second):
		t.Fatal("no activation event")
	}
}
