package framework

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/maturity-engine/internal/models"
)

type memoryStore struct {
	frameworks map[string]*models.Framework
	inUse      map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{frameworks: make(map[string]*models.Framework), inUse: make(map[string]bool)}
}

func (m *memoryStore) CreateFramework(_ context.Context, fw *models.Framework) error {
	m.frameworks[fw.ID] = fw
	return nil
}

func (m *memoryStore) GetFramework(_ context.Context, id string) (*models.Framework, error) {
	return m.frameworks[id], nil
}

func (m *memoryStore) ListFrameworks(_ context.Context, orgID string) ([]*models.Framework, error) {
	var out []*models.Framework
	for _, fw := range m.frameworks {
		if orgID == "" || fw.OrganizationID == orgID {
			out = append(out, fw)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteFramework(_ context.Context, id string) error {
	delete(m.frameworks, id)
	return nil
}

func (m *memoryStore) FrameworkInUse(_ context.Context, id string) (bool, error) {
	return m.inUse[id], nil
}

func TestCatalogRegisterAndResolve(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	catalog := NewCatalog(NewLoader(), store)

	fw, result, err := catalog.Register(ctx, "org-1", []byte(validDocument))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.NotEqual(t, "platform-review", fw.ID, "stored frameworks get a generated id")
	assert.Equal(t, "org-1", fw.OrganizationID)

	got, err := catalog.Get(ctx, fw.ID)
	require.NoError(t, err)
	assert.Equal(t, fw.Name, got.Name)

	list, err := catalog.List(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, DefaultID, list[0].ID)
	assert.True(t, list[0].Builtin)
	assert.Equal(t, 3, list[1].QuestionCount)

	others, err := catalog.List(ctx, "org-2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestCatalogRegisterInvalid(t *testing.T) {
	catalog := NewCatalog(NewLoader(), newMemoryStore())

	fw, result, err := catalog.Register(context.Background(), "org-1", []byte(`{"domains": []}`))
	assert.ErrorIs(t, err, ErrInvalidFramework)
	assert.Nil(t, fw)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestCatalogGetMissing(t *testing.T) {
	catalog := NewCatalog(NewLoader(), nil)
	_, err := catalog.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrFrameworkNotFound)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(NewLoader(), newMemoryStore())

	assert.ErrorIs(t, catalog.Delete(ctx, DefaultID), ErrBuiltinReadOnly)

	fw, _, err := catalog.Register(ctx, "", []byte(validDocument))
	require.NoError(t, err)
	require.NoError(t, catalog.Delete(ctx, fw.ID))

	_, err = catalog.Get(ctx, fw.ID)
	assert.ErrorIs(t, err, ErrFrameworkNotFound)
}

func TestCatalogDeleteRefusesReferencedFramework(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	catalog := NewCatalog(NewLoader(), store)

	fw, _, err := catalog.Register(ctx, "org-1", []byte(validDocument))
	require.NoError(t, err)
	store.inUse[fw.ID] = true

	assert.ErrorIs(t, catalog.Delete(ctx, fw.ID), ErrFrameworkInUse)

	got, err := catalog.Get(ctx, fw.ID)
	require.NoError(t, err)
	assert.Equal(t, fw.ID, got.ID)
}

func TestStructureOfDefault(t *testing.T) {
	s, err := NewCatalog(NewLoader(), nil).Structure(context.Background(), DefaultID)
	require.NoError(t, err)

	assert.Equal(t, 40, s.TotalQuestions)
	assert.InDelta(t, 1.0, s.TotalWeight, 1e-9)
	require.Len(t, s.Domains, 5)
	require.Len(t, s.Domains[0].Gates, 4)
	assert.Equal(t, []string{"g1_1_q1", "g1_1_q2"}, s.Domains[0].Gates[0].QuestionIDs)
}
