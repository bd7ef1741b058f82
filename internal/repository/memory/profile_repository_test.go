package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdugdh24/yuno-backend/internal/domain"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func located(id int, lat, lng float64) *domain.UserProfile {
	return &domain.UserProfile{
		ID:        id,
		Name:      "user",
		Latitude:  floatPtr(lat),
		Longitude: floatPtr(lng),
	}
}

func TestProfileRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()

	p := &domain.UserProfile{Name: "Asha", City: strPtr("Bhopal"), Interests: []string{"music", "music", "chess"}}
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, 1, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, []string{"music", "chess"}, got.Interests)

	// Returned profiles are copies.
	got.Interests[0] = "changed"
	*got.City = "Indore"
	again, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "music", again.Interests[0])
	assert.Equal(t, "Bhopal", *again.City)
}

func TestProfileRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()

	_, err := repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	err = repo.Update(ctx, &domain.UserProfile{ID: 42})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestProfileRepository_CreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()

	require.NoError(t, repo.Create(ctx, &domain.UserProfile{ID: 7}))
	assert.Error(t, repo.Create(ctx, &domain.UserProfile{ID: 7}))

	next := &domain.UserProfile{}
	require.NoError(t, repo.Create(ctx, next))
	assert.Equal(t, 8, next.ID)
}

func TestProfileRepository_GetByIDsSkipsUnknown(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()
	require.NoError(t, repo.Create(ctx, &domain.UserProfile{ID: 1}))
	require.NoError(t, repo.Create(ctx, &domain.UserProfile{ID: 2}))

	got, err := repo.GetByIDs(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, 1)
	assert.NotContains(t, got, 3)
}

func TestProfileRepository_ListWithLocation(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()
	require.NoError(t, repo.Create(ctx, located(3, 10, 10)))
	require.NoError(t, repo.Create(ctx, &domain.UserProfile{ID: 2}))
	require.NoError(t, repo.Create(ctx, &domain.UserProfile{ID: 4, Latitude: floatPtr(1)}))
	require.NoError(t, repo.Create(ctx, located(1, 20, 20)))

	got, err := repo.ListWithLocation(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 3, got[1].ID)
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `[
		{"id": 5, "name": "A", "city": "Pune", "interests": ["x"], "latitude": 18.52, "longitude": 73.85},
		{"name": "B"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	repo, err := LoadProfiles(context.Background(), path)
	require.NoError(t, err)

	a, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Pune", *a.City)
	_, ok := a.Location()
	assert.True(t, ok)

	b, err := repo.GetByID(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "B", b.Name)
}

func TestLoadProfiles_BadFile(t *testing.T) {
	_, err := LoadProfiles(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = LoadProfiles(context.Background(), path)
	assert.Error(t, err)
}
