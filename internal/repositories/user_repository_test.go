package repositories

import (
	"context"
	"testing"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Upsert(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostgresUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "uid-1", Email: "ana@campus.test", FirstName: "Ana", Role: models.RoleRecruiter}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "uid-1", Email: "ana@new.test", FirstName: "Anabel"}))

	got, err := repo.GetByID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@new.test", got.Email)
	assert.Equal(t, "Anabel", got.FirstName)
	assert.Equal(t, models.RoleRecruiter, got.Role, "role is not overwritten by profile sync")

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "uid-1", Email: "ana@new.test"}))
	got, err = repo.GetByID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Anabel", got.FirstName, "empty names keep the stored ones")

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestUserRepository_GetByIDs(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "a", "b", "c")
	repo := NewPostgresUserRepository(db)

	users, err := repo.GetByIDs(context.Background(), []string{"a", "c", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepository_SearchByPrefix(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostgresUserRepository(db)
	ctx := context.Background()

	for _, u := range []models.User{
		{ID: "1", Email: "Sam@campus.test", FirstName: "Sam"},
		{ID: "2", Email: "samira@campus.test", FirstName: "Samira"},
		{ID: "3", Email: "zoe@campus.test", FirstName: "Sammy"},
		{ID: "4", Email: "bob@campus.test", FirstName: "Bob"},
	} {
		u := u
		require.NoError(t, repo.Upsert(ctx, &u))
	}

	users, err := repo.SearchByPrefix(ctx, "sam", "1", false, 5)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "2", users[0].ID)

	users, err = repo.SearchByPrefix(ctx, "sam", "1", true, 5)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.SearchByPrefix(ctx, "", "none", false, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2, "limit is applied")
}

func TestUserRepository_SearchByPrefixMatchesWildcardsLiterally(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostgresUserRepository(db)
	ctx := context.Background()

	for _, u := range []models.User{
		{ID: "1", Email: "john_doe@campus.test"},
		{ID: "2", Email: "johnxdoe@campus.test"},
		{ID: "3", Email: "50%off@campus.test"},
		{ID: "4", Email: "500@campus.test"},
		{ID: "5", Email: `back\slash@campus.test`},
	} {
		u := u
		require.NoError(t, repo.Upsert(ctx, &u))
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{prefix: "john_d", want: []string{"1"}},
		{prefix: "50%", want: []string{"3"}},
		{prefix: `back\`, want: []string{"5"}},
		{prefix: "%", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			users, err := repo.SearchByPrefix(ctx, tt.prefix, "", false, 5)
			require.NoError(t, err)
			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}
