package services

import (
	"context"
	"testing"

	"github.com/anonto42/campus-connect/backend/internal/models"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_SyncProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.users.SyncProfile(ctx, models.User{ID: "u1", Email: " Ana@Campus.TEST "}, "<b>Ana</b> Maria Lima")
	require.NoError(t, err)

	got, err := h.users.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ana@campus.test", got.Email)
	assert.Equal(t, "Ana", got.FirstName)
	assert.Equal(t, "Maria Lima", got.LastName)

	_, err = h.users.SyncProfile(ctx, models.User{ID: "u1", Email: "ana@campus.test"}, "")
	require.NoError(t, err)
	got, err = h.users.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName, "a later sign-in without a name keeps the stored one")

	_, err = h.users.GetProfile(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = h.users.SyncProfile(ctx, models.User{}, "x")
	assert.ErrorIs(t, err, apperrors.ErrMissingIdentity)
}
