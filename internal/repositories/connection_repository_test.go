package repositories

import (
	"context"
	"testing"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRepository_CreateIfNoActive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostgresConnectionRepository(db)
	ctx := context.Background()

	req := &models.ConnectionRequest{SenderID: "a", ReceiverID: "b"}
	created, err := repo.CreateIfNoActive(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	created, err = repo.CreateIfNoActive(ctx, &models.ConnectionRequest{SenderID: "b", ReceiverID: "a"})
	require.NoError(t, err)
	assert.False(t, created, "reverse direction is the same unordered pair")

	ok, err := repo.UpdateStatusIfPending(ctx, req.ID, models.RequestStatusDeclined)
	require.NoError(t, err)
	assert.True(t, ok)

	created, err = repo.CreateIfNoActive(ctx, &models.ConnectionRequest{SenderID: "b", ReceiverID: "a"})
	require.NoError(t, err)
	assert.True(t, created, "a declined request does not block a new one")
}

func TestConnectionRepository_UpdateStatusIfPending(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostgresConnectionRepository(db)
	ctx := context.Background()

	req := &models.ConnectionRequest{SenderID: "a", ReceiverID: "b"}
	_, err := repo.CreateIfNoActive(ctx, req)
	require.NoError(t, err)

	ok, err := repo.UpdateStatusIfPending(ctx, req.ID, models.RequestStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatusIfPending(ctx, req.ID, models.RequestStatusDeclined)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)

	_, err = repo.UpdateStatusIfPending(ctx, 999, models.RequestStatusAccepted)
	assert.True(t, IsNotFound(err))
}

func TestConnectionRepository_Lists(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostgresConnectionRepository(db)
	ctx := context.Background()

	ab := &models.ConnectionRequest{SenderID: "a", ReceiverID: "b"}
	ca := &models.ConnectionRequest{SenderID: "c", ReceiverID: "a"}
	ad := &models.ConnectionRequest{SenderID: "a", ReceiverID: "d"}
	for _, r := range []*models.ConnectionRequest{ab, ca, ad} {
		_, err := repo.CreateIfNoActive(ctx, r)
		require.NoError(t, err)
	}
	_, err := repo.UpdateStatusIfPending(ctx, ab.ID, models.RequestStatusAccepted)
	require.NoError(t, err)

	accepted, err := repo.ListAccepted(ctx, "b")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "a", accepted[0].OtherParty("b"))

	incoming, err := repo.ListIncomingPending(ctx, "a")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "c", incoming[0].SenderID)

	sent, err := repo.ListSentPending(ctx, "a")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "d", sent[0].ReceiverID)

	pending, err := repo.FindPending(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, ca.ID, pending.ID)

	_, err = repo.FindPending(ctx, "a", "c")
	assert.True(t, IsNotFound(err))

	active, err := repo.FindActiveBetween(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, ab.ID, active.ID)

	byIDs, err := repo.GetByIDs(ctx, []uint{ab.ID, ad.ID})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)
}
