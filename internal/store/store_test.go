package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravcine/gravcine/internal/account"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, st.Close())
	})
	return st
}

func TestSessionRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.LoadSession(ctx)
	assert.ErrorIs(t, err, account.ErrNotFound)

	sess := &account.Session{
		UserID:            "user-1",
		Username:          "neo",
		Email:             "neo@example.com",
		ProfilePictureURL: "https://example.com/neo.png",
		FavoriteActorIDs:  []int64{6384, 530},
	}
	require.NoError(t, st.SaveSession(ctx, sess))

	got, err := st.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	t.Run("save replaces the single slot", func(t *testing.T) {
		next := &account.Session{UserID: "user-2", Username: "trinity", Email: "trin@example.com", FavoriteActorIDs: []int64{}}
		require.NoError(t, st.SaveSession(ctx, next))
		got, err := st.LoadSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-2", got.UserID)
	})

	t.Run("clear empties the slot", func(t *testing.T) {
		require.NoError(t, st.ClearSession(ctx))
		_, err := st.LoadSession(ctx)
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestUpsertRating(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRating(ctx, "user-1", 603, 4, "movie"))
	require.NoError(t, st.UpsertRating(ctx, "user-1", 603, 5, "movie"))

	rows, err := st.RatingsForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].Rating)
	assert.Equal(t, "movie", rows[0].MediaType)

	t.Run("media type is never re-typed", func(t *testing.T) {
		require.NoError(t, st.UpsertRating(ctx, "user-1", 603, 3, "tv"))
		rows, err := st.RatingsForUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(3), rows[0].Rating)
		assert.Equal(t, "movie", rows[0].MediaType)
	})

	t.Run("users are namespaced", func(t *testing.T) {
		require.NoError(t, st.UpsertRating(ctx, "user-2", 603, 2, "movie"))
		rows, err := st.RatingsForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestDeleteRating(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRating(ctx, "user-1", 603, 4, "movie"))
	require.NoError(t, st.DeleteRating(ctx, "user-1", 603))

	rows, err := st.RatingsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, st.DeleteRating(ctx, "user-1", 603))
}

func TestClearRatingsForUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRating(ctx, "user-1", 603, 4, "movie"))
	require.NoError(t, st.UpsertRating(ctx, "user-1", 1399, 5, "tv"))
	require.NoError(t, st.UpsertRating(ctx, "user-2", 603, 3, "movie"))

	require.NoError(t, st.ClearRatingsForUser(ctx, "user-1"))

	rows, err := st.RatingsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = st.RatingsForUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
