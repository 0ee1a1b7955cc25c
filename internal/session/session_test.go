package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/store"
	"github.com/gravcine/gravcine/internal/tmdb"
)

// newTestManager wires a Manager against a throwaway sqlite store and an
// account stub that accepts every write.
func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/login" || r.URL.Path == "/register":
			w.Write([]byte(`{"user":{"id":"user-1","username":"neo","email":"neo@example.com","favoriteActorIds":[]}}`))
		case r.URL.Path == "/reviews":
			w.Write([]byte(`{"reviewId":"remote-1"}`))
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/users/"):
			w.Write([]byte(`{"user":{"id":"user-1","username":"neo","email":"neo@example.com"}}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, st.Close())
	})

	m := NewManager(slog.Default(), st, account.New(srv.URL))
	t.Cleanup(m.Wait)
	return m, st
}

func login(t *testing.T, m *Manager) *account.Session {
	t.Helper()
	sess, err := m.Login(context.Background(), account.Credentials{Email: "neo@example.com", Password: "secret"})
	require.NoError(t, err)
	return sess
}

func TestLoginPersistsSession(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	sess := login(t, m)
	assert.Equal(t, "user-1", sess.UserID)

	stored, err := st.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)

	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "neo", cur.Username)
}

func TestRestore(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	t.Run("empty store restores nothing", func(t *testing.T) {
		sess, err := m.Restore(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("restores session and ratings", func(t *testing.T) {
		require.NoError(t, st.SaveSession(ctx, &account.Session{UserID: "user-1", Username: "neo", Email: "neo@example.com", FavoriteActorIDs: []int64{}}))
		require.NoError(t, st.UpsertRating(ctx, "user-1", 603, 4, "movie"))
		require.NoError(t, st.UpsertRating(ctx, "user-2", 1399, 5, "tv"))

		sess, err := m.Restore(ctx)
		require.NoError(t, err)
		require.NotNil(t, sess)

		ratings := m.Ratings()
		require.Len(t, ratings, 1)
		assert.Equal(t, Rating{Rating: 4, MediaType: tmdb.MediaTypeMovie}, ratings[603])
	})
}

func TestRateMedia(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		m, _ := newTestManager(t)
		err := m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie)
		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Empty(t, m.Ratings())
	})

	t.Run("commits locally before the remote settles", func(t *testing.T) {
		m, st := newTestManager(t)
		login(t, m)

		require.NoError(t, m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie))
		assert.Equal(t, 4, m.RatingFor(603))

		rows, err := st.RatingsForUser(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("zero removes the record", func(t *testing.T) {
		m, _ := newTestManager(t)
		login(t, m)

		require.NoError(t, m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie))
		require.NoError(t, m.RateMedia(context.Background(), 603, 0, tmdb.MediaTypeMovie))
		assert.Zero(t, m.RatingFor(603))
	})

	t.Run("click-to-unset removes on re-submit", func(t *testing.T) {
		m, st := newTestManager(t)
		login(t, m)

		require.NoError(t, m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie))
		require.NoError(t, m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie))
		assert.Zero(t, m.RatingFor(603))

		rows, err := st.RatingsForUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("existing media type wins over the submitted one", func(t *testing.T) {
		m, _ := newTestManager(t)
		login(t, m)

		require.NoError(t, m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie))
		require.NoError(t, m.RateMedia(context.Background(), 603, 5, tmdb.MediaTypeTV))
		assert.Equal(t, Rating{Rating: 5, MediaType: tmdb.MediaTypeMovie}, m.Ratings()[603])
	})

	t.Run("rejects out of range ratings", func(t *testing.T) {
		m, _ := newTestManager(t)
		login(t, m)
		assert.Error(t, m.RateMedia(context.Background(), 603, 6, tmdb.MediaTypeMovie))
		assert.Error(t, m.RateMedia(context.Background(), 603, -1, tmdb.MediaTypeMovie))
	})
}

func TestToggleFavoriteActor(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.ToggleFavoriteActor(context.Background(), 6384)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("double toggle restores the original set", func(t *testing.T) {
		m, _ := newTestManager(t)
		login(t, m)

		fav, err := m.ToggleFavoriteActor(context.Background(), 6384)
		require.NoError(t, err)
		assert.True(t, fav)
		assert.True(t, m.IsFavorite(6384))

		fav, err = m.ToggleFavoriteActor(context.Background(), 6384)
		require.NoError(t, err)
		assert.False(t, fav)
		assert.False(t, m.IsFavorite(6384))
	})
}

func TestAddReview(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.AddReview(context.Background(), 603, "whoa", 4)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("requires a rated title", func(t *testing.T) {
		m, _ := newTestManager(t)
		login(t, m)
		_, err := m.AddReview(context.Background(), 603, "whoa", 4)
		assert.ErrorIs(t, err, ErrNotRated)
	})

	t.Run("builds the review from the session", func(t *testing.T) {
		m, _ := newTestManager(t)
		login(t, m)
		require.NoError(t, m.RateMedia(context.Background(), 603, 4, tmdb.MediaTypeMovie))

		review, err := m.AddReview(context.Background(), 603, "whoa", 4)
		require.NoError(t, err)
		assert.NotEmpty(t, review.ID)
		assert.Equal(t, "user-1", review.UserID)
		assert.Equal(t, "neo", review.Username)
		assert.Equal(t, int64(603), review.MediaID)
		assert.Equal(t, "whoa", review.ReviewText)
	})
}

func TestDeleteReview(t *testing.T) {
	m, _ := newTestManager(t)
	login(t, m)

	t.Run("own review is accepted", func(t *testing.T) {
		assert.NoError(t, m.DeleteReview(context.Background(), "r1", "user-1"))
	})

	t.Run("foreign review is rejected locally", func(t *testing.T) {
		assert.ErrorIs(t, m.DeleteReview(context.Background(), "r2", "user-2"), ErrForbidden)
	})
}

func TestLogout(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	login(t, m)
	require.NoError(t, m.RateMedia(ctx, 603, 4, tmdb.MediaTypeMovie))

	require.NoError(t, m.Logout(ctx))
	assert.Nil(t, m.Current())
	assert.Empty(t, m.Ratings())

	_, err := st.LoadSession(ctx)
	assert.ErrorIs(t, err, account.ErrNotFound)

	rows, err := st.RatingsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	t.Run("restore after logout finds nothing", func(t *testing.T) {
		sess, err := m.Restore(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})
}

func TestUpdateProfile(t *testing.T) {
	m, _ := newTestManager(t)

	t.Run("requires authentication", func(t *testing.T) {
		_, err := m.UpdateProfile(context.Background(), "user-1", account.ProfileUpdate{})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	login(t, m)

	t.Run("rejects foreign profiles", func(t *testing.T) {
		_, err := m.UpdateProfile(context.Background(), "user-2", account.ProfileUpdate{})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("keeps favorites across the identity swap", func(t *testing.T) {
		_, err := m.ToggleFavoriteActor(context.Background(), 6384)
		require.NoError(t, err)

		sess, err := m.UpdateProfile(context.Background(), "user-1", account.ProfileUpdate{})
		require.NoError(t, err)
		assert.Equal(t, []int64{6384}, sess.FavoriteActorIDs)
	})
}
