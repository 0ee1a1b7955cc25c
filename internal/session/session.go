// Package session owns the authenticated identity and the optimistic
// mutation layer: ratings, favorite actors and reviews are committed to
// local state first, with the remote write fired asynchronously.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/logger"
	"github.com/gravcine/gravcine/internal/store"
	"github.com/gravcine/gravcine/internal/tmdb"
)

var (
	// ErrUnauthenticated means no active session; callers route to the
	// auth screen instead of performing the mutation.
	ErrUnauthenticated = errors.New("session: not authenticated")

	// ErrNotRated rejects a review for a title the user has not rated.
	ErrNotRated = errors.New("session: media must be rated before reviewing")

	// ErrForbidden rejects mutations on records owned by another user.
	ErrForbidden = errors.New("session: not the owner")
)

const remoteWriteTimeout = 15 * time.Second

// Rating is the in-memory rating cache entry. Absence means unrated; a
// zero rating is never stored.
type Rating struct {
	Rating    int            `json:"rating"`
	MediaType tmdb.MediaType `json:"mediaType"`
}

type Manager struct {
	mu      sync.RWMutex
	log     *slog.Logger
	store   *store.Store
	account *account.Client

	current *account.Session
	ratings map[int64]Rating

	writes sync.WaitGroup
}

func NewManager(log *slog.Logger, st *store.Store, ac *account.Client) *Manager {
	return &Manager{
		log:     log,
		store:   st,
		account: ac,
		ratings: map[int64]Rating{},
	}
}

// Restore loads the persisted session, if any, and re-derives the active
// user's rating cache from the ratings slot. Called once at startup.
func (m *Manager) Restore(ctx context.Context) (*account.Session, error) {
	sess, err := m.store.LoadSession(ctx)
	if errors.Is(err, account.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ratings, err := m.loadRatings(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.current = sess
	m.ratings = ratings
	m.mu.Unlock()
	return copySession(sess), nil
}

func (m *Manager) Login(ctx context.Context, creds account.Credentials) (*account.Session, error) {
	sess, err := m.account.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, sess)
}

func (m *Manager) Register(ctx context.Context, creds account.Credentials) (*account.Session, error) {
	sess, err := m.account.Register(ctx, creds)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, sess)
}

func (m *Manager) adopt(ctx context.Context, sess *account.Session) (*account.Session, error) {
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	ratings, err := m.loadRatings(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.current = sess
	m.ratings = ratings
	m.mu.Unlock()
	return copySession(sess), nil
}

// Logout clears the persisted session and rating slots along with all
// in-memory derived state, unconditionally.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.ratings = map[int64]Rating{}
	m.mu.Unlock()

	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	if sess != nil {
		if err := m.store.ClearRatingsForUser(ctx, sess.UserID); err != nil {
			return err
		}
	}
	return nil
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *account.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return copySession(m.current)
}

func (m *Manager) Ratings() map[int64]Rating {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]Rating, len(m.ratings))
	for k, v := range m.ratings {
		out[k] = v
	}
	return out
}

// RatingFor returns the stored rating for a medium, zero when unrated.
func (m *Manager) RatingFor(mediaID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ratings[mediaID].Rating
}

func (m *Manager) IsFavorite(actorID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return false
	}
	for _, id := range m.current.FavoriteActorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// RateMedia applies the rating locally and fires the remote write without
// waiting for it. A rating of zero, or re-submitting the current value
// (click-to-unset), removes the record. The media type of an existing
// record is never re-typed.
func (m *Manager) RateMedia(ctx context.Context, mediaID int64, rating int, mediaType tmdb.MediaType) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating out of range: %d", rating)
	}
	if !mediaType.Valid() {
		return errors.New("invalid media type")
	}

	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrUnauthenticated
	}
	userID := m.current.UserID
	existing, rated := m.ratings[mediaID]
	if rated {
		mediaType = existing.MediaType
	}
	remove := rating == 0 || (rated && existing.Rating == rating)
	if remove {
		delete(m.ratings, mediaID)
	} else {
		m.ratings[mediaID] = Rating{Rating: rating, MediaType: mediaType}
	}
	m.mu.Unlock()

	if remove {
		if err := m.store.DeleteRating(ctx, userID, mediaID); err != nil {
			m.log.Warn("delete rating: local persist failed", logger.Error(err))
		}
		m.async(func(ctx context.Context) error {
			return m.account.DeleteRating(ctx, userID, mediaID, string(mediaType))
		}, "delete rating")
		return nil
	}

	if err := m.store.UpsertRating(ctx, userID, mediaID, rating, string(mediaType)); err != nil {
		m.log.Warn("save rating: local persist failed", logger.Error(err))
	}
	m.async(func(ctx context.Context) error {
		return m.account.UpsertRating(ctx, userID, mediaID, rating, string(mediaType))
	}, "save rating")
	return nil
}

// ToggleFavoriteActor flips the actor's membership in the favorite set and
// reports the new membership. Both directions are idempotent at the data
// level.
func (m *Manager) ToggleFavoriteActor(ctx context.Context, actorID int64) (bool, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return false, ErrUnauthenticated
	}
	userID := m.current.UserID

	ids := m.current.FavoriteActorIDs
	nowFavorite := true
	next := make([]int64, 0, len(ids)+1)
	for _, id := range ids {
		if id == actorID {
			nowFavorite = false
			continue
		}
		next = append(next, id)
	}
	if nowFavorite {
		next = append(next, actorID)
	}
	m.current.FavoriteActorIDs = next
	sess := copySession(m.current)
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, sess); err != nil {
		m.log.Warn("toggle favorite: local persist failed", logger.Error(err))
	}
	if nowFavorite {
		m.async(func(ctx context.Context) error {
			return m.account.AddFavoriteActor(ctx, userID, actorID)
		}, "add favorite actor")
	} else {
		m.async(func(ctx context.Context) error {
			return m.account.RemoveFavoriteActor(ctx, userID, actorID)
		}, "remove favorite actor")
	}
	return nowFavorite, nil
}

// AddReview builds the review from the active session, commits it to the
// caller optimistically and fires the remote create. The title must carry
// a non-zero rating first.
func (m *Manager) AddReview(_ context.Context, mediaID int64, text string, rating int) (account.Review, error) {
	m.mu.RLock()
	if m.current == nil {
		m.mu.RUnlock()
		return account.Review{}, ErrUnauthenticated
	}
	if _, rated := m.ratings[mediaID]; !rated {
		m.mu.RUnlock()
		return account.Review{}, ErrNotRated
	}
	review := account.Review{
		ID:            newReviewID(),
		UserID:        m.current.UserID,
		Username:      m.current.Username,
		UserAvatarURL: m.current.ProfilePictureURL,
		MediaID:       mediaID,
		Rating:        rating,
		ReviewDate:    time.Now().UTC().Format(time.RFC3339),
		ReviewText:    text,
	}
	m.mu.RUnlock()

	m.async(func(ctx context.Context) error {
		_, err := m.account.CreateReview(ctx, review)
		return err
	}, "create review")
	return review, nil
}

// DeleteReview removes the caller's own review; deleting another user's
// review is rejected locally, before any network call.
func (m *Manager) DeleteReview(_ context.Context, reviewID, ownerID string) error {
	m.mu.RLock()
	if m.current == nil {
		m.mu.RUnlock()
		return ErrUnauthenticated
	}
	userID := m.current.UserID
	m.mu.RUnlock()

	if ownerID != userID {
		return ErrForbidden
	}

	m.async(func(ctx context.Context) error {
		return m.account.DeleteReview(ctx, reviewID, userID)
	}, "delete review")
	return nil
}

// UpdateProfile is request/response, not optimistic: the session is
// replaced wholesale on success.
func (m *Manager) UpdateProfile(ctx context.Context, userID string, update account.ProfileUpdate) (*account.Session, error) {
	if err := m.requireOwner(userID); err != nil {
		return nil, err
	}
	sess, err := m.account.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	return m.replaceIdentity(ctx, sess)
}

func (m *Manager) UpdateBio(ctx context.Context, userID, bio string) error {
	if err := m.requireOwner(userID); err != nil {
		return err
	}
	return m.account.UpdateBio(ctx, userID, bio)
}

func (m *Manager) UpdateEmail(ctx context.Context, userID, currentPassword, newEmail string) (*account.Session, error) {
	if err := m.requireOwner(userID); err != nil {
		return nil, err
	}
	sess, err := m.account.UpdateEmail(ctx, userID, currentPassword, newEmail)
	if err != nil {
		return nil, err
	}
	return m.replaceIdentity(ctx, sess)
}

func (m *Manager) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error {
	if err := m.requireOwner(userID); err != nil {
		return err
	}
	return m.account.UpdatePassword(ctx, userID, currentPassword, newPassword, confirmPassword)
}

// Wait blocks until all in-flight remote writes settle. Used on shutdown.
func (m *Manager) Wait() {
	m.writes.Wait()
}

func (m *Manager) requireOwner(userID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ErrUnauthenticated
	}
	if m.current.UserID != userID {
		return ErrForbidden
	}
	return nil
}

// replaceIdentity keeps the locally tracked favorite set across a profile
// update, since the account response does not echo it.
func (m *Manager) replaceIdentity(ctx context.Context, sess *account.Session) (*account.Session, error) {
	m.mu.Lock()
	if m.current != nil {
		sess.FavoriteActorIDs = append([]int64{}, m.current.FavoriteActorIDs...)
	}
	m.current = sess
	out := copySession(sess)
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// async runs a remote write in the background. Failures are logged, never
// rolled back; local and remote state may diverge until the next reload.
func (m *Manager) async(fn func(context.Context) error, op string) {
	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			m.log.Warn("remote write failed", slog.String("op", op), logger.Error(err))
		}
	}()
}

func (m *Manager) loadRatings(ctx context.Context, userID string) (map[int64]Rating, error) {
	rows, err := m.store.RatingsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Rating, len(rows))
	for _, row := range rows {
		if row.Rating <= 0 {
			continue
		}
		out[row.MediaID] = Rating{
			Rating:    int(row.Rating),
			MediaType: tmdb.MediaType(row.MediaType),
		}
	}
	return out, nil
}

func copySession(s *account.Session) *account.Session {
	out := *s
	out.FavoriteActorIDs = append([]int64{}, s.FavoriteActorIDs...)
	return &out
}

func newReviewID() string {
	return fmt.Sprintf("review-%d-%06d", time.Now().UnixMilli(), rand.IntN(1_000_000))
}
