package app

import (
	"context"
	"errors"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/session"
	"github.com/gravcine/gravcine/internal/tmdb"
	"github.com/gravcine/gravcine/internal/view"
)

// Login authenticates against the account service and leaves the auth
// screen on success. The action that triggered the auth redirect, if any,
// is not replayed.
func (a *App) Login(ctx context.Context, creds account.Credentials) (*account.Session, error) {
	sess, err := a.session.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	a.leaveAuth()
	return sess, nil
}

func (a *App) Register(ctx context.Context, creds account.Credentials) (*account.Session, error) {
	sess, err := a.session.Register(ctx, creds)
	if err != nil {
		return nil, err
	}
	a.leaveAuth()
	return sess, nil
}

// leaveAuth navigates away from the auth screen. A login issued from any
// other screen stays put.
func (a *App) leaveAuth() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.machine.Screen() == view.ScreenAuth {
		a.machine.AuthSucceeded()
	}
}

// Logout destroys the session and resets the view, like a logo click.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.machine.Logout()
	a.resetTransientSlots()
	a.mu.Unlock()
	return nil
}

// RateMedia applies the optimistic rating change. Unauthenticated calls
// route to the auth screen and perform no mutation; the user retries after
// logging in.
func (a *App) RateMedia(ctx context.Context, mediaID int64, rating int, mediaType tmdb.MediaType) error {
	err := a.session.RateMedia(ctx, mediaID, rating, mediaType)
	if errors.Is(err, session.ErrUnauthenticated) {
		a.mu.Lock()
		a.machine.ShowAuth()
		a.mu.Unlock()
		return err
	}
	if err != nil {
		return err
	}
	a.refreshDashboardMediaIfOpen(ctx)
	return nil
}

// ToggleFavoriteActor flips the favorite state for the actor, routing to
// auth when no session is active.
func (a *App) ToggleFavoriteActor(ctx context.Context, actorID int64) (bool, error) {
	nowFavorite, err := a.session.ToggleFavoriteActor(ctx, actorID)
	if errors.Is(err, session.ErrUnauthenticated) {
		a.mu.Lock()
		a.machine.ShowAuth()
		a.mu.Unlock()
		return false, err
	}
	if err != nil {
		return false, err
	}
	a.refreshDashboardActorsIfOpen(ctx)
	return nowFavorite, nil
}

// AddReview commits the review to the open media view before the remote
// write settles.
func (a *App) AddReview(ctx context.Context, mediaID int64, text string, rating int) (account.Review, error) {
	review, err := a.session.AddReview(ctx, mediaID, text, rating)
	if errors.Is(err, session.ErrUnauthenticated) {
		a.mu.Lock()
		a.machine.ShowAuth()
		a.mu.Unlock()
		return account.Review{}, err
	}
	if err != nil {
		return account.Review{}, err
	}

	a.mu.Lock()
	if a.machine.MediaSelection().ID == mediaID {
		a.media.Reviews = append([]account.Review{review}, a.media.Reviews...)
	}
	a.mu.Unlock()
	return review, nil
}

// DeleteReview removes one of the caller's reviews from the open media
// view. The review must belong to the active user.
func (a *App) DeleteReview(ctx context.Context, reviewID string) error {
	a.mu.Lock()
	ownerID := ""
	found := false
	for _, r := range a.media.Reviews {
		if r.ID == reviewID {
			ownerID = r.UserID
			found = true
			break
		}
	}
	a.mu.Unlock()
	if !found {
		return account.ErrNotFound
	}

	if err := a.session.DeleteReview(ctx, reviewID, ownerID); err != nil {
		return err
	}

	a.mu.Lock()
	// Filter into a fresh slice; snapshots taken earlier still alias the
	// old backing array.
	kept := make([]account.Review, 0, len(a.media.Reviews))
	for _, r := range a.media.Reviews {
		if r.ID != reviewID {
			kept = append(kept, r)
		}
	}
	a.media.Reviews = kept
	a.mu.Unlock()
	return nil
}

// UpdateProfile replaces the session identity and refreshes the profile
// view when the user is looking at their own profile.
func (a *App) UpdateProfile(ctx context.Context, userID string, update account.ProfileUpdate) (*account.Session, error) {
	sess, err := a.session.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	if a.machine.ProfileUserID() == userID && a.profile.Profile != nil {
		a.profile.Profile.Username = sess.Username
		a.profile.Profile.ProfilePictureURL = sess.ProfilePictureURL
	}
	a.mu.Unlock()
	return sess, nil
}

func (a *App) UpdateBio(ctx context.Context, userID, bio string) error {
	if err := a.session.UpdateBio(ctx, userID, bio); err != nil {
		return err
	}
	a.mu.Lock()
	if a.machine.ProfileUserID() == userID && a.profile.Profile != nil {
		a.profile.Profile.Bio = bio
	}
	a.mu.Unlock()
	return nil
}

func (a *App) UpdateEmail(ctx context.Context, userID, currentPassword, newEmail string) (*account.Session, error) {
	sess, err := a.session.UpdateEmail(ctx, userID, currentPassword, newEmail)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	if a.machine.ProfileUserID() == userID && a.profile.Profile != nil {
		a.profile.Profile.Email = sess.Email
	}
	a.mu.Unlock()
	return sess, nil
}

func (a *App) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error {
	return a.session.UpdatePassword(ctx, userID, currentPassword, newPassword, confirmPassword)
}

func (a *App) CurrentSession() *account.Session {
	return a.session.Current()
}
