// Package handlers exposes the app over a local JSON API: every route
// applies one event or mutation and the client re-reads GET /state.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/app"
	"github.com/gravcine/gravcine/internal/session"
	"github.com/gravcine/gravcine/internal/tmdb"
	"github.com/gravcine/gravcine/internal/view"
)

type Handlers struct {
	app      *app.App
	validate *validator.Validate
}

func New(a *app.App) *Handlers {
	return &Handlers{
		app:      a,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Method(http.MethodGet, "/state", Adapt(h.State))

	r.Method(http.MethodPost, "/search", Adapt(h.Search))
	r.Method(http.MethodPost, "/media/select", Adapt(h.SelectMedia))
	r.Method(http.MethodPost, "/actor/select", Adapt(h.SelectActor))
	r.Method(http.MethodPost, "/close", Adapt(h.CloseDetail))
	r.Method(http.MethodPost, "/logo", Adapt(h.LogoClick))

	r.Method(http.MethodPost, "/auth/register", Adapt(h.Register))
	r.Method(http.MethodPost, "/auth/login", Adapt(h.Login))
	r.Method(http.MethodPost, "/auth/show", Adapt(h.ShowAuth))
	r.Method(http.MethodPost, "/auth/close", Adapt(h.CloseAuth))
	r.Method(http.MethodPost, "/logout", Adapt(h.Logout))

	r.Method(http.MethodPost, "/profile/view", Adapt(h.ViewProfile))
	r.Method(http.MethodPost, "/profile/close", Adapt(h.CloseProfile))
	r.Method(http.MethodPut, "/profile", Adapt(h.UpdateProfile))
	r.Method(http.MethodPut, "/profile/bio", Adapt(h.UpdateBio))
	r.Method(http.MethodPut, "/profile/email", Adapt(h.UpdateEmail))
	r.Method(http.MethodPut, "/profile/password", Adapt(h.UpdatePassword))

	r.Method(http.MethodPost, "/dashboard/open", Adapt(h.OpenDashboard))
	r.Method(http.MethodPost, "/dashboard/close", Adapt(h.CloseDashboard))

	r.Method(http.MethodPost, "/ratings", Adapt(h.RateMedia))
	r.Method(http.MethodPost, "/favorites/toggle", Adapt(h.ToggleFavoriteActor))
	r.Method(http.MethodPost, "/reviews", Adapt(h.AddReview))
	r.Method(http.MethodDelete, "/reviews/{id}", Adapt(h.DeleteReview))
}

func (h *Handlers) State(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type searchRequest struct {
	Query      string          `json:"query"`
	SearchType view.SearchType `json:"search_type"`
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) error {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid search request")
	}
	h.app.SubmitSearch(r.Context(), req.Query, req.SearchType)
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type selectMediaRequest struct {
	ID        int64          `json:"id"`
	MediaType tmdb.MediaType `json:"media_type"`
}

func (h *Handlers) SelectMedia(w http.ResponseWriter, r *http.Request) error {
	var req selectMediaRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid media selection")
	}
	h.app.SelectMedia(r.Context(), view.MediaRef{ID: req.ID, MediaType: req.MediaType})
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type selectActorRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

func (h *Handlers) SelectActor(w http.ResponseWriter, r *http.Request) error {
	var req selectActorRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid actor selection")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid actor selection")
	}
	h.app.SelectActor(r.Context(), req.ID)
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

func (h *Handlers) CloseDetail(w http.ResponseWriter, _ *http.Request) error {
	h.app.CloseDetail()
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

func (h *Handlers) LogoClick(w http.ResponseWriter, r *http.Request) error {
	h.app.LogoClick()
	go h.app.LoadHome(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type registerRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=32"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid registration request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid registration request")
	}
	sess, err := h.app.Register(r.Context(), account.Credentials{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusCreated, sess)
	return nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid login request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid login request")
	}
	sess, err := h.app.Login(r.Context(), account.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, sess)
	return nil
}

func (h *Handlers) ShowAuth(w http.ResponseWriter, _ *http.Request) error {
	h.app.ShowAuth()
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

func (h *Handlers) CloseAuth(w http.ResponseWriter, _ *http.Request) error {
	h.app.CloseAuth()
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	if err := h.app.Logout(r.Context()); err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type viewProfileRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *Handlers) ViewProfile(w http.ResponseWriter, r *http.Request) error {
	var req viewProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid profile request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid profile request")
	}
	h.app.ViewProfile(r.Context(), req.UserID)
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

func (h *Handlers) CloseProfile(w http.ResponseWriter, _ *http.Request) error {
	h.app.CloseProfile()
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type updateProfileRequest struct {
	UserID            string  `json:"user_id" validate:"required"`
	Username          *string `json:"username,omitempty" validate:"omitempty,min=3,max=32"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty" validate:"omitempty,url"`
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid profile update")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid profile update")
	}
	sess, err := h.app.UpdateProfile(r.Context(), req.UserID, account.ProfileUpdate{
		Username:          req.Username,
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, sess)
	return nil
}

type updateBioRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Bio    string `json:"bio" validate:"max=2000"`
}

func (h *Handlers) UpdateBio(w http.ResponseWriter, r *http.Request) error {
	var req updateBioRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid bio update")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid bio update")
	}
	if err := h.app.UpdateBio(r.Context(), req.UserID, req.Bio); err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type updateEmailRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewEmail        string `json:"new_email" validate:"required,email"`
}

func (h *Handlers) UpdateEmail(w http.ResponseWriter, r *http.Request) error {
	var req updateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid email update")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid email update")
	}
	sess, err := h.app.UpdateEmail(r.Context(), req.UserID, req.CurrentPassword, req.NewEmail)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, sess)
	return nil
}

type updatePasswordRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (h *Handlers) UpdatePassword(w http.ResponseWriter, r *http.Request) error {
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid password update")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid password update")
	}
	if err := h.app.UpdatePassword(r.Context(), req.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

func (h *Handlers) OpenDashboard(w http.ResponseWriter, r *http.Request) error {
	if err := h.app.OpenDashboard(r.Context()); err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

func (h *Handlers) CloseDashboard(w http.ResponseWriter, _ *http.Request) error {
	h.app.CloseDashboard()
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type rateMediaRequest struct {
	MediaID   int64          `json:"media_id" validate:"required,gt=0"`
	Rating    int            `json:"rating" validate:"min=0,max=5"`
	MediaType tmdb.MediaType `json:"media_type"`
}

func (h *Handlers) RateMedia(w http.ResponseWriter, r *http.Request) error {
	var req rateMediaRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid rating request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid rating request")
	}
	if err := h.app.RateMedia(r.Context(), req.MediaID, req.Rating, req.MediaType); err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
	return nil
}

type toggleFavoriteRequest struct {
	ActorID int64 `json:"actor_id" validate:"required,gt=0"`
}

type toggleFavoriteResponse struct {
	Favorite bool `json:"favorite"`
}

func (h *Handlers) ToggleFavoriteActor(w http.ResponseWriter, r *http.Request) error {
	var req toggleFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid favorite request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid favorite request")
	}
	favorite, err := h.app.ToggleFavoriteActor(r.Context(), req.ActorID)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, toggleFavoriteResponse{Favorite: favorite})
	return nil
}

type addReviewRequest struct {
	MediaID int64  `json:"media_id" validate:"required,gt=0"`
	Text    string `json:"text" validate:"required,max=5000"`
	Rating  int    `json:"rating" validate:"min=0,max=5"`
}

func (h *Handlers) AddReview(w http.ResponseWriter, r *http.Request) error {
	var req addReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("invalid review request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest("invalid review request")
	}
	review, err := h.app.AddReview(r.Context(), req.MediaID, req.Text, req.Rating)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusCreated, review)
	return nil
}

func (h *Handlers) DeleteReview(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if id == "" {
		return badRequest("missing review id")
	}
	if err := h.app.DeleteReview(r.Context(), id); err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

// mapErr converts domain errors into HTTP statuses. Account service errors
// carry their upstream status and message through verbatim.
func mapErr(err error) error {
	switch {
	case errors.Is(err, session.ErrUnauthenticated):
		return unauthorized("not logged in")
	case errors.Is(err, session.ErrForbidden):
		return forbidden("not allowed")
	case errors.Is(err, session.ErrNotRated):
		return badRequest("rate the title before reviewing it")
	case errors.Is(err, account.ErrNotFound):
		return notFound("not found")
	}
	var acctErr *account.Error
	if errors.As(err, &acctErr) {
		return &Error{Status: acctErr.Status, Message: acctErr.Message}
	}
	return err
}
