// Package account wraps the remote account API: auth, profiles, ratings,
// favorite actors and reviews.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound reports that the requested record does not exist.
var ErrNotFound = errors.New("account: not found")

// Error carries the backend's error message verbatim for non-2xx responses.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message + " code=" + strconv.Itoa(e.Status)
}

type Session struct {
	UserID            string  `json:"id"`
	Username          string  `json:"username"`
	Email             string  `json:"email"`
	ProfilePictureURL string  `json:"profilePictureUrl"`
	FavoriteActorIDs  []int64 `json:"favoriteActorIds"`
}

type Credentials struct {
	Username        string `json:"username,omitempty"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type Profile struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	Email             string  `json:"email"`
	CreatedAt         string  `json:"created_at"`
	ProfilePictureURL string  `json:"profile_picture_url"`
	Bio               string  `json:"bio"`
	FavoriteActorIDs  []int64 `json:"favoriteActorIds"`
}

type Review struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	UserAvatarURL string `json:"userAvatarUrl,omitempty"`
	MediaID       int64  `json:"mediaId"`
	Rating        int    `json:"rating"`
	ReviewDate    string `json:"reviewDate"`
	ReviewText    string `json:"reviewText,omitempty"`
}

// ProfileUpdate carries partial profile changes; nil fields are untouched.
type ProfileUpdate struct {
	Username          *string `json:"username,omitempty"`
	ProfilePictureURL *string `json:"profilePictureUrl,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sessionResponse struct {
	User Session `json:"user"`
}

func (c *Client) Register(ctx context.Context, creds Credentials) (*Session, error) {
	var payload sessionResponse
	if err := c.do(ctx, http.MethodPost, "/register", creds, &payload); err != nil {
		return nil, err
	}
	return normalizeSession(payload.User), nil
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	var payload sessionResponse
	if err := c.do(ctx, http.MethodPost, "/login", creds, &payload); err != nil {
		return nil, err
	}
	return normalizeSession(payload.User), nil
}

func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	var payload struct {
		Profile Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Session, error) {
	var payload sessionResponse
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), update, &payload); err != nil {
		return nil, err
	}
	return normalizeSession(payload.User), nil
}

func (c *Client) UpdateBio(ctx context.Context, userID, bio string) error {
	body := map[string]string{"bio": bio}
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), body, nil)
}

func (c *Client) UpdateEmail(ctx context.Context, userID, currentPassword, newEmail string) (*Session, error) {
	body := map[string]string{
		"currentPasswordAttempt": currentPassword,
		"newEmail":               newEmail,
	}
	var payload sessionResponse
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), body, &payload); err != nil {
		return nil, err
	}
	return normalizeSession(payload.User), nil
}

func (c *Client) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error {
	body := map[string]string{
		"currentPasswordAttempt":  currentPassword,
		"newPasswordValue":        newPassword,
		"confirmNewPasswordValue": confirmPassword,
	}
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), body, nil)
}

func (c *Client) UpsertRating(ctx context.Context, userID string, mediaID int64, rating int, mediaType string) error {
	body := map[string]any{
		"userId":    userID,
		"mediaId":   mediaID,
		"rating":    rating,
		"mediaType": mediaType,
	}
	return c.do(ctx, http.MethodPost, "/ratings", body, nil)
}

func (c *Client) DeleteRating(ctx context.Context, userID string, mediaID int64, mediaType string) error {
	values := url.Values{}
	values.Set("userId", userID)
	values.Set("mediaId", strconv.FormatInt(mediaID, 10))
	values.Set("mediaType", mediaType)
	return c.do(ctx, http.MethodDelete, "/ratings?"+values.Encode(), nil, nil)
}

func (c *Client) AddFavoriteActor(ctx context.Context, userID string, actorID int64) error {
	body := map[string]any{"userId": userID, "actorId": actorID}
	return c.do(ctx, http.MethodPost, "/favorite-actors", body, nil)
}

func (c *Client) RemoveFavoriteActor(ctx context.Context, userID string, actorID int64) error {
	values := url.Values{}
	values.Set("userId", userID)
	values.Set("actorId", strconv.FormatInt(actorID, 10))
	return c.do(ctx, http.MethodDelete, "/favorite-actors?"+values.Encode(), nil, nil)
}

func (c *Client) CreateReview(ctx context.Context, review Review) (string, error) {
	var payload struct {
		ReviewID string `json:"reviewId"`
	}
	if err := c.do(ctx, http.MethodPost, "/reviews", review, &payload); err != nil {
		return "", err
	}
	return payload.ReviewID, nil
}

func (c *Client) DeleteReview(ctx context.Context, reviewID, userID string) error {
	values := url.Values{}
	values.Set("userId", userID)
	return c.do(ctx, http.MethodDelete, "/reviews/"+url.PathEscape(reviewID)+"?"+values.Encode(), nil, nil)
}

// ListReviews returns the reviews for one media id, newest first. A missing
// reviews record is an empty list, not an error.
func (c *Client) ListReviews(ctx context.Context, mediaID int64) ([]Review, error) {
	var payload struct {
		Reviews []Review `json:"reviews"`
	}
	err := c.do(ctx, http.MethodGet, "/reviews/"+strconv.FormatInt(mediaID, 10), nil, &payload)
	if errors.Is(err, ErrNotFound) {
		return []Review{}, nil
	}
	if err != nil {
		return nil, err
	}
	if payload.Reviews == nil {
		payload.Reviews = []Review{}
	}
	return payload.Reviews, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(ErrNotFound, cerr)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp)
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(apiErr, cerr)
		}
		return apiErr
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			if cerr := resp.Body.Close(); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
	}
	return resp.Body.Close()
}

// decodeError reads the backend's {"error": "..."} payload so the message
// can be surfaced to the user verbatim.
func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return &Error{Status: resp.StatusCode, Message: "account request failed: " + resp.Status}
	}
	return &Error{Status: resp.StatusCode, Message: payload.Error}
}

func normalizeSession(s Session) *Session {
	if s.FavoriteActorIDs == nil {
		s.FavoriteActorIDs = []int64{}
	}
	return &s
}
