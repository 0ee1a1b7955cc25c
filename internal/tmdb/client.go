// Package tmdb wraps the TMDB API for search, listings, media details and person data.
package tmdb

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// ErrNotFound reports that a record does not exist for the requested media
// type. Callers use it to drive the movie/tv fallback; it is never surfaced
// to the user directly.
var ErrNotFound = errors.New("tmdb: not found")

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

// Other returns the opposite media type, used for the dashboard type fallback.
func (t MediaType) Other() MediaType {
	if t == MediaTypeMovie {
		return MediaTypeTV
	}
	return MediaTypeMovie
}

type Client struct {
	apiKey    string
	readToken string
	baseURL   string
	locale    string
	limiter   *rate.Limiter
	http      *http.Client
}

type Config struct {
	APIKey    string
	ReadToken string
	BaseURL   string
	Locale    string
}

func New(cfg Config) *Client {
	apiKey, readToken := cfg.APIKey, cfg.ReadToken
	if strings.TrimSpace(readToken) == "" && looksLikeJWT(apiKey) {
		readToken = apiKey
		apiKey = ""
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	locale := cfg.Locale
	if locale == "" {
		locale = "pt-BR"
	}
	return &Client{
		apiKey:    apiKey,
		readToken: readToken,
		baseURL:   baseURL,
		locale:    locale,
		limiter:   rate.NewLimiter(rate.Limit(40), 40),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type MediaResult struct {
	ID          int64
	MediaType   MediaType
	Title       string
	Year        string
	PosterPath  string
	Overview    string
	VoteAverage float64
	Popularity  float64
	GenreIDs    []int64
}

type PersonResult struct {
	ID                 int64
	Name               string
	ProfilePath        string
	KnownForDepartment string
	Popularity         float64
	KnownFor           []MediaResult
}

// Detail is the tagged movie/tv variant with the shared projection (Title,
// Year) resolved at decode time. Movie-only and tv-only fields are zero for
// the other variant.
type Detail struct {
	ID           int64
	MediaType    MediaType
	Title        string
	Year         string
	Overview     string
	Tagline      string
	PosterPath   string
	BackdropPath string
	VoteAverage  float64
	Genres       []string

	ReleaseDate string
	Runtime     int

	FirstAirDate   string
	EpisodeRunTime []int
	Seasons        int
	Episodes       int
	ShowStatus     string
	InProduction   bool
}

type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
	Order       int    `json:"order"`
}

type CrewMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department"`
	ProfilePath string `json:"profile_path"`
}

type Credits struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

type Provider struct {
	ProviderID      int64  `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	LogoPath        string `json:"logo_path"`
	DisplayPriority int    `json:"display_priority"`
}

type CountryProviders struct {
	Link     string     `json:"link"`
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
}

// WatchProviders maps a country code to the providers available there.
type WatchProviders map[string]CountryProviders

type Video struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Site        string `json:"site"`
	Type        string `json:"type"`
	Official    bool   `json:"official"`
	PublishedAt string `json:"published_at"`
}

type PersonDetail struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Biography          string   `json:"biography"`
	Birthday           string   `json:"birthday"`
	Deathday           string   `json:"deathday"`
	PlaceOfBirth       string   `json:"place_of_birth"`
	ProfilePath        string   `json:"profile_path"`
	KnownForDepartment string   `json:"known_for_department"`
	AlsoKnownAs        []string `json:"also_known_as"`
	Popularity         float64  `json:"popularity"`
}

type PersonImage struct {
	FilePath    string  `json:"file_path"`
	AspectRatio float64 `json:"aspect_ratio"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

type mediaItem struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int64 `json:"genre_ids"`
}

type mediaListResponse struct {
	Page    int         `json:"page"`
	Results []mediaItem `json:"results"`
}

type personListResponse struct {
	Results []struct {
		ID                 int64       `json:"id"`
		Name               string      `json:"name"`
		ProfilePath        string      `json:"profile_path"`
		KnownForDepartment string      `json:"known_for_department"`
		Popularity         float64     `json:"popularity"`
		KnownFor           []mediaItem `json:"known_for"`
	} `json:"results"`
}

type detailResponse struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	Tagline      string  `json:"tagline"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Runtime          int    `json:"runtime"`
	EpisodeRunTime   []int  `json:"episode_run_time"`
	NumberOfSeasons  int    `json:"number_of_seasons"`
	NumberOfEpisodes int    `json:"number_of_episodes"`
	Status           string `json:"status"`
	InProduction     bool   `json:"in_production"`
}

type providersResponse struct {
	ID      int64          `json:"id"`
	Results WatchProviders `json:"results"`
}

type videosResponse struct {
	ID      int64   `json:"id"`
	Results []Video `json:"results"`
}

type personCreditsResponse struct {
	ID   int64       `json:"id"`
	Cast []mediaItem `json:"cast"`
}

type personImagesResponse struct {
	ID       int64         `json:"id"`
	Profiles []PersonImage `json:"profiles"`
}

// SearchMedia runs a multi search and keeps movie/tv results with posters.
func (c *Client) SearchMedia(ctx context.Context, query string) ([]MediaResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("include_adult", "false")
	values.Set("page", "1")

	var payload mediaListResponse
	if err := c.get(ctx, "/search/multi", values, &payload); err != nil {
		return nil, err
	}
	return normalizeMedia(payload.Results, ""), nil
}

func (c *Client) SearchPeople(ctx context.Context, query string) ([]PersonResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("include_adult", "false")
	values.Set("page", "1")

	var payload personListResponse
	if err := c.get(ctx, "/search/person", values, &payload); err != nil {
		return nil, err
	}
	out := make([]PersonResult, 0, len(payload.Results))
	for _, p := range payload.Results {
		if p.ProfilePath == "" {
			continue
		}
		out = append(out, PersonResult{
			ID:                 p.ID,
			Name:               p.Name,
			ProfilePath:        p.ProfilePath,
			KnownForDepartment: p.KnownForDepartment,
			Popularity:         p.Popularity,
			KnownFor:           normalizeMedia(p.KnownFor, ""),
		})
	}
	return out, nil
}

// Trending lists this week's trending movies and tv shows.
func (c *Client) Trending(ctx context.Context) ([]MediaResult, error) {
	values := url.Values{}
	values.Set("page", "1")
	values.Set("include_adult", "false")

	var payload mediaListResponse
	if err := c.get(ctx, "/trending/all/week", values, &payload); err != nil {
		return nil, err
	}
	return normalizeMedia(payload.Results, ""), nil
}

func (c *Client) DiscoverByGenre(ctx context.Context, genreID int64, mediaType MediaType) ([]MediaResult, error) {
	if !mediaType.Valid() {
		return nil, errors.New("invalid media type")
	}
	values := url.Values{}
	values.Set("with_genres", strconv.FormatInt(genreID, 10))
	values.Set("sort_by", "popularity.desc")
	values.Set("include_adult", "false")
	values.Set("page", "1")

	var payload mediaListResponse
	if err := c.get(ctx, "/discover/"+string(mediaType), values, &payload); err != nil {
		return nil, err
	}
	return normalizeMedia(payload.Results, mediaType), nil
}

func (c *Client) Details(ctx context.Context, id int64, mediaType MediaType) (*Detail, error) {
	if !mediaType.Valid() {
		return nil, errors.New("invalid media type")
	}
	var payload detailResponse
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", mediaType, id), url.Values{}, &payload); err != nil {
		return nil, err
	}

	detail := &Detail{
		ID:           payload.ID,
		MediaType:    mediaType,
		Overview:     payload.Overview,
		Tagline:      payload.Tagline,
		PosterPath:   payload.PosterPath,
		BackdropPath: payload.BackdropPath,
		VoteAverage:  payload.VoteAverage,
	}
	for _, g := range payload.Genres {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		detail.Genres = append(detail.Genres, g.Name)
	}
	if mediaType == MediaTypeTV {
		detail.Title = payload.Name
		detail.Year = yearFromDate(payload.FirstAirDate)
		detail.FirstAirDate = payload.FirstAirDate
		detail.EpisodeRunTime = payload.EpisodeRunTime
		detail.Seasons = payload.NumberOfSeasons
		detail.Episodes = payload.NumberOfEpisodes
		detail.ShowStatus = payload.Status
		detail.InProduction = payload.InProduction
	} else {
		detail.Title = payload.Title
		detail.Year = yearFromDate(payload.ReleaseDate)
		detail.ReleaseDate = payload.ReleaseDate
		detail.Runtime = payload.Runtime
	}
	return detail, nil
}

func (c *Client) Credits(ctx context.Context, id int64, mediaType MediaType) (*Credits, error) {
	if !mediaType.Valid() {
		return nil, errors.New("invalid media type")
	}
	var payload Credits
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/credits", mediaType, id), url.Values{}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) WatchProviders(ctx context.Context, id int64, mediaType MediaType) (WatchProviders, error) {
	if !mediaType.Valid() {
		return nil, errors.New("invalid media type")
	}
	var payload providersResponse
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/watch/providers", mediaType, id), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *Client) Videos(ctx context.Context, id int64, mediaType MediaType) ([]Video, error) {
	if !mediaType.Valid() {
		return nil, errors.New("invalid media type")
	}
	var payload videosResponse
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/videos", mediaType, id), url.Values{}, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *Client) PersonDetails(ctx context.Context, id int64) (*PersonDetail, error) {
	var payload PersonDetail
	if err := c.get(ctx, fmt.Sprintf("/person/%d", id), url.Values{}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// PersonCombinedCredits returns the person's movie/tv filmography with
// posters, most popular first.
func (c *Client) PersonCombinedCredits(ctx context.Context, id int64) ([]MediaResult, error) {
	var payload personCreditsResponse
	if err := c.get(ctx, fmt.Sprintf("/person/%d/combined_credits", id), url.Values{}, &payload); err != nil {
		return nil, err
	}
	out := normalizeMedia(payload.Cast, "")
	slices.SortFunc(out, func(a, b MediaResult) int {
		return cmp.Compare(b.Popularity, a.Popularity)
	})
	return out, nil
}

func (c *Client) PersonImages(ctx context.Context, id int64) ([]PersonImage, error) {
	var payload personImagesResponse
	if err := c.get(ctx, fmt.Sprintf("/person/%d/images", id), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Profiles, nil
}

// get performs a locale-aware GET against the API. A nil query skips the
// language parameter (image and provider endpoints are not localized).
func (c *Client) get(ctx context.Context, path string, values url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if values == nil {
		values = url.Values{}
	} else {
		values.Set("language", c.locale)
	}
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}

	endpoint := c.baseURL + path + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.applyAuth(req)
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
		statusErr := fmt.Errorf("tmdb request failed: %s", resp.Status)
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(statusErr, cerr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	return resp.Body.Close()
}

func (c *Client) applyAuth(req *http.Request) {
	if strings.TrimSpace(c.readToken) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.readToken))
}

// normalizeMedia resolves the movie/tv title vs name split and drops entries
// without a recognized type or a poster.
func normalizeMedia(items []mediaItem, override MediaType) []MediaResult {
	out := make([]MediaResult, 0, len(items))
	for i := range items {
		it := items[i]
		mediaType := MediaType(it.MediaType)
		if override != "" {
			mediaType = override
		}
		if !mediaType.Valid() || it.PosterPath == "" {
			continue
		}
		res := MediaResult{
			ID:          it.ID,
			MediaType:   mediaType,
			PosterPath:  it.PosterPath,
			Overview:    it.Overview,
			VoteAverage: it.VoteAverage,
			Popularity:  it.Popularity,
			GenreIDs:    it.GenreIDs,
		}
		if mediaType == MediaTypeMovie {
			res.Title = it.Title
			res.Year = yearFromDate(it.ReleaseDate)
		} else {
			res.Title = it.Name
			res.Year = yearFromDate(it.FirstAirDate)
		}
		if res.Title == "" {
			continue
		}
		out = append(out, res)
	}
	return out
}

func yearFromDate(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func looksLikeJWT(token string) bool {
	parts := strings.Split(strings.TrimSpace(token), ".")
	return len(parts) == 3 && len(token) > 80
}
