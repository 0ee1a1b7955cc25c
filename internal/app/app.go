// Package app binds the navigation state machine, the fetch orchestrator
// and the optimistic mutation layer into one client runtime.
package app

import (
	"log/slog"
	"sync"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/session"
	"github.com/gravcine/gravcine/internal/tmdb"
	"github.com/gravcine/gravcine/internal/view"
)

// TMDB genre ids for the home page lanes.
const (
	genreAction = 28
	genreHorror = 27
	genreDrama  = 18
)

// Display counts after client-side truncation.
const (
	trendingCount = 10
	laneCount     = 7
)

type App struct {
	mu      sync.Mutex
	log     *slog.Logger
	machine *view.Machine
	tmdb    *tmdb.Client
	account *account.Client
	session *session.Manager

	home      HomeState
	search    SearchState
	media     MediaState
	actor     ActorState
	profile   ProfileState
	dashboard DashboardState
}

func New(log *slog.Logger, mc *tmdb.Client, ac *account.Client, sm *session.Manager) *App {
	return &App{
		log:     log,
		machine: view.NewMachine(),
		tmdb:    mc,
		account: ac,
		session: sm,
	}
}

// Status is the per-slot loading/error pair every screen carries.
type Status struct {
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
}

type HomeState struct {
	Status
	Empty    bool               `json:"empty"`
	Trending []tmdb.MediaResult `json:"trending"`
	Action   []tmdb.MediaResult `json:"action"`
	Horror   []tmdb.MediaResult `json:"horror"`
	Drama    []tmdb.MediaResult `json:"drama"`
}

type SearchState struct {
	Status
	Media  []tmdb.MediaResult  `json:"media"`
	People []tmdb.PersonResult `json:"people"`
}

type MediaState struct {
	Status
	Ref       view.MediaRef       `json:"ref"`
	Detail    *tmdb.Detail        `json:"detail,omitempty"`
	Credits   *tmdb.Credits       `json:"credits,omitempty"`
	Providers tmdb.WatchProviders `json:"providers,omitempty"`
	Videos    []tmdb.Video        `json:"videos,omitempty"`
	Reviews   []account.Review    `json:"reviews"`
}

type ActorState struct {
	Status
	ID      int64              `json:"id"`
	Detail  *tmdb.PersonDetail `json:"detail,omitempty"`
	Credits []tmdb.MediaResult `json:"credits,omitempty"`
	Images  []tmdb.PersonImage `json:"images,omitempty"`
}

type ProfileState struct {
	Status
	Own              bool                     `json:"own"`
	Profile          *account.Profile         `json:"profile,omitempty"`
	Ratings          map[int64]session.Rating `json:"ratings,omitempty"`
	FavoriteActorIDs []int64                  `json:"favorite_actor_ids,omitempty"`
}

type DashboardMediaItem struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	PosterPath  string         `json:"poster_path"`
	ReleaseYear string         `json:"release_year"`
	MediaType   tmdb.MediaType `json:"media_type"`
	UserRating  int            `json:"user_rating"`
}

type DashboardActorItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
}

// DashboardState keeps its two lanes decoupled: each has its own loading
// flag, and the combined flag reported in snapshots is their OR.
type DashboardState struct {
	MediaLoading   bool                 `json:"media_loading"`
	ActorsLoading  bool                 `json:"actors_loading"`
	RatedMedia     []DashboardMediaItem `json:"rated_media"`
	FavoriteActors []DashboardActorItem `json:"favorite_actors"`
}

// State is the JSON-ready snapshot of everything a renderer needs.
type State struct {
	Screen           view.Screen              `json:"screen"`
	Query            string                   `json:"query"`
	SearchType       view.SearchType          `json:"search_type"`
	Session          *account.Session         `json:"session,omitempty"`
	Ratings          map[int64]session.Rating `json:"ratings"`
	Home             HomeState                `json:"home"`
	Search           SearchState              `json:"search"`
	Media            MediaState               `json:"media"`
	Actor            ActorState               `json:"actor"`
	Profile          ProfileState             `json:"profile"`
	Dashboard        DashboardState           `json:"dashboard"`
	DashboardLoading bool                     `json:"dashboard_loading"`
}

func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		Screen:           a.machine.Screen(),
		Query:            a.machine.Query(),
		SearchType:       a.machine.SearchType(),
		Session:          a.session.Current(),
		Ratings:          a.session.Ratings(),
		Home:             a.home,
		Search:           a.search,
		Media:            a.media,
		Actor:            a.actor,
		Profile:          a.profile,
		Dashboard:        a.dashboard,
		DashboardLoading: a.dashboard.MediaLoading || a.dashboard.ActorsLoading,
	}
}

// Screen returns the currently active screen.
func (a *App) Screen() view.Screen {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.Screen()
}

// CloseDetail leaves the active detail view, back to the search results if
// a prior non-empty query exists, else home.
func (a *App) CloseDetail() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.machine.CloseDetail()
	a.machine.Begin(view.SlotMedia)
	a.machine.Begin(view.SlotActor)
	a.media = MediaState{}
	a.actor = ActorState{}
}

func (a *App) ShowAuth() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.machine.ShowAuth()
}

func (a *App) CloseAuth() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.machine.CloseAuth()
}

func (a *App) CloseProfile() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.machine.CloseProfile()
	a.machine.Begin(view.SlotProfile)
	a.profile = ProfileState{}
}

func (a *App) CloseDashboard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.machine.CloseDashboard()
	a.machine.Begin(view.SlotDashboardMedia)
	a.machine.Begin(view.SlotDashboardActors)
	a.dashboard = DashboardState{}
}

// LogoClick resets everything back to a clean home screen. Every non-home
// slot advances its sequence so in-flight batches discard themselves.
func (a *App) LogoClick() {
	a.mu.Lock()
	a.machine.LogoClick()
	a.resetTransientSlots()
	a.mu.Unlock()
}

func (a *App) resetTransientSlots() {
	for _, slot := range []view.Slot{
		view.SlotSearch, view.SlotMedia, view.SlotActor,
		view.SlotProfile, view.SlotDashboardMedia, view.SlotDashboardActors,
	} {
		a.machine.Begin(slot)
	}
	a.search = SearchState{}
	a.media = MediaState{}
	a.actor = ActorState{}
	a.profile = ProfileState{}
	a.dashboard = DashboardState{}
}
