package app

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/logger"
	"github.com/gravcine/gravcine/internal/tmdb"
	"github.com/gravcine/gravcine/internal/view"
)

const (
	errHomeLoad       = "failed to load home page listings, check your connection and try again"
	errHomePartial    = "some home page listings could not be loaded"
	errSearchFailed   = "search failed, check your connection and try again"
	errMediaDetail    = "failed to load media details, try again"
	errMediaPartial   = "some media details could not be loaded"
	errMediaSelection = "cannot load details for this title: incomplete selection"
	errActorDetail    = "failed to load actor details, try again"
	errActorPartial   = "some actor details could not be loaded"
	errProfileMissing = "user profile not found"
	errProfileLoad    = "failed to load user profile"
)

// LoadHome populates the four home lanes. The calls fan out in parallel;
// successes commit even when siblings fail, a banner flags partial failure,
// and a total failure commits nothing.
func (a *App) LoadHome(ctx context.Context) {
	a.mu.Lock()
	a.home = HomeState{Status: Status{Loading: true}}
	seq := a.machine.Begin(view.SlotHome)
	a.mu.Unlock()

	var (
		trending, action, horror, drama []tmdb.MediaResult
		errs                            [4]error
	)
	var g errgroup.Group
	g.Go(func() error { trending, errs[0] = a.tmdb.Trending(ctx); return nil })
	g.Go(func() error { action, errs[1] = a.tmdb.DiscoverByGenre(ctx, genreAction, tmdb.MediaTypeMovie); return nil })
	g.Go(func() error { horror, errs[2] = a.tmdb.DiscoverByGenre(ctx, genreHorror, tmdb.MediaTypeMovie); return nil })
	g.Go(func() error { drama, errs[3] = a.tmdb.DiscoverByGenre(ctx, genreDrama, tmdb.MediaTypeMovie); return nil })
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			a.log.Warn("home listing fetch failed", logger.Error(err))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotHome, seq) {
		return
	}
	a.home.Loading = false
	if failed == len(errs) {
		a.home.Err = errHomeLoad
		return
	}
	a.home.Trending = truncate(trending, trendingCount)
	a.home.Action = truncate(action, laneCount)
	a.home.Horror = truncate(horror, laneCount)
	a.home.Drama = truncate(drama, laneCount)
	if failed > 0 {
		a.home.Err = errHomePartial
	}
	a.home.Empty = len(a.home.Trending) == 0 && len(a.home.Action) == 0 &&
		len(a.home.Horror) == 0 && len(a.home.Drama) == 0
}

// SubmitSearch runs a media or person search. An empty query is a reset to
// home, matching a logo click.
func (a *App) SubmitSearch(ctx context.Context, query string, searchType view.SearchType) {
	query = strings.TrimSpace(query)
	if query == "" {
		a.LogoClick()
		return
	}

	a.mu.Lock()
	a.machine.SubmitSearch(query, searchType)
	searchType = a.machine.SearchType()
	a.search = SearchState{Status: Status{Loading: true}}
	a.clearDetailSlots()
	seq := a.machine.Begin(view.SlotSearch)
	a.mu.Unlock()

	var (
		media  []tmdb.MediaResult
		people []tmdb.PersonResult
		err    error
	)
	if searchType == view.SearchTypePerson {
		people, err = a.tmdb.SearchPeople(ctx, query)
	} else {
		media, err = a.tmdb.SearchMedia(ctx, query)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotSearch, seq) {
		return
	}
	a.search.Loading = false
	if err != nil {
		a.log.Warn("search failed", logger.Error(err))
		a.search.Err = errSearchFailed
		a.machine.MarkSearchResults(false)
		return
	}
	a.search.Media = media
	a.search.People = people
	a.machine.MarkSearchResults(len(media) > 0 || len(people) > 0)
}

// SelectMedia opens the media detail view and fans out its five calls:
// details, credits, watch providers, videos and reviews.
func (a *App) SelectMedia(ctx context.Context, ref view.MediaRef) {
	a.mu.Lock()
	a.machine.SelectMedia(ref)
	a.machine.Begin(view.SlotActor)
	a.actor = ActorState{}
	if !ref.Complete() {
		a.media = MediaState{Status: Status{Err: errMediaSelection}, Ref: ref}
		a.mu.Unlock()
		return
	}
	a.media = MediaState{Status: Status{Loading: true}, Ref: ref}
	seq := a.machine.Begin(view.SlotMedia)
	a.mu.Unlock()

	var (
		detail    *tmdb.Detail
		credits   *tmdb.Credits
		providers tmdb.WatchProviders
		videos    []tmdb.Video
		reviews   []account.Review
		errs      [5]error
	)
	var g errgroup.Group
	g.Go(func() error { detail, errs[0] = a.tmdb.Details(ctx, ref.ID, ref.MediaType); return nil })
	g.Go(func() error { credits, errs[1] = a.tmdb.Credits(ctx, ref.ID, ref.MediaType); return nil })
	g.Go(func() error { providers, errs[2] = a.tmdb.WatchProviders(ctx, ref.ID, ref.MediaType); return nil })
	g.Go(func() error { videos, errs[3] = a.tmdb.Videos(ctx, ref.ID, ref.MediaType); return nil })
	g.Go(func() error { reviews, errs[4] = a.account.ListReviews(ctx, ref.ID); return nil })
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			a.log.Warn("media detail fetch failed", logger.Error(err))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotMedia, seq) {
		return
	}
	a.media.Loading = false
	if failed == len(errs) {
		a.media.Err = errMediaDetail
		return
	}
	a.media.Detail = detail
	a.media.Credits = credits
	a.media.Providers = providers
	a.media.Videos = videos
	if reviews == nil {
		reviews = []account.Review{}
	}
	a.media.Reviews = reviews
	if failed > 0 {
		a.media.Err = errMediaPartial
	}
}

// SelectActor opens the actor detail view: person details, combined
// credits and images, in parallel.
func (a *App) SelectActor(ctx context.Context, id int64) {
	a.mu.Lock()
	a.machine.SelectActor(id)
	a.machine.Begin(view.SlotMedia)
	a.media = MediaState{}
	a.actor = ActorState{Status: Status{Loading: true}, ID: id}
	seq := a.machine.Begin(view.SlotActor)
	a.mu.Unlock()

	var (
		detail  *tmdb.PersonDetail
		credits []tmdb.MediaResult
		images  []tmdb.PersonImage
		errs    [3]error
	)
	var g errgroup.Group
	g.Go(func() error { detail, errs[0] = a.tmdb.PersonDetails(ctx, id); return nil })
	g.Go(func() error { credits, errs[1] = a.tmdb.PersonCombinedCredits(ctx, id); return nil })
	g.Go(func() error { images, errs[2] = a.tmdb.PersonImages(ctx, id); return nil })
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			a.log.Warn("actor detail fetch failed", logger.Error(err))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotActor, seq) {
		return
	}
	a.actor.Loading = false
	if failed == len(errs) {
		a.actor.Err = errActorDetail
		return
	}
	a.actor.Detail = detail
	a.actor.Credits = credits
	a.actor.Images = images
	if failed > 0 {
		a.actor.Err = errActorPartial
	}
}

// ViewProfile opens a user profile. The caller's own profile is overlaid
// with the live session identity and the local rating/favorite caches.
func (a *App) ViewProfile(ctx context.Context, userID string) {
	a.mu.Lock()
	a.machine.ViewProfile(userID)
	a.clearDetailSlots()
	a.profile = ProfileState{Status: Status{Loading: true}}
	seq := a.machine.Begin(view.SlotProfile)
	a.mu.Unlock()

	prof, err := a.account.Profile(ctx, userID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotProfile, seq) {
		return
	}
	a.profile.Loading = false
	if errors.Is(err, account.ErrNotFound) {
		a.profile.Err = errProfileMissing
		return
	}
	if err != nil {
		a.log.Warn("profile fetch failed", logger.Error(err))
		a.profile.Err = errProfileLoad
		return
	}

	cur := a.session.Current()
	if cur != nil && cur.UserID == userID {
		prof.Username = cur.Username
		prof.Email = cur.Email
		prof.ProfilePictureURL = cur.ProfilePictureURL
		prof.FavoriteActorIDs = cur.FavoriteActorIDs
		a.profile.Own = true
		a.profile.Ratings = a.session.Ratings()
		a.profile.FavoriteActorIDs = cur.FavoriteActorIDs
	}
	a.profile.Profile = prof
}

// clearDetailSlots drops both detail views and invalidates any batch still
// in flight for them. Callers hold a.mu.
func (a *App) clearDetailSlots() {
	a.machine.Begin(view.SlotMedia)
	a.machine.Begin(view.SlotActor)
	a.media = MediaState{}
	a.actor = ActorState{}
}

func truncate(items []tmdb.MediaResult, n int) []tmdb.MediaResult {
	if len(items) > n {
		return items[:n]
	}
	return items
}
