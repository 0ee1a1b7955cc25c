package app

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gravcine/gravcine/internal/logger"
	"github.com/gravcine/gravcine/internal/session"
	"github.com/gravcine/gravcine/internal/tmdb"
	"github.com/gravcine/gravcine/internal/view"
)

// dashboardFetchLimit caps the per-lane fan-out so a large library does not
// burn the TMDB rate budget in one burst.
const dashboardFetchLimit = 5

// OpenDashboard shows the dashboard and kicks off both lanes. The rated
// media lane and the favorite actors lane load independently; one lane
// failing or lagging never blocks the other.
func (a *App) OpenDashboard(ctx context.Context) error {
	if a.session.Current() == nil {
		return session.ErrUnauthenticated
	}

	a.mu.Lock()
	a.machine.ShowDashboard()
	a.dashboard = DashboardState{MediaLoading: true, ActorsLoading: true}
	a.mu.Unlock()

	// The lanes outlive the triggering request.
	ctx = context.WithoutCancel(ctx)
	go a.refreshDashboardMedia(ctx)
	go a.refreshDashboardActors(ctx)
	return nil
}

// refreshDashboardMedia resolves every locally rated title against TMDB.
// The stored media type is tried first; a 404 retries once under the other
// type, and a double miss drops the entry silently.
func (a *App) refreshDashboardMedia(ctx context.Context) {
	a.mu.Lock()
	seq := a.machine.Begin(view.SlotDashboardMedia)
	a.dashboard.MediaLoading = true
	a.mu.Unlock()

	ratings := a.session.Ratings()

	items := make([]DashboardMediaItem, 0, len(ratings))
	var itemsMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(dashboardFetchLimit)
	for id, r := range ratings {
		g.Go(func() error {
			detail, err := a.resolveRatedMedia(ctx, id, r.MediaType)
			if err != nil {
				if !errors.Is(err, tmdb.ErrNotFound) {
					a.log.Warn("dashboard media fetch failed", "media_id", id, logger.Error(err))
				}
				return nil
			}
			itemsMu.Lock()
			items = append(items, DashboardMediaItem{
				ID:          id,
				Title:       detail.Title,
				PosterPath:  detail.PosterPath,
				ReleaseYear: detail.Year,
				MediaType:   detail.MediaType,
				UserRating:  r.Rating,
			})
			itemsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(items, func(a, b DashboardMediaItem) int {
		return cmp.Compare(a.ID, b.ID)
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotDashboardMedia, seq) {
		return
	}
	a.dashboard.MediaLoading = false
	a.dashboard.RatedMedia = items
}

// resolveRatedMedia fetches details under the stored type, falling back to
// the other type when TMDB reports the id unknown.
func (a *App) resolveRatedMedia(ctx context.Context, id int64, mediaType tmdb.MediaType) (*tmdb.Detail, error) {
	detail, err := a.tmdb.Details(ctx, id, mediaType)
	if errors.Is(err, tmdb.ErrNotFound) {
		return a.tmdb.Details(ctx, id, mediaType.Other())
	}
	return detail, err
}

// refreshDashboardActors resolves the favorite actor ids. Failed lookups
// are logged and dropped; the lane shows what resolved.
func (a *App) refreshDashboardActors(ctx context.Context) {
	a.mu.Lock()
	seq := a.machine.Begin(view.SlotDashboardActors)
	a.dashboard.ActorsLoading = true
	a.mu.Unlock()

	cur := a.session.Current()
	var favoriteIDs []int64
	if cur != nil {
		favoriteIDs = cur.FavoriteActorIDs
	}

	items := make([]DashboardActorItem, 0, len(favoriteIDs))
	var itemsMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(dashboardFetchLimit)
	for _, id := range favoriteIDs {
		g.Go(func() error {
			detail, err := a.tmdb.PersonDetails(ctx, id)
			if err != nil {
				a.log.Warn("dashboard actor fetch failed", "actor_id", id, logger.Error(err))
				return nil
			}
			itemsMu.Lock()
			items = append(items, DashboardActorItem{
				ID:          detail.ID,
				Name:        detail.Name,
				ProfilePath: detail.ProfilePath,
			})
			itemsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(items, func(a, b DashboardActorItem) int {
		return cmp.Compare(a.ID, b.ID)
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.machine.Latest(view.SlotDashboardActors, seq) {
		return
	}
	a.dashboard.ActorsLoading = false
	a.dashboard.FavoriteActors = items
}

// refreshDashboardMediaIfOpen re-runs the rated media lane after a rating
// mutation while the dashboard is the active screen.
func (a *App) refreshDashboardMediaIfOpen(ctx context.Context) {
	a.mu.Lock()
	open := a.machine.Screen() == view.ScreenDashboard
	a.mu.Unlock()
	if open {
		go a.refreshDashboardMedia(context.WithoutCancel(ctx))
	}
}

func (a *App) refreshDashboardActorsIfOpen(ctx context.Context) {
	a.mu.Lock()
	open := a.machine.Screen() == view.ScreenDashboard
	a.mu.Unlock()
	if open {
		go a.refreshDashboardActors(context.WithoutCancel(ctx))
	}
}
