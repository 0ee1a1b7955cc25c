package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "test-key", BaseURL: srv.URL, Locale: "en-US"})
}

func TestSearchMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/multi", r.URL.Path)
		assert.Equal(t, "matrix", r.URL.Query().Get("query"))
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		w.Write([]byte(`{"page":1,"results":[
			{"id":603,"media_type":"movie","title":"The Matrix","release_date":"1999-03-30","poster_path":"/p1.jpg","popularity":80},
			{"id":1399,"media_type":"tv","name":"Game of Thrones","first_air_date":"2011-04-17","poster_path":"/p2.jpg"},
			{"id":1,"media_type":"person","name":"Keanu Reeves","poster_path":"/p3.jpg"},
			{"id":2,"media_type":"movie","title":"No Poster"},
			{"id":3,"media_type":"movie","release_date":"2000-01-01","poster_path":"/p4.jpg"}
		]}`))
	})

	results, err := c.SearchMedia(context.Background(), "matrix")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "The Matrix", results[0].Title)
	assert.Equal(t, "1999", results[0].Year)
	assert.Equal(t, MediaTypeMovie, results[0].MediaType)
	assert.Equal(t, "Game of Thrones", results[1].Title)
	assert.Equal(t, "2011", results[1].Year)

	t.Run("blank query skips the request", func(t *testing.T) {
		results, err := c.SearchMedia(context.Background(), "   ")
		require.NoError(t, err)
		assert.Nil(t, results)
	})
}

func TestSearchPeople(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/person", r.URL.Path)
		w.Write([]byte(`{"results":[
			{"id":6384,"name":"Keanu Reeves","profile_path":"/k.jpg","known_for_department":"Acting","popularity":50,
				"known_for":[{"id":603,"media_type":"movie","title":"The Matrix","release_date":"1999-03-30","poster_path":"/p1.jpg"}]},
			{"id":99,"name":"No Photo"}
		]}`))
	})

	people, err := c.SearchPeople(context.Background(), "reeves")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Keanu Reeves", people[0].Name)
	require.Len(t, people[0].KnownFor, 1)
	assert.Equal(t, "The Matrix", people[0].KnownFor[0].Title)
}

func TestDetails(t *testing.T) {
	t.Run("movie", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/movie/603", r.URL.Path)
			w.Write([]byte(`{"id":603,"title":"The Matrix","release_date":"1999-03-30","runtime":136,
				"overview":"A hacker.","genres":[{"name":"Action"},{"name":""}],"vote_average":8.2,"poster_path":"/p1.jpg"}`))
		})
		d, err := c.Details(context.Background(), 603, MediaTypeMovie)
		require.NoError(t, err)
		assert.Equal(t, "The Matrix", d.Title)
		assert.Equal(t, "1999", d.Year)
		assert.Equal(t, 136, d.Runtime)
		assert.Equal(t, []string{"Action"}, d.Genres)
		assert.Zero(t, d.Seasons)
	})

	t.Run("tv", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tv/1399", r.URL.Path)
			w.Write([]byte(`{"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17",
				"number_of_seasons":8,"number_of_episodes":73,"status":"Ended","in_production":false,"episode_run_time":[60]}`))
		})
		d, err := c.Details(context.Background(), 1399, MediaTypeTV)
		require.NoError(t, err)
		assert.Equal(t, "Game of Thrones", d.Title)
		assert.Equal(t, "2011", d.Year)
		assert.Equal(t, 8, d.Seasons)
		assert.Equal(t, 73, d.Episodes)
		assert.Equal(t, "Ended", d.ShowStatus)
		assert.Zero(t, d.Runtime)
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := c.Details(context.Background(), 603, MediaTypeTV)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid media type", func(t *testing.T) {
		c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
			t.Fatal("unexpected request")
		})
		_, err := c.Details(context.Background(), 603, "book")
		assert.Error(t, err)
	})
}

func TestDiscoverByGenre(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover/movie", r.URL.Path)
		assert.Equal(t, "28", r.URL.Query().Get("with_genres"))
		w.Write([]byte(`{"results":[{"id":1,"title":"Action Movie","release_date":"2020-05-01","poster_path":"/a.jpg"}]}`))
	})

	results, err := c.DiscoverByGenre(context.Background(), 28, MediaTypeMovie)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, MediaTypeMovie, results[0].MediaType)
}

func TestPersonCombinedCredits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/person/6384/combined_credits", r.URL.Path)
		w.Write([]byte(`{"id":6384,"cast":[
			{"id":1,"media_type":"movie","title":"Minor Role","release_date":"2001-01-01","poster_path":"/m.jpg","popularity":5},
			{"id":603,"media_type":"movie","title":"The Matrix","release_date":"1999-03-30","poster_path":"/p1.jpg","popularity":80}
		]}`))
	})

	credits, err := c.PersonCombinedCredits(context.Background(), 6384)
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.Equal(t, "The Matrix", credits[0].Title)
}

func TestMediaTypeOther(t *testing.T) {
	assert.Equal(t, MediaTypeTV, MediaTypeMovie.Other())
	assert.Equal(t, MediaTypeMovie, MediaTypeTV.Other())
}

func TestServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Trending(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
