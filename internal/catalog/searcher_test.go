package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/ratelimit"
	"github.com/jfelder/chronicle-harvester/internal/retry"
)

func newTestSearcher(t *testing.T, baseURL string) *Searcher {
	t.Helper()
	limiter := ratelimit.New(ratelimit.Config{Requests: 1000, Period: time.Second})
	s, err := New(limiter, Config{
		SearchBaseURL: baseURL,
		Timeout:       5 * time.Second,
		Retry:         retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Factor: 2},
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

const docsBody = `{
	"response": {
		"numFound": 3,
		"docs": [
			{"identifier": "gazette_1901-05-01", "date": "1901-05-01"},
			{"identifier": "gazette_1901-05-02", "date": "1901-05-02"},
			{"identifier": "gazette_1901-05-03", "date": "1901-05-03"}
		]
	}
}`

func TestSearch_BuildsExpectedQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "50", r.URL.Query().Get("rows"))
		assert.Equal(t, []string{"identifier", "date"}, r.URL.Query()["fl[]"])
		assert.Equal(t, []string{"date asc"}, r.URL.Query()["sort[]"])
		assert.Equal(t, "json", r.URL.Query().Get("output"))
		fmt.Fprint(w, docsBody)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	ids, err := s.Search(context.Background(), Query{
		Collection: "daily-gazette",
		From:       "1901-05-01",
		To:         "1901-05-31",
		Limit:      50,
	})
	require.NoError(t, err)
	assert.Equal(t, "collection:(daily-gazette) AND mediatype:(texts) AND date:[1901-05-01 TO 1901-05-31]", gotQuery)
	assert.Equal(t, []string{"gazette_1901-05-01", "gazette_1901-05-02", "gazette_1901-05-03"}, ids)
}

func TestSearch_OmitsDateFilterWhenUnset(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"response": {"numFound": 0, "docs": []}}`)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	_, err := s.Search(context.Background(), Query{Collection: "daily-gazette", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "collection:(daily-gazette) AND mediatype:(texts)", gotQuery)
}

func TestSearch_ZeroMatchesIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"response": {"numFound": 0, "docs": []}}`)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	ids, err := s.Search(context.Background(), Query{Collection: "empty", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, docsBody)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	ids, err := s.Search(context.Background(), Query{Collection: "daily-gazette", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_RetriesMalformedJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"response": {"numFound": 3, "docs": [`)
			return
		}
		fmt.Fprint(w, docsBody)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	ids, err := s.Search(context.Background(), Query{Collection: "daily-gazette", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestSearch_ExhaustedRetriesSurfaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	_, err := s.Search(context.Background(), Query{Collection: "daily-gazette", Limit: 10})
	assert.Error(t, err)
}

func TestSearch_SkipsMalformedIdentifiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"response": {
				"numFound": 2,
				"docs": [
					{"identifier": "good_id-1", "date": "1901-05-01"},
					{"identifier": "!!", "date": "1901-05-02"}
				]
			}
		}`)
	}))
	defer srv.Close()

	s := newTestSearcher(t, srv.URL)
	ids, err := s.Search(context.Background(), Query{Collection: "c-1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"good_id-1"}, ids)
}

func TestQueryValidate(t *testing.T) {
	assert.Error(t, Query{}.Validate())
	assert.Error(t, Query{Collection: "c-1"}.Validate())                                          // missing limit
	assert.Error(t, Query{Collection: "c-1", Limit: 10, From: "1901-05-01"}.Validate())           // half a range
	assert.Error(t, Query{Collection: "c-1", Limit: 10, From: "bad", To: "1901-05-31"}.Validate()) // bad date
	assert.NoError(t, Query{Collection: "c-1", Limit: 10}.Validate())
	assert.NoError(t, Query{Collection: "c-1", Limit: 10, From: "1901-05-01", To: "1901-05-31"}.Validate())
}
