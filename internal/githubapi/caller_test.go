package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/pkg/log"
)

func testConfig(apiUrl string) *cfg.Config {
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()
	config.GithubApi.ApiUrl = apiUrl
	return config
}

func newTestCaller(t *testing.T, handler http.Handler) (*Caller, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := log.NewCslLogger()
	return NewCaller(logger, testConfig(server.URL)), server
}

func TestListStargazers(t *testing.T) {
	caller, _ := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello/stargazers", r.URL.Path)
		assert.Equal(t, "application/vnd.github.v3.star+json", r.Header.Get("Accept"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))

		w.Header().Set("Link", `<?page=2>; rel="next", <?page=7>; rel="last"`)
		fmt.Fprint(w, `[{"starred_at":"2023-05-01T10:00:00Z","user":{"login":"alice"}},{"starred_at":"2023-05-02T10:00:00Z","user":{"login":"bob"}}]`)
	}))

	stars, link, err := caller.ListStargazers(context.Background(), "octocat", "hello", 1)
	require.NoError(t, err)
	require.Len(t, stars, 2)
	assert.Equal(t, "alice", stars[0].User.Login)
	assert.Equal(t, 7, LastPage(link))
}

func TestListStargazersSendsToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.GithubApi.AccessToken = "ghp_test"
	logger, _ := log.NewCslLogger()
	caller := NewCaller(logger, config)

	_, _, err := caller.ListStargazers(context.Background(), "octocat", "hello", 1)
	require.NoError(t, err)
	assert.Equal(t, "token ghp_test", gotAuth)
}

func TestCallerForbiddenReturnsRateLimitError(t *testing.T) {
	caller, _ := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))

	_, _, err := caller.ListStargazers(context.Background(), "octocat", "hello", 1)
	require.Error(t, err)

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.True(t, rle.HasQuota)
	assert.Equal(t, 0, rle.Remaining)
	assert.Equal(t, int64(1700000000), rle.Reset)
	assert.True(t, IsRateLimit(err))
}

func TestCallerNotFound(t *testing.T) {
	caller, _ := newTestCaller(t, http.NotFoundHandler())

	_, err := caller.GetRepo(context.Background(), "octocat", "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsRateLimit(err))
}

func TestGetRepo(t *testing.T) {
	caller, _ := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello", r.URL.Path)
		fmt.Fprint(w, `{"id":123,"full_name":"octocat/hello","stargazers_count":4321}`)
	}))

	repo, err := caller.GetRepo(context.Background(), "octocat", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(123), repo.Id)
	assert.Equal(t, int64(4321), repo.StargazersCount)
}

func TestGetRateLimit(t *testing.T) {
	caller, _ := newTestCaller(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"used":4990,"remaining":10,"reset":1700000000}}}`)
	}))

	limit, err := caller.GetRateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, limit.Resources.Core.Limit)
	assert.Equal(t, 10, limit.Resources.Core.Remaining)
}
