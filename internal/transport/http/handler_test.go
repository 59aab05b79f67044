package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrestlenews/internal/domain"
	"wrestlenews/internal/registry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeFeed struct {
	mu         sync.Mutex
	state      domain.FeedState
	criteria   domain.FilterCriteria
	read       []string
	requested  int
	refreshErr error
	cancelled  bool
	updates    chan domain.FeedState
}

func (f *fakeFeed) Snapshot() domain.FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeFeed) Filter(c domain.FilterCriteria) []domain.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = c
	return f.state.Articles
}

func (f *fakeFeed) Refresh(ctx context.Context) (domain.FeedState, error) {
	return f.Snapshot(), f.refreshErr
}

func (f *fakeFeed) RequestRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested++
}

func (f *fakeFeed) CancelRefresh() bool { return f.cancelled }

func (f *fakeFeed) MarkRead(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, ids...)
}

func (f *fakeFeed) Subscribe() (<-chan domain.FeedState, func()) {
	ch := make(chan domain.FeedState, 1)
	ch <- f.Snapshot()
	return ch, func() {}
}

type testEnv struct {
	handler *Handler
	feed    *fakeFeed
	sources *registry.Sources
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sources := registry.NewSources(log)
	require.NoError(t, sources.Register(domain.SourceDescriptor{
		Source:  domain.NewsSource{Name: "WWE", URL: "https://www.wwe.com", Tier: domain.TierOne},
		FeedURL: "https://www.wwe.com/feeds/news",
	}))
	feed := &fakeFeed{state: domain.FeedState{
		Version:  3,
		Phase:    domain.PhaseIdle,
		Outcome:  domain.OutcomeSuccess,
		Articles: []domain.Article{{ID: "a1", Title: "Title Change"}},
	}}
	h := NewHandler(log, feed, sources, registry.NewPromotions(nil), 50)
	return &testEnv{handler: h, feed: feed, sources: sources, router: NewServer(log, h)}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetNews_Filters(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/news?category=results,injuries&promotion=aew&promotion=WWE&source=https://www.wwe.com&verified=true&breaking=1&unread=true&since=2025-03-01T00:00:00Z&limit=5", "")

	require.Equal(t, http.StatusOK, w.Code)
	var articles []domain.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &articles))
	assert.Len(t, articles, 1)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	c := env.feed.criteria
	assert.Equal(t, []domain.Category{domain.CategoryResults, domain.CategoryInjuries}, c.Categories)
	assert.Equal(t, []domain.Promotion{"AEW", "WWE"}, c.Promotions)
	assert.Equal(t, []string{"https://www.wwe.com"}, c.Sources)
	assert.True(t, c.VerifiedOnly)
	assert.True(t, c.BreakingOnly)
	assert.True(t, c.UnreadOnly)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), c.Since.UTC())
	assert.Equal(t, 5, c.Limit)
}

func TestGetNews_DefaultLimit(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/news", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, env.feed.criteria.Limit)
	assert.False(t, env.feed.criteria.VerifiedOnly)
}

func TestGetNews_InvalidParams(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"limit=0", "limit=abc", "since=yesterday", "category=gossip"} {
		w := env.do(http.MethodGet, "/api/news?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Contains(t, w.Body.String(), "error", q)
	}
}

func TestGetFeedAndHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/feed", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.FeedState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, uint64(3), state.Version)
	assert.Equal(t, domain.OutcomeSuccess, state.Outcome)

	w = env.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"ok"`, mustField(t, w.Body.Bytes(), "status"))
	assert.JSONEq(t, `1`, mustField(t, w.Body.Bytes(), "articles"))
}

func mustField(t *testing.T, body []byte, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return string(m[key])
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, env.feed.requested)

	w = env.do(http.MethodPost, "/api/refresh?wait=true", "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.feed.refreshErr = domain.ErrAllSourcesFailed
	w = env.do(http.MethodPost, "/api/refresh?wait=true", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "all sources failed")

	env.feed.refreshErr = domain.ErrRefreshCancelled
	w = env.do(http.MethodPost, "/api/refresh?wait=true", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.feed.cancelled = true

	w := env.do(http.MethodPost, "/api/refresh/cancel", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cancelled":true}`, w.Body.String())
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/news/read", `{"ids":["a1","b2"]}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"a1", "b2"}, env.feed.read)

	w = env.do(http.MethodPost, "/api/news/read", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSources(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, w.Code)
	var views []sourceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "www.wwe.com", views[0].Key)
	assert.Equal(t, "rss", views[0].Kind)

	w = env.do(http.MethodPut, "/api/sources/tier", `{"source":"https://www.wwe.com/","tier":"tier2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TierTwo, env.sources.ResolveTier("www.wwe.com"))

	w = env.do(http.MethodPut, "/api/sources/tier", `{"source":"https://unknown.example","tier":"tier2"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPut, "/api/sources/tier", `{"source":"https://www.wwe.com","tier":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/sources", `{"name":"Fightful","url":"https://www.fightful.com","tier":"tier2"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, env.sources.Len())

	w = env.do(http.MethodPost, "/api/sources", `{"name":"Fightful","url":"https://www.fightful.com","tier":"tier2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodDelete, "/api/sources?source=https://www.fightful.com", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, env.sources.Len())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodOptions, "/api/news", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsKept(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/health", "")

	w := env.do(http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wrestlenews_http_requests_total")
}

func TestStream_SendsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	assert.Equal(t, "feed", event)
	var state domain.FeedState
	require.NoError(t, json.Unmarshal([]byte(data), &state))
	assert.Equal(t, uint64(3), state.Version)
}

func TestStream_ClosedOnShutdown(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event:feed\n", line)

	env.handler.CloseStreams()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, reader)
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream stayed open after CloseStreams")
	}
}
