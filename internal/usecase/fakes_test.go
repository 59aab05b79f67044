package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
	"wrestlenews/internal/registry"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngineConfig() config.EngineConfig {
	cfg := config.New().Engine
	cfg.MaxRetries = 2
	cfg.RetryBackoff = config.D(time.Millisecond)
	cfg.SourceTimeout = config.D(2 * time.Second)
	cfg.StoreTimeout = config.D(time.Second)
	return cfg
}

func source(name, url string, tier domain.Tier) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Source:  domain.NewsSource{Name: name, URL: url, Tier: tier},
		Kind:    domain.KindRSS,
		FeedURL: url + "/rss",
	}
}

var (
	wweSource      = source("WWE", "https://www.wwe.com", domain.TierOne)
	fightfulSource = source("Fightful", "https://www.fightful.com", domain.TierTwo)
	rumorSource    = source("Ringside Rumors", "https://ringside-rumors.example", domain.TierSpeculation)
)

func payload(guid, title string, published time.Time) domain.RawPayload {
	return domain.RawPayload{
		GUID:        guid,
		URL:         "https://news.example/" + guid,
		Title:       title,
		Summary:     "<p>" + title + " according to multiple reports.</p>",
		PublishedAt: published,
	}
}

// scriptFetcher отдает заранее заданные материалы по ключу источника.
type scriptFetcher struct {
	mu       sync.Mutex
	payloads map[string][]domain.RawPayload
	errs     map[string]error
	calls    map[string]int
}

func newScriptFetcher() *scriptFetcher {
	return &scriptFetcher{
		payloads: make(map[string][]domain.RawPayload),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *scriptFetcher) set(src domain.SourceDescriptor, payloads ...domain.RawPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[src.Key()] = payloads
	delete(f.errs, src.Key())
}

func (f *scriptFetcher) fail(src domain.SourceDescriptor, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[src.Key()] = err
}

func (f *scriptFetcher) Fetch(ctx context.Context, src domain.SourceDescriptor) ([]domain.RawPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src.Key()]++
	if err, ok := f.errs[src.Key()]; ok {
		return nil, err
	}
	return f.payloads[src.Key()], nil
}

// gatedFetcher считает пакеты и может задерживать их до открытия gate.
type gatedFetcher struct {
	inner   BatchFetcher
	batches atomic.Int32
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedFetcher) FetchAll(ctx context.Context, sources []domain.SourceDescriptor, timeout time.Duration) ([]SourceResult, error) {
	if g.batches.Add(1) == 1 && g.started != nil {
		close(g.started)
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrRefreshCancelled, context.Cause(ctx))
		}
	}
	return g.inner.FetchAll(ctx, sources, timeout)
}

type recordingStore struct {
	mu      sync.Mutex
	loaded  []domain.Article
	loadErr error
	upserts [][]domain.Article
	err     error
	closed  bool
}

func (s *recordingStore) LoadAll(ctx context.Context) ([]domain.Article, error) {
	return s.loaded, s.loadErr
}

func (s *recordingStore) UpsertBatch(ctx context.Context, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, articles)
	return s.err
}

func (s *recordingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	got  []domain.Article
	fail bool
}

func (d *recordingDispatcher) PublishBreaking(ctx context.Context, a domain.Article) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("broker down")
	}
	d.got = append(d.got, a)
	return nil
}

func (d *recordingDispatcher) published() []domain.Article {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Article(nil), d.got...)
}

type harness struct {
	manager    *FeedManager
	sources    *registry.Sources
	fetcher    *scriptFetcher
	gated      *gatedFetcher
	store      *recordingStore
	dispatcher *recordingDispatcher
}

func newHarness(cfg config.EngineConfig, descriptors ...domain.SourceDescriptor) *harness {
	log := discardLogger()
	h := &harness{
		sources:    registry.NewSources(log),
		fetcher:    newScriptFetcher(),
		store:      &recordingStore{},
		dispatcher: &recordingDispatcher{},
	}
	for _, d := range descriptors {
		if err := h.sources.Register(d); err != nil {
			panic(err)
		}
	}
	h.gated = &gatedFetcher{inner: NewCoordinator(h.fetcher, cfg, log)}
	h.manager = NewFeedManager(h.gated, h.sources, registry.NewPromotions(nil), cfg, log,
		WithStore(h.store),
		WithDispatcher(h.dispatcher),
		WithClock(func() time.Time { return testNow }),
	)
	return h
}

// blockingPromotions задерживает разбор статей до закрытия release.
type blockingPromotions struct {
	PromotionResolver
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPromotions) Detect(text string) []domain.Promotion {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return p.PromotionResolver.Detect(text)
}
