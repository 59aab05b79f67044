package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
	"wrestlenews/internal/metrics"
)

const refreshKey = "refresh"

var (
	errCancelRequested = errors.New("cancelled by request")
	errManagerClosed   = errors.New("feed manager closed")
)

// BatchFetcher загружает пакет источников. Реализуется Coordinator.
type BatchFetcher interface {
	FetchAll(ctx context.Context, sources []domain.SourceDescriptor, timeout time.Duration) ([]SourceResult, error)
}

// FeedManager - единственный владелец состояния ленты. Обновления объединяются:
// параллельные запросы присоединяются к уже идущему циклу и получают тот же снимок.
// Снимки неизменяемы и публикуются атомарно.
type FeedManager struct {
	fetcher    BatchFetcher
	sources    SourceCatalog
	normalizer *Normalizer
	classifier *Classifier
	store      ArticleStore
	dispatcher BreakingDispatcher
	cfg        config.EngineConfig
	log        *slog.Logger
	now        func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	group      singleflight.Group

	// mu сериализует слияние и публикацию снимков.
	mu    sync.Mutex
	state atomic.Pointer[domain.FeedState]

	// cancelMu охраняет closed, cancelInflight и регистрацию в refreshes.
	cancelMu       sync.Mutex
	cancelInflight context.CancelCauseFunc
	closed         bool
	refreshes      sync.WaitGroup

	readMu sync.RWMutex
	read   map[string]struct{}

	subsMu  sync.Mutex
	subs    map[int]chan domain.FeedState
	nextSub int

	pendingMu     sync.Mutex
	pending       map[string]domain.Article
	persistSignal chan struct{}
	persistDone   chan struct{}
	closeOnce     sync.Once
	background    sync.WaitGroup
}

// Option настраивает FeedManager.
type Option func(*FeedManager)

// WithStore подключает постоянное хранилище.
func WithStore(store ArticleStore) Option {
	return func(m *FeedManager) { m.store = store }
}

// WithDispatcher подключает диспетчер срочных новостей.
func WithDispatcher(d BreakingDispatcher) Option {
	return func(m *FeedManager) { m.dispatcher = d }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(m *FeedManager) { m.now = now }
}

// NewFeedManager создает менеджер ленты с пустым начальным снимком.
func NewFeedManager(
	fetcher BatchFetcher,
	sources SourceCatalog,
	promotions PromotionResolver,
	cfg config.EngineConfig,
	log *slog.Logger,
	opts ...Option,
) *FeedManager {
	m := &FeedManager{
		fetcher:       fetcher,
		sources:       sources,
		cfg:           cfg,
		log:           log.With(slog.String("component", "feed-manager")),
		now:           time.Now,
		read:          make(map[string]struct{}),
		subs:          make(map[int]chan domain.FeedState),
		pending:       make(map[string]domain.Article),
		persistSignal: make(chan struct{}, 1),
		persistDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.normalizer = NewNormalizer(promotions, m.now)
	m.classifier = NewClassifier(cfg.BreakingWindow.Duration)
	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	m.state.Store(&domain.FeedState{Articles: []domain.Article{}, Phase: domain.PhaseIdle})
	if m.store != nil {
		go m.persistLoop()
	} else {
		close(m.persistDone)
	}
	return m
}

// Snapshot возвращает текущий опубликованный снимок.
func (m *FeedManager) Snapshot() domain.FeedState {
	return *m.state.Load()
}

// Bootstrap загружает статьи из хранилища при старте. Ошибка хранилища
// не фатальна: лента остается пустой.
func (m *FeedManager) Bootstrap(ctx context.Context) error {
	const op = "usecase.FeedManager.Bootstrap"
	if m.store == nil {
		return nil
	}
	log := m.log.With(slog.String("op", op))
	loaded, err := m.store.LoadAll(ctx)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("load", "error").Inc()
		log.Error("Failed to load articles from store", slog.Any("error", err))
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStorePersistenceFailed, err)
	}
	metrics.StoreOperations.WithLabelValues("load", "ok").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	prev := m.Snapshot()
	merged := Deduplicate(append(append([]domain.Article{}, prev.Articles...), loaded...))
	for i := range merged {
		merged[i] = m.score(merged[i])
	}
	articles, evicted := m.evict(merged, now)
	next := prev
	next.Articles = articles
	m.publishLocked(next)
	log.Info("Feed bootstrapped from store",
		slog.Int("count", len(articles)),
		slog.Int("loaded", len(loaded)),
		slog.Int("evicted", len(evicted)),
	)
	return nil
}

// Refresh запускает цикл обновления или присоединяется к уже идущему.
// Все участники получают один и тот же снимок. Если ctx вызывающего завершается
// раньше, он перестает ждать, но общий цикл продолжается; для отмены самого
// цикла используется CancelRefresh.
func (m *FeedManager) Refresh(ctx context.Context) (domain.FeedState, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.runRefresh()
	})
	select {
	case res := <-ch:
		state, _ := res.Val.(domain.FeedState)
		return state, res.Err
	case <-ctx.Done():
		return m.Snapshot(), fmt.Errorf("%w: %w", domain.ErrRefreshCancelled, ctx.Err())
	}
}

// RequestRefresh запускает обновление в фоне и не ждет результата.
func (m *FeedManager) RequestRefresh() {
	m.cancelMu.Lock()
	defer m.cancelMu.Unlock()
	if m.closed {
		return
	}
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		if _, err := m.Refresh(m.baseCtx); err != nil {
			m.log.Warn("Background refresh finished with error", slog.Any("error", err))
		}
	}()
}

// CancelRefresh отменяет идущий цикл обновления. Возвращает false, если
// обновление не выполнялось.
func (m *FeedManager) CancelRefresh() bool {
	m.cancelMu.Lock()
	defer m.cancelMu.Unlock()
	if m.cancelInflight == nil {
		return false
	}
	m.cancelInflight(errCancelRequested)
	return true
}

func (m *FeedManager) runRefresh() (domain.FeedState, error) {
	const op = "usecase.FeedManager.Refresh"
	log := m.log.With(slog.String("op", op))
	start := time.Now()

	ctx, cancel := context.WithCancelCause(m.baseCtx)
	ctx, stop := context.WithTimeout(ctx, m.cfg.RefreshTimeout.Duration)
	defer stop()
	m.cancelMu.Lock()
	if m.closed {
		m.cancelMu.Unlock()
		cancel(nil)
		return m.Snapshot(), fmt.Errorf("%w: %w", domain.ErrRefreshCancelled, errManagerClosed)
	}
	m.refreshes.Add(1)
	m.cancelInflight = cancel
	m.cancelMu.Unlock()
	defer m.refreshes.Done()
	defer func() {
		m.cancelMu.Lock()
		m.cancelInflight = nil
		m.cancelMu.Unlock()
		cancel(nil)
	}()

	prev := m.begin()
	sources := m.sources.Descriptors()
	log.Info("Refresh started", slog.Int("sources", len(sources)))

	if len(sources) == 0 {
		err := fmt.Errorf("%w: no sources registered", domain.ErrAllSourcesFailed)
		return m.finishFailed(prev, domain.OutcomeFailed, err, nil, start), err
	}

	results, err := m.fetcher.FetchAll(ctx, sources, m.cfg.SourceTimeout.Duration)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", domain.ErrRefreshCancelled, context.Cause(ctx))
	}
	if err != nil {
		log.Warn("Refresh cancelled", slog.Any("error", err))
		return m.finishFailed(prev, domain.OutcomeCancelled, err, nil, start), err
	}

	sourceErrors := make(map[string]string)
	for _, res := range results {
		if res.Err != nil {
			sourceErrors[res.Source.Key()] = res.Err.Error()
		}
	}
	if len(sourceErrors) == len(results) {
		err := fmt.Errorf("%w: %d of %d sources failed", domain.ErrAllSourcesFailed, len(sourceErrors), len(results))
		log.Error("Refresh failed", slog.Any("error", err))
		return m.finishFailed(prev, domain.OutcomeFailed, err, sourceErrors, start), err
	}

	outcome := domain.OutcomeSuccess
	if len(sourceErrors) > 0 {
		outcome = domain.OutcomePartial
	}

	m.mu.Lock()
	now := m.now()
	current := m.Snapshot()
	b := m.process(current.Articles, results, now)
	next := domain.FeedState{
		Articles:     b.articles,
		LastUpdate:   current.LastUpdate,
		Phase:        domain.PhaseIdle,
		Outcome:      outcome,
		SourceErrors: nilIfEmpty(sourceErrors),
	}
	if outcome == domain.OutcomeSuccess {
		next.LastUpdate = now
	}
	state := m.publishLocked(next)
	m.mu.Unlock()

	metrics.Refreshes.WithLabelValues(string(outcome)).Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	log.Info("Refresh completed",
		slog.String("outcome", string(outcome)),
		slog.Int("count", len(b.articles)),
		slog.Int("accepted", b.accepted),
		slog.Int("rejected", b.rejected),
		slog.Int("changed", len(b.changed)),
		slog.Int("evicted", len(b.evicted)),
		slog.Int("breaking", len(b.breaking)),
		slog.Duration("duration", time.Since(start)),
	)

	m.enqueuePersist(b.changed)
	m.dispatch(b.breaking)
	return state, nil
}

// begin публикует снимок с признаком загрузки и возвращает предыдущий.
func (m *FeedManager) begin() domain.FeedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.Snapshot()
	loading := prev
	loading.IsLoading = true
	loading.Phase = domain.PhaseRefreshing
	m.publishLocked(loading)
	return prev
}

// finishFailed публикует снимок с прежним набором статей и ошибкой.
// Меняются только поля загрузки, ошибки и итога.
func (m *FeedManager) finishFailed(prev domain.FeedState, outcome domain.Outcome, err error, sourceErrors map[string]string, start time.Time) domain.FeedState {
	m.mu.Lock()
	current := m.Snapshot()
	next := current
	next.Articles = prev.Articles
	next.IsLoading = false
	next.Phase = domain.PhaseIdle
	next.Outcome = outcome
	next.LastError = err.Error()
	next.SourceErrors = nilIfEmpty(sourceErrors)
	state := m.publishLocked(next)
	m.mu.Unlock()
	metrics.Refreshes.WithLabelValues(string(outcome)).Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	return state
}

// publishLocked присваивает снимку следующую версию, публикует его атомарно
// и рассылает подписчикам. Вызывается под m.mu.
func (m *FeedManager) publishLocked(next domain.FeedState) domain.FeedState {
	next.Version = m.state.Load().Version + 1
	if next.Articles == nil {
		next.Articles = []domain.Article{}
	}
	m.state.Store(&next)
	metrics.HeldArticles.Set(float64(len(next.Articles)))

	m.subsMu.Lock()
	for _, ch := range m.subs {
		deliverLatest(ch, next)
	}
	m.subsMu.Unlock()
	return next
}

// Subscribe возвращает канал снимков, начиная с текущего, и функцию отписки.
// Медленный подписчик получает только последний снимок.
func (m *FeedManager) Subscribe() (<-chan domain.FeedState, func()) {
	ch := make(chan domain.FeedState, 1)
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.Snapshot()
	m.subsMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, id)
			m.subsMu.Unlock()
		})
	}
}

func deliverLatest(ch chan domain.FeedState, s domain.FeedState) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// MarkRead отмечает статьи прочитанными. Используется фильтром UnreadOnly.
func (m *FeedManager) MarkRead(ids ...string) {
	m.readMu.Lock()
	defer m.readMu.Unlock()
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			m.read[id] = struct{}{}
		}
	}
}

func (m *FeedManager) isRead(a domain.Article) bool {
	m.readMu.RLock()
	defer m.readMu.RUnlock()
	for _, alias := range a.Aliases {
		if _, ok := m.read[alias]; ok {
			return true
		}
	}
	return false
}

// enqueuePersist ставит изменившиеся статьи в очередь записи. Очередь хранит
// последнюю версию каждой статьи, поэтому обновление никогда не блокируется хранилищем.
func (m *FeedManager) enqueuePersist(articles []domain.Article) {
	if m.store == nil || len(articles) == 0 {
		return
	}
	m.pendingMu.Lock()
	for _, a := range articles {
		for _, alias := range a.Aliases {
			delete(m.pending, alias)
		}
		m.pending[a.ID] = a
	}
	m.pendingMu.Unlock()
	select {
	case m.persistSignal <- struct{}{}:
	default:
	}
}

func (m *FeedManager) persistLoop() {
	defer close(m.persistDone)
	for {
		select {
		case <-m.persistSignal:
			m.flush()
		case <-m.baseCtx.Done():
			m.flush()
			return
		}
	}
}

func (m *FeedManager) flush() {
	m.pendingMu.Lock()
	if len(m.pending) == 0 {
		m.pendingMu.Unlock()
		return
	}
	articles := make([]domain.Article, 0, len(m.pending))
	for _, a := range m.pending {
		articles = append(articles, a)
	}
	m.pending = make(map[string]domain.Article)
	m.pendingMu.Unlock()
	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout.Duration)
	defer cancel()
	if err := m.store.UpsertBatch(ctx, articles); err != nil {
		metrics.StoreOperations.WithLabelValues("upsert", "error").Inc()
		m.log.Error("Store upsert failed",
			slog.String("stage", "save"),
			slog.Int("count", len(articles)),
			slog.Any("error", fmt.Errorf("%w: %w", domain.ErrStorePersistenceFailed, err)),
		)
		return
	}
	metrics.StoreOperations.WithLabelValues("upsert", "ok").Inc()
	m.log.Debug("Articles persisted", slog.String("stage", "save"), slog.Int("count", len(articles)))
}

// dispatch передает срочные статьи диспетчеру в фоне. Ошибки только логируются.
func (m *FeedManager) dispatch(articles []domain.Article) {
	if m.dispatcher == nil || len(articles) == 0 {
		return
	}
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		for _, a := range articles {
			if err := m.dispatcher.PublishBreaking(m.baseCtx, a); err != nil {
				m.log.Warn("Breaking notification failed",
					slog.String("stage", "notify"),
					slog.String("id", a.ID),
					slog.Any("error", err),
				)
				continue
			}
			metrics.BreakingEmitted.Inc()
		}
	}()
}

// Close отменяет идущее обновление и дожидается его завершения, затем
// останавливает фоновые задачи, дописывает очередь хранилища и закрывает его.
func (m *FeedManager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.cancelMu.Lock()
		m.closed = true
		if m.cancelInflight != nil {
			m.cancelInflight(errManagerClosed)
		}
		m.cancelMu.Unlock()
		m.refreshes.Wait()
		m.baseCancel()
		<-m.persistDone
		m.background.Wait()
		if m.store != nil {
			err = m.store.Close()
		}
	})
	return err
}

func nilIfEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
