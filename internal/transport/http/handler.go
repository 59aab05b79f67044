package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

type feedService interface {
	Snapshot() domain.FeedState
	Filter(c domain.FilterCriteria) []domain.Article
	Refresh(ctx context.Context) (domain.FeedState, error)
	RequestRefresh()
	CancelRefresh() bool
	MarkRead(ids ...string)
	Subscribe() (<-chan domain.FeedState, func())
}

type sourceRegistry interface {
	Descriptors() []domain.SourceDescriptor
	Register(d domain.SourceDescriptor) error
	Remove(identity string) error
	UpdateTier(identity string, tier domain.Tier) error
	Lookup(identity string) (domain.SourceDescriptor, bool)
}

type promotionResolver interface {
	Canonical(raw string) (domain.Promotion, bool)
}

type Handler struct {
	log          *slog.Logger
	feed         feedService
	sources      sourceRegistry
	promotions   promotionResolver
	defaultLimit int

	streamsDone chan struct{}
	closeOnce   sync.Once
}

func NewHandler(log *slog.Logger, feed feedService, sources sourceRegistry, promotions promotionResolver, defaultLimit int) *Handler {
	return &Handler{
		log:          log.With(slog.String("component", "http")),
		feed:         feed,
		sources:      sources,
		promotions:   promotions,
		defaultLimit: defaultLimit,
		streamsDone:  make(chan struct{}),
	}
}

// CloseStreams завершает все открытые SSE-потоки и запрещает новые.
// Вызывается при остановке сервера: Shutdown не отменяет контексты запросов.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streamsDone) })
}

// sourceView - представление источника в API.
type sourceView struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Tier       string   `json:"tier"`
	Kind       string   `json:"kind"`
	FeedURL    string   `json:"feed_url,omitempty"`
	Promotions []string `json:"promotions,omitempty"`
	Category   string   `json:"category,omitempty"`
}

func newSourceView(d domain.SourceDescriptor) sourceView {
	kind := d.Kind
	if kind == "" {
		kind = domain.KindRSS
	}
	return sourceView{
		Key:        d.Key(),
		Name:       d.Source.Name,
		URL:        d.Source.URL,
		Tier:       string(d.Source.Tier),
		Kind:       string(kind),
		FeedURL:    d.FeedURL,
		Promotions: d.DefaultPromotions,
		Category:   string(d.DefaultCategory),
	}
}

// getNews - хендлер для эндпоинта GET /api/news
func (h *Handler) getNews(c *gin.Context) {
	const op = "transport.http/getNews"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(c)),
	)
	criteria, err := h.parseCriteria(c)
	if err != nil {
		log.Warn("Invalid news query", slog.Any("error", err))
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.feed.Filter(criteria))
}

func (h *Handler) parseCriteria(c *gin.Context) (domain.FilterCriteria, error) {
	criteria := domain.FilterCriteria{
		Sources:      queryList(c, "source"),
		UnreadOnly:   queryBool(c, "unread"),
		VerifiedOnly: queryBool(c, "verified"),
		BreakingOnly: queryBool(c, "breaking"),
		Limit:        h.defaultLimit,
	}
	for _, raw := range queryList(c, "category") {
		cat, ok := domain.ParseCategory(strings.ToLower(raw))
		if !ok {
			return criteria, errors.New("invalid 'category' parameter: " + raw)
		}
		criteria.Categories = append(criteria.Categories, cat)
	}
	for _, raw := range queryList(c, "promotion") {
		p, ok := h.promotions.Canonical(raw)
		if !ok {
			p = domain.Promotion(raw)
		}
		criteria.Promotions = append(criteria.Promotions, p)
	}
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return criteria, errors.New("invalid 'since' parameter, expected RFC3339")
		}
		criteria.Since = since
	}
	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return criteria, errors.New("invalid 'limit' parameter")
		}
		criteria.Limit = limit
	}
	return criteria, nil
}

// queryList принимает как повторяющиеся параметры, так и значения через запятую.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// getFeed - GET /api/feed, текущий снимок состояния ленты.
func (h *Handler) getFeed(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.Snapshot())
}

// refresh - POST /api/refresh. С ?wait=true ожидает завершения обновления,
// иначе только ставит его в очередь.
func (h *Handler) refresh(c *gin.Context) {
	const op = "transport.http/refresh"
	if !queryBool(c, "wait") {
		h.feed.RequestRefresh()
		c.JSON(http.StatusAccepted, gin.H{"status": "refresh requested"})
		return
	}
	state, err := h.feed.Refresh(c.Request.Context())
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, domain.ErrRefreshCancelled) {
			code = http.StatusConflict
		}
		h.log.Warn("Refresh finished with error",
			slog.String("op", op),
			slog.String("request_id", getRequestID(c)),
			slog.Any("error", err),
		)
		c.JSON(code, gin.H{"error": err.Error(), "state": state})
		return
	}
	c.JSON(http.StatusOK, state)
}

// cancelRefresh - POST /api/refresh/cancel
func (h *Handler) cancelRefresh(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.feed.CancelRefresh()})
}

type markReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// markRead - POST /api/news/read
func (h *Handler) markRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Request body must contain non-empty 'ids'")
		return
	}
	h.feed.MarkRead(req.IDs...)
	c.Status(http.StatusNoContent)
}

// stream - GET /api/stream, server-sent events со снимками ленты.
// Первое событие содержит текущий снимок; медленный клиент получает только последний.
func (h *Handler) stream(c *gin.Context) {
	updates, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()
	h.log.Debug("Stream client connected", slog.String("request_id", getRequestID(c)))
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("feed", state)
			return true
		case <-ctx.Done():
			return false
		case <-h.streamsDone:
			return false
		}
	})
}

// listSources - GET /api/sources
func (h *Handler) listSources(c *gin.Context) {
	descriptors := h.sources.Descriptors()
	out := make([]sourceView, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, newSourceView(d))
	}
	c.JSON(http.StatusOK, out)
}

// addSource - POST /api/sources, тело в формате записи sources конфигурации.
func (h *Handler) addSource(c *gin.Context) {
	var req config.SourceConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid source body")
		return
	}
	d, err := req.Descriptor()
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sources.Register(d); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSourceView(d))
}

// removeSource - DELETE /api/sources?source=<url>
func (h *Handler) removeSource(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		respondWithError(c, http.StatusBadRequest, "Missing 'source' parameter")
		return
	}
	if err := h.sources.Remove(source); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateTierRequest struct {
	Source string `json:"source" binding:"required"`
	Tier   string `json:"tier" binding:"required"`
}

// updateTier - PUT /api/sources/tier. Новый уровень учитывается при следующем обновлении.
func (h *Handler) updateTier(c *gin.Context) {
	var req updateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Request body must contain 'source' and 'tier'")
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sources.UpdateTier(req.Source, tier); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	d, _ := h.sources.Lookup(req.Source)
	c.JSON(http.StatusOK, newSourceView(d))
}

func (h *Handler) respondRegistryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownSource):
		respondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSourceExists):
		respondWithError(c, http.StatusConflict, err.Error())
	default:
		respondWithError(c, http.StatusBadRequest, err.Error())
	}
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(c *gin.Context) {
	s := h.feed.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"phase":       s.Phase,
		"articles":    len(s.Articles),
		"version":     s.Version,
		"last_update": s.LastUpdate,
	})
}

func respondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
