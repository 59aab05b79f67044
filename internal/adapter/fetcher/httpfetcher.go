package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"wrestlenews/internal/domain"
)

// HTTPFetcher загружает документы источников (RSS-ленты и HTML-страницы) по HTTP.
// Ошибки классифицируются: сетевые сбои, 5xx, 408 и 429 считаются временными
// (domain.ErrSourceUnavailable), некорректный URL и прочие 4xx - неустранимыми
// (domain.ErrMalformedSource).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// NewHTTPFetcher создает новый экземпляр HTTPFetcher.
// Таймауты задаются контекстом запроса, поэтому клиент их не ограничивает.
func NewHTTPFetcher(log *slog.Logger, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    http.DefaultClient,
		userAgent: userAgent,
		log:       log.With(slog.String("component", "http-fetcher")),
	}
}

// Fetch выполняет GET-запрос и возвращает тело ответа, которое должно быть закрыто
// после использования.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	log := f.log.With(slog.String("url", rawURL))
	log.Debug("Fetching URL")
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		log.Error("Invalid source URL", slog.Any("error", err))
		return nil, fmt.Errorf("%w: invalid url %s", domain.ErrMalformedSource, rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to create request for url %s: %v", domain.ErrMalformedSource, rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("HTTP request failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to fetch url %s: %w", domain.ErrSourceUnavailable, rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Warn("Unexpected status code", slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: unexpected status code: %d for url %s", classifyStatus(resp.StatusCode), resp.StatusCode, rawURL)
	}
	log.Debug("Successfully fetched URL")
	return resp.Body, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return domain.ErrSourceUnavailable
	case code >= 400:
		return domain.ErrMalformedSource
	}
	return domain.ErrSourceUnavailable
}
