package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"wrestlenews/internal/domain"
	"wrestlenews/internal/usecase"
)

// DocumentFetcher загружает документ источника по URL.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Registry выбирает загрузчик по виду источника (rss, html).
type Registry struct {
	mu       sync.RWMutex
	fetchers map[domain.SourceKind]usecase.SourceFetcher
	log      *slog.Logger
}

var _ usecase.SourceFetcher = (*Registry)(nil)

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		fetchers: make(map[domain.SourceKind]usecase.SourceFetcher),
		log:      log.With(slog.String("component", "source-registry")),
	}
}

// NewDefaultRegistry регистрирует стандартные загрузчики RSS и HTML поверх одного
// HTTP-клиента.
func NewDefaultRegistry(docs DocumentFetcher, log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(domain.KindRSS, NewRSSSource(docs, log))
	r.Register(domain.KindHTML, NewHTMLSource(docs, log))
	return r
}

func (r *Registry) Register(kind domain.SourceKind, f usecase.SourceFetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[kind] = f
}

// Resolve возвращает загрузчик для вида источника. Пустой вид означает rss.
func (r *Registry) Resolve(kind domain.SourceKind) (usecase.SourceFetcher, error) {
	if kind == "" {
		kind = domain.KindRSS
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported source kind %q", domain.ErrMalformedSource, kind)
	}
	return f, nil
}

func (r *Registry) Fetch(ctx context.Context, d domain.SourceDescriptor) ([]domain.RawPayload, error) {
	const op = "source.Registry.Fetch"
	f, err := r.Resolve(d.Kind)
	if err != nil {
		r.log.Error("No fetcher for source",
			slog.String("op", op),
			slog.String("source", d.Key()),
			slog.Any("error", err),
		)
		return nil, err
	}
	return f.Fetch(ctx, d)
}
