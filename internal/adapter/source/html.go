package source

import (
	"context"
	"fmt"
	"log/slog"

	"wrestlenews/internal/adapter/parser"
	"wrestlenews/internal/domain"
)

// HTMLSource загружает новостную страницу и извлекает записи по селекторам
// из дескриптора источника.
type HTMLSource struct {
	docs   DocumentFetcher
	parser *parser.HTMLParser
	log    *slog.Logger
}

func NewHTMLSource(docs DocumentFetcher, log *slog.Logger) *HTMLSource {
	return &HTMLSource{
		docs:   docs,
		parser: parser.NewHTMLParser(log),
		log:    log.With(slog.String("component", "html-source")),
	}
}

func (s *HTMLSource) Fetch(ctx context.Context, d domain.SourceDescriptor) ([]domain.RawPayload, error) {
	const op = "source.HTMLSource.Fetch"
	if d.Selectors == nil {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrMalformedSource, parser.ErrNoSelectors)
	}
	pageURL := d.FeedURL
	if pageURL == "" {
		pageURL = d.Source.URL
	}
	body, err := s.docs.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer body.Close()

	payloads, err := s.parser.Parse(ctx, body, pageURL, d.Selectors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("Page loaded",
		slog.String("op", op),
		slog.String("source", d.Key()),
		slog.Int("count", len(payloads)),
	)
	return payloads, nil
}
