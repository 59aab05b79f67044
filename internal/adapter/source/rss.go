package source

import (
	"context"
	"fmt"
	"log/slog"

	"wrestlenews/internal/adapter/parser"
	"wrestlenews/internal/domain"
)

// RSSSource загружает RSS/Atom-ленту источника.
type RSSSource struct {
	docs   DocumentFetcher
	parser *parser.FeedParser
	log    *slog.Logger
}

func NewRSSSource(docs DocumentFetcher, log *slog.Logger) *RSSSource {
	return &RSSSource{
		docs:   docs,
		parser: parser.NewFeedParser(log),
		log:    log.With(slog.String("component", "rss-source")),
	}
}

func (s *RSSSource) Fetch(ctx context.Context, d domain.SourceDescriptor) ([]domain.RawPayload, error) {
	const op = "source.RSSSource.Fetch"
	feedURL := d.FeedURL
	if feedURL == "" {
		feedURL = d.Source.URL
	}
	body, err := s.docs.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer body.Close()

	payloads, err := s.parser.Parse(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("Feed loaded",
		slog.String("op", op),
		slog.String("source", d.Key()),
		slog.Int("count", len(payloads)),
	)
	return payloads, nil
}
