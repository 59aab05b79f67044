package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"wrestlenews/internal/domain"
)

// FeedParser разбирает RSS, Atom и JSON Feed в сырые записи источника.
type FeedParser struct {
	log *slog.Logger
}

func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{
		log: log.With(slog.String("component", "feed-parser")),
	}
}

// Parse читает ленту целиком. Документ, который не удалось разобрать, считается
// неустранимой ошибкой источника: повтор загрузки его не исправит.
func (p *FeedParser) Parse(ctx context.Context, r io.Reader) ([]domain.RawPayload, error) {
	const op = "parser.FeedParser.Parse"
	log := p.log.With(slog.String("op", op))

	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		log.Error("Failed to parse feed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrMalformedSource, err)
	}

	payloads := make([]domain.RawPayload, 0, len(feed.Items))
	for _, item := range feed.Items {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		payloads = append(payloads, feedItemPayload(item))
	}
	log.Debug("Feed parsed",
		slog.String("title", feed.Title),
		slog.Int("items", len(payloads)),
	)
	return payloads, nil
}

func feedItemPayload(item *gofeed.Item) domain.RawPayload {
	raw := domain.RawPayload{
		GUID:       item.GUID,
		URL:        item.Link,
		Title:      item.Title,
		Summary:    item.Description,
		Categories: item.Categories,
	}
	if raw.Summary == "" {
		raw.Summary = item.Content
	}
	switch {
	case item.Author != nil:
		raw.Author = item.Author.Name
	case len(item.Authors) > 0 && item.Authors[0] != nil:
		raw.Author = item.Authors[0].Name
	}
	if item.Image != nil {
		raw.ImageURL = item.Image.URL
	}
	if raw.ImageURL == "" {
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				raw.ImageURL = enc.URL
				break
			}
		}
	}
	switch {
	case item.PublishedParsed != nil:
		raw.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		raw.PublishedAt = item.UpdatedParsed.UTC()
	case item.Published != "":
		raw.PublishedRaw = item.Published
	default:
		raw.PublishedRaw = item.Updated
	}
	return raw
}
