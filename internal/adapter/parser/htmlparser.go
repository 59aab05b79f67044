package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wrestlenews/internal/domain"
)

// ErrNoSelectors возвращается, если у HTML-источника не задан селектор элементов.
var ErrNoSelectors = errors.New("html source has no item selector")

// HTMLParser извлекает новости со страницы по CSS-селекторам источника.
type HTMLParser struct {
	log *slog.Logger
}

func NewHTMLParser(log *slog.Logger) *HTMLParser {
	return &HTMLParser{
		log: log.With(slog.String("component", "html-parser")),
	}
}

// Parse разбирает страницу. Относительные ссылки и адреса изображений
// разрешаются относительно base. Элементы без заголовка пропускаются.
func (p *HTMLParser) Parse(ctx context.Context, r io.Reader, base string, sel *domain.HTMLSelectors) ([]domain.RawPayload, error) {
	const op = "parser.HTMLParser.Parse"
	log := p.log.With(slog.String("op", op), slog.String("base", base))

	if sel == nil || strings.TrimSpace(sel.Item) == "" {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrMalformedSource, ErrNoSelectors)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: invalid base url: %v", op, domain.ErrMalformedSource, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		log.Error("Failed to parse HTML document", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrMalformedSource, err)
	}

	var payloads []domain.RawPayload
	doc.Find(sel.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		raw := domain.RawPayload{
			Title:   text(s, sel.Title),
			Summary: text(s, sel.Summary),
			Author:  text(s, sel.Author),
		}
		if raw.Title == "" {
			return true
		}
		raw.URL = resolve(baseURL, attr(s, sel.Link, "href"))
		raw.GUID = raw.URL
		raw.ImageURL = resolve(baseURL, attr(s, sel.Image, "src"))
		raw.PublishedRaw = dateValue(s, sel.Date)
		payloads = append(payloads, raw)
		return true
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Debug("HTML page parsed", slog.Int("items", len(payloads)))
	return payloads, nil
}

// find возвращает первый элемент по селектору; пустой селектор означает сам элемент.
func find(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s
	}
	return s.Find(selector).First()
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(find(s, selector).Text())
}

func attr(s *goquery.Selection, selector, name string) string {
	target := find(s, selector)
	if v, ok := target.Attr(name); ok {
		return strings.TrimSpace(v)
	}
	if selector == "" && name == "href" {
		if v, ok := s.Find("a[href]").First().Attr("href"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// dateValue предпочитает машиночитаемый атрибут datetime тексту элемента.
func dateValue(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	target := find(s, selector)
	if v, ok := target.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(target.Text())
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
