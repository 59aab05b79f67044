package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"wrestlenews/internal/domain"
)

const (
	idLength         = 16
	fingerprintRunes = 64
)

// Normalizer преобразует сырые материалы источников в канонические статьи.
type Normalizer struct {
	promotions PromotionResolver
	now        func() time.Time
}

// NewNormalizer создает нормализатор. now задает время загрузки статей;
// nil означает time.Now.
func NewNormalizer(promotions PromotionResolver, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{promotions: promotions, now: now}
}

// Normalize проверяет обязательные поля и строит каноническую статью.
// Отсутствие заголовка, даты публикации или промоушена дает domain.ErrMalformedPayload.
func (n *Normalizer) Normalize(raw domain.RawPayload, src domain.SourceDescriptor) (domain.Article, error) {
	title := flattenHTML(raw.Title)
	if title == "" {
		return domain.Article{}, fmt.Errorf("%w: missing title", domain.ErrMalformedPayload)
	}
	published, err := publishTime(raw)
	if err != nil {
		return domain.Article{}, err
	}
	summary := flattenHTML(raw.Summary)

	promotions := n.promotionsFor(raw, src, title, summary)
	if len(promotions) == 0 {
		return domain.Article{}, fmt.Errorf("%w: no promotion derivable for %q", domain.ErrMalformedPayload, title)
	}

	sourceKey := src.Key()
	link := normalizeURL(raw.URL)
	fp := Fingerprint(title, summary, published)
	id := ArticleID(sourceKey, strings.TrimSpace(raw.GUID), link, fp)

	return domain.Article{
		ID:           id,
		Aliases:      []string{id},
		Fingerprints: []string{fp},
		Title:        title,
		Summary:      summary,
		URL:          link,
		Source:       src.Source,
		Sightings: []domain.Sighting{{
			SourceKey:   sourceKey,
			Tier:        src.Source.Tier,
			PublishedAt: published,
		}},
		Category:    categorize(raw, title, src.DefaultCategory),
		Promotions:  promotions,
		Author:      strings.TrimSpace(raw.Author),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		Tags:        uniqueSorted(trimAll(raw.Tags)),
		PublishedAt: published,
		IngestedAt:  n.now().UTC(),
	}, nil
}

func (n *Normalizer) promotionsFor(raw domain.RawPayload, src domain.SourceDescriptor, title, summary string) []domain.Promotion {
	set := make(map[domain.Promotion]struct{})
	for _, name := range raw.Promotions {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if tag, ok := n.promotions.Canonical(name); ok {
			set[tag] = struct{}{}
		} else {
			set[domain.PromotionOther] = struct{}{}
		}
	}
	for _, name := range src.DefaultPromotions {
		if tag, ok := n.promotions.Canonical(name); ok {
			set[tag] = struct{}{}
		} else if strings.TrimSpace(name) != "" {
			set[domain.PromotionOther] = struct{}{}
		}
	}
	text := strings.Join(append([]string{title, summary}, append(raw.Categories, raw.Tags...)...), " ")
	for _, tag := range n.promotions.Detect(text) {
		set[tag] = struct{}{}
	}
	return promotionSet(set)
}

// promotionSet упорядочивает теги и убирает Other, если есть настоящий промоушен.
func promotionSet(set map[domain.Promotion]struct{}) []domain.Promotion {
	if len(set) > 1 {
		delete(set, domain.PromotionOther)
	}
	out := make([]domain.Promotion, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func publishTime(raw domain.RawPayload) (time.Time, error) {
	if !raw.PublishedAt.IsZero() {
		return raw.PublishedAt.UTC(), nil
	}
	s := strings.TrimSpace(raw.PublishedRaw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing publish time", domain.ErrMalformedPayload)
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unparseable publish time %q", domain.ErrMalformedPayload, s)
	}
	return t.UTC(), nil
}

var categoryKeywords = []struct {
	stem     string
	category domain.Category
}{
	{"result", domain.CategoryResults},
	{"recap", domain.CategoryResults},
	{"defeat", domain.CategoryResults},
	{"retain", domain.CategoryResults},
	{"injur", domain.CategoryInjuries},
	{"surgery", domain.CategoryInjuries},
	{"signs", domain.CategorySignings},
	{"signed", domain.CategorySignings},
	{"signing", domain.CategorySignings},
	{"contract", domain.CategorySignings},
	{"rumor", domain.CategoryRumors},
	{"rumour", domain.CategoryRumors},
	{"reportedly", domain.CategoryRumors},
	{"speculat", domain.CategoryRumors},
	{"ppv", domain.CategoryEvents},
	{"event", domain.CategoryEvents},
	{"tickets", domain.CategoryEvents},
	{"ratings", domain.CategoryBusiness},
	{"viewership", domain.CategoryBusiness},
	{"revenue", domain.CategoryBusiness},
	{"earnings", domain.CategoryBusiness},
	{"business", domain.CategoryBusiness},
}

// categorize выбирает категорию: сначала из категорий источника, затем по ключевым
// словам заголовка, затем подсказка дескриптора, иначе general.
func categorize(raw domain.RawPayload, title string, hint domain.Category) domain.Category {
	if c, ok := matchCategory(raw.Categories); ok {
		return c
	}
	if c, ok := matchCategory(strings.Fields(title)); ok {
		return c
	}
	if hint != "" {
		return hint
	}
	return domain.CategoryGeneral
}

func matchCategory(words []string) (domain.Category, bool) {
	best := domain.Category("")
	for _, w := range words {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if w == "" {
			continue
		}
		if c, ok := domain.ParseCategory(w); ok && c.Precedence() > best.Precedence() {
			best = c
			continue
		}
		for _, k := range categoryKeywords {
			if strings.HasPrefix(w, k.stem) && k.category.Precedence() > best.Precedence() {
				best = k.category
			}
		}
	}
	return best, best != ""
}

// Fingerprint вычисляет отпечаток содержимого для поиска перепубликаций.
func Fingerprint(title, body string, published time.Time) string {
	normBody := []rune(normalizeText(body))
	if len(normBody) > fingerprintRunes {
		normBody = normBody[:fingerprintRunes]
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		normalizeText(title),
		string(normBody),
		published.UTC().Truncate(time.Hour).Format(time.RFC3339),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// ArticleID строит стабильный идентификатор из источника и GUID или URL материала.
// Без обоих используется отпечаток содержимого.
func ArticleID(sourceKey, guid, link, fingerprint string) string {
	var parts []string
	switch {
	case guid != "":
		parts = []string{sourceKey, guid}
	case link != "":
		parts = []string{sourceKey, link}
	default:
		parts = []string{sourceKey, "fp", fingerprint}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:idLength]
}

// flattenHTML превращает HTML-фрагмент в текст с одиночными пробелами.
func flattenHTML(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func normalizeText(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String()
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
