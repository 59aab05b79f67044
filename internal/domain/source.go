package domain

import (
	"fmt"
	"strings"
)

// Tier определяет уровень доверия к источнику новостей.
type Tier string

const (
	TierOne         Tier = "tier1"
	TierTwo         Tier = "tier2"
	TierSpeculation Tier = "speculation"
)

// ParseTier разбирает строковое представление уровня доверия.
// Регистр и окружающие пробелы не учитываются.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierOne:
		return TierOne, nil
	case TierTwo:
		return TierTwo, nil
	case TierSpeculation:
		return TierSpeculation, nil
	}
	return "", fmt.Errorf("unknown reliability tier %q", s)
}

// Rank возвращает вес уровня: чем выше, тем надежнее источник.
func (t Tier) Rank() int {
	switch t {
	case TierOne:
		return 3
	case TierTwo:
		return 2
	case TierSpeculation:
		return 1
	}
	return 0
}

// NewsSource представляет издателя новостей: имя, канонический URL и уровень доверия.
type NewsSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Tier Tier   `json:"tier"`
}

// Key возвращает нормализованный идентификатор источника.
func (s NewsSource) Key() string {
	return SourceKey(s.URL)
}

// SourceKind определяет способ получения материалов источника.
type SourceKind string

const (
	KindRSS  SourceKind = "rss"
	KindHTML SourceKind = "html"
)

// HTMLSelectors описывает CSS-селекторы для разбора страниц без RSS-ленты.
type HTMLSelectors struct {
	Item    string `json:"item" yaml:"item"`
	Title   string `json:"title" yaml:"title"`
	Link    string `json:"link" yaml:"link"`
	Summary string `json:"summary" yaml:"summary"`
	Date    string `json:"date" yaml:"date"`
	Author  string `json:"author" yaml:"author"`
	Image   string `json:"image" yaml:"image"`
}

// SourceDescriptor объединяет идентичность источника и параметры его загрузки.
type SourceDescriptor struct {
	Source            NewsSource
	Kind              SourceKind
	FeedURL           string
	DefaultPromotions []string
	DefaultCategory   Category
	Selectors         *HTMLSelectors
}

// Key возвращает ключ источника дескриптора.
func (d SourceDescriptor) Key() string {
	return d.Source.Key()
}

// SourceKey нормализует URL источника: схема и хост в нижнем регистре,
// без query, fragment и завершающего слеша.
func SourceKey(rawURL string) string {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	return strings.TrimRight(s, "/")
}
