package domain

import (
	"slices"
	"time"
)

// Category классифицирует тематику материала.
type Category string

const (
	CategoryResults  Category = "results"
	CategoryInjuries Category = "injuries"
	CategorySignings Category = "signings"
	CategoryRumors   Category = "rumors"
	CategoryEvents   Category = "events"
	CategoryBusiness Category = "business"
	CategoryGeneral  Category = "general"
)

var categoryPrecedence = map[Category]int{
	CategoryResults:  7,
	CategoryInjuries: 6,
	CategorySignings: 5,
	CategoryRumors:   4,
	CategoryEvents:   3,
	CategoryBusiness: 2,
	CategoryGeneral:  1,
}

// ParseCategory возвращает категорию по имени; неизвестные имена дают false.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	_, ok := categoryPrecedence[c]
	return c, ok
}

// Precedence задает порядок выбора категории при слиянии дубликатов.
func (c Category) Precedence() int {
	return categoryPrecedence[c]
}

// Editorial сообщает, относится ли категория к редакционным новостям,
// которые не участвуют в breaking-уведомлениях.
func (c Category) Editorial() bool {
	return c == CategoryBusiness || c == CategoryGeneral
}

// Promotion - тег промоушена (WWE, AEW, NJPW и т.д.). Набор открытый.
type Promotion string

// PromotionOther используется, когда промоушен указан, но не распознан.
const PromotionOther Promotion = "Other"

// Sighting фиксирует появление материала в конкретном источнике.
type Sighting struct {
	SourceKey   string    `json:"source_key"`
	Tier        Tier      `json:"tier"`
	PublishedAt time.Time `json:"published_at"`
}

// Article - каноническая запись новости после нормализации.
type Article struct {
	ID           string      `json:"id"`
	Aliases      []string    `json:"aliases"`
	Fingerprints []string    `json:"fingerprints"`
	Title        string      `json:"title"`
	Summary      string      `json:"summary"`
	URL          string      `json:"url"`
	Source       NewsSource  `json:"source"`
	Sightings    []Sighting  `json:"sightings"`
	Category     Category    `json:"category"`
	Promotions   []Promotion `json:"promotions"`
	Author       string      `json:"author,omitempty"`
	ImageURL     string      `json:"image_url,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	IsBreaking   bool        `json:"is_breaking"`
	IsVerified   bool        `json:"is_verified"`
	PublishedAt  time.Time   `json:"published_at"`
	IngestedAt   time.Time   `json:"ingested_at"`
}

// Corroboration возвращает число различных источников, подтвердивших материал.
func (a Article) Corroboration() int {
	return len(a.Sightings)
}

// BreakingActive сообщает, действует ли еще окно срочности на момент now.
func (a Article) BreakingActive(now time.Time, window time.Duration) bool {
	return a.IsBreaking && now.Sub(a.PublishedAt) <= window
}

// HasPromotion проверяет наличие тега промоушена.
func (a Article) HasPromotion(p Promotion) bool {
	return slices.Contains(a.Promotions, p)
}

// Keys возвращает все ключи дедупликации: алиасы и отпечатки.
func (a Article) Keys() []string {
	keys := make([]string, 0, len(a.Aliases)+len(a.Fingerprints))
	keys = append(keys, a.Aliases...)
	for _, fp := range a.Fingerprints {
		keys = append(keys, "fp:"+fp)
	}
	return keys
}

// Less задает порядок ленты: дата публикации по убыванию,
// затем дата загрузки по убыванию, затем идентификатор.
func Less(a, b Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	if !a.IngestedAt.Equal(b.IngestedAt) {
		return a.IngestedAt.After(b.IngestedAt)
	}
	return a.ID < b.ID
}

// Compare - вариант Less для slices.SortFunc.
func Compare(a, b Article) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}

// RawPayload - необработанный элемент, полученный от источника.
type RawPayload struct {
	GUID         string
	URL          string
	Title        string
	Summary      string
	Author       string
	ImageURL     string
	PublishedAt  time.Time
	PublishedRaw string
	Categories   []string
	Tags         []string
	Promotions   []string
}
