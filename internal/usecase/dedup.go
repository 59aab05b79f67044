package usecase

import (
	"sort"
	"time"

	"wrestlenews/internal/domain"
)

// Merge объединяет два представления одного материала.
// Операция коммутативна, ассоциативна и идемпотентна: каждое поле выбирается
// по фиксированному правилу, не зависящему от порядка аргументов.
func Merge(a, b domain.Article) domain.Article {
	aliases := uniqueSorted(append(append([]string{}, a.Aliases...), b.Aliases...))
	out := domain.Article{
		Aliases:      aliases,
		Fingerprints: uniqueSorted(append(append([]string{}, a.Fingerprints...), b.Fingerprints...)),
		Title:        preferText(a.Title, b.Title),
		Summary:      preferText(a.Summary, b.Summary),
		URL:          preferText(a.URL, b.URL),
		Source:       preferSource(a.Source, b.Source),
		Sightings:    mergeSightings(a.Sightings, b.Sightings),
		Category:     preferCategory(a.Category, b.Category),
		Promotions:   mergePromotions(a.Promotions, b.Promotions),
		Author:       preferText(a.Author, b.Author),
		ImageURL:     preferText(a.ImageURL, b.ImageURL),
		Tags:         uniqueSorted(append(append([]string{}, a.Tags...), b.Tags...)),
		IsBreaking:   a.IsBreaking || b.IsBreaking,
		IsVerified:   a.IsVerified || b.IsVerified,
		PublishedAt:  earliest(a.PublishedAt, b.PublishedAt),
		IngestedAt:   earliest(a.IngestedAt, b.IngestedAt),
	}
	if len(aliases) > 0 {
		out.ID = aliases[0]
	}
	return out
}

// Deduplicate схлопывает статьи с общими ключами в кластеры.
// Результат не зависит от порядка входных статей.
func Deduplicate(articles []domain.Article) []domain.Article {
	ix := newIndex(len(articles))
	for _, a := range articles {
		ix.add(a)
	}
	return ix.articles()
}

// index сопоставляет ключи дедупликации (алиасы и отпечатки) кластерам.
type index struct {
	slots []domain.Article
	alive []bool
	byKey map[string]int
}

func newIndex(capacity int) *index {
	return &index{
		slots: make([]domain.Article, 0, capacity),
		alive: make([]bool, 0, capacity),
		byKey: make(map[string]int, capacity*2),
	}
}

// add вливает статью в индекс. Если статья связывает несколько кластеров,
// они объединяются в один.
func (ix *index) add(a domain.Article) {
	var hits []int
	for _, k := range a.Keys() {
		slot, ok := ix.byKey[k]
		if !ok || containsInt(hits, slot) {
			continue
		}
		hits = append(hits, slot)
	}
	if len(hits) == 0 {
		ix.slots = append(ix.slots, a)
		ix.alive = append(ix.alive, true)
		ix.register(a, len(ix.slots)-1)
		return
	}
	sort.Ints(hits)
	target := hits[0]
	merged := Merge(ix.slots[target], a)
	for _, slot := range hits[1:] {
		merged = Merge(merged, ix.slots[slot])
		ix.slots[slot] = domain.Article{}
		ix.alive[slot] = false
	}
	ix.slots[target] = merged
	ix.register(merged, target)
}

func (ix *index) register(a domain.Article, slot int) {
	for _, k := range a.Keys() {
		ix.byKey[k] = slot
	}
}

func (ix *index) articles() []domain.Article {
	out := make([]domain.Article, 0, len(ix.slots))
	for i, a := range ix.slots {
		if ix.alive[i] {
			out = append(out, a)
		}
	}
	return out
}

// preferText выбирает самое полное непустое значение; при равной длине
// побеждает лексикографически меньшее.
func preferText(a, b string) string {
	switch {
	case len(a) > len(b):
		return a
	case len(b) > len(a):
		return b
	case a < b:
		return a
	}
	return b
}

// preferSource выбирает первичный источник: наивысший уровень, затем меньший ключ.
func preferSource(a, b domain.NewsSource) domain.NewsSource {
	if a.Tier.Rank() != b.Tier.Rank() {
		if a.Tier.Rank() > b.Tier.Rank() {
			return a
		}
		return b
	}
	ka, kb := a.Key(), b.Key()
	if ka != kb {
		if ka < kb {
			return a
		}
		return b
	}
	if a.Name <= b.Name {
		return a
	}
	return b
}

func preferCategory(a, b domain.Category) domain.Category {
	if a.Precedence() != b.Precedence() {
		if a.Precedence() > b.Precedence() {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

// mergeSightings оставляет одно наблюдение на источник: самое раннее,
// при равном времени - с более высоким уровнем.
func mergeSightings(a, b []domain.Sighting) []domain.Sighting {
	bySource := make(map[string]domain.Sighting, len(a)+len(b))
	for _, s := range append(append([]domain.Sighting{}, a...), b...) {
		cur, ok := bySource[s.SourceKey]
		if !ok || s.PublishedAt.Before(cur.PublishedAt) ||
			(s.PublishedAt.Equal(cur.PublishedAt) && s.Tier.Rank() > cur.Tier.Rank()) {
			bySource[s.SourceKey] = s
		}
	}
	out := make([]domain.Sighting, 0, len(bySource))
	for _, s := range bySource {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceKey < out[j].SourceKey })
	return out
}

func mergePromotions(a, b []domain.Promotion) []domain.Promotion {
	set := make(map[domain.Promotion]struct{}, len(a)+len(b))
	for _, p := range a {
		set[p] = struct{}{}
	}
	for _, p := range b {
		set[p] = struct{}{}
	}
	return promotionSet(set)
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func containsInt(in []int, v int) bool {
	for _, x := range in {
		if x == v {
			return true
		}
	}
	return false
}
