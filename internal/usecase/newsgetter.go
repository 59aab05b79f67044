package usecase

import (
	"slices"
	"time"

	"wrestlenews/internal/domain"
)

// Filter возвращает проекцию текущего снимка по критериям. Не меняет состояние
// и не вызывает переходов менеджера.
func (m *FeedManager) Filter(c domain.FilterCriteria) []domain.Article {
	return FilterArticles(m.Snapshot().Articles, c, m.isRead, m.classifier.Actionable, m.now())
}

// FilterArticles - чистая функция фильтрации. isRead и active могут быть nil.
// Порядок входного среза сохраняется.
func FilterArticles(
	articles []domain.Article,
	c domain.FilterCriteria,
	isRead func(domain.Article) bool,
	active func(domain.Article, time.Time) bool,
	now time.Time,
) []domain.Article {
	sources := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		sources = append(sources, domain.SourceKey(s))
	}
	out := make([]domain.Article, 0)
	for _, a := range articles {
		if c.Limit > 0 && len(out) >= c.Limit {
			break
		}
		if len(c.Categories) > 0 && !slices.Contains(c.Categories, a.Category) {
			continue
		}
		if len(c.Promotions) > 0 && !slices.ContainsFunc(c.Promotions, a.HasPromotion) {
			continue
		}
		if len(sources) > 0 && !seenIn(a, sources) {
			continue
		}
		if c.VerifiedOnly && !a.IsVerified {
			continue
		}
		if c.BreakingOnly {
			breaking := a.IsBreaking
			if active != nil {
				breaking = active(a, now)
			}
			if !breaking {
				continue
			}
		}
		if !c.Since.IsZero() && a.PublishedAt.Before(c.Since) {
			continue
		}
		if c.UnreadOnly && isRead != nil && isRead(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func seenIn(a domain.Article, sources []string) bool {
	for _, s := range a.Sightings {
		if slices.Contains(sources, s.SourceKey) {
			return true
		}
	}
	return false
}
