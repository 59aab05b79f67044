package usecase

import (
	"log/slog"
	"reflect"
	"slices"
	"time"

	"wrestlenews/internal/domain"
	"wrestlenews/internal/metrics"
	"wrestlenews/internal/registry"
)

// batch - результат обработки одного цикла обновления.
type batch struct {
	articles []domain.Article
	changed  []domain.Article
	breaking []domain.Article
	accepted int
	rejected int
	evicted  []string
}

// process выполняет нормализацию, слияние с удерживаемым набором, переоценку
// достоверности, классификацию срочности и вытеснение. held не изменяется.
func (m *FeedManager) process(held []domain.Article, results []SourceResult, now time.Time) batch {
	log := m.log.With(slog.String("op", "usecase.FeedManager.process"))
	var b batch

	var incoming []domain.Article
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, raw := range res.Payloads {
			a, err := m.normalizer.Normalize(raw, res.Source)
			if err != nil {
				b.rejected++
				metrics.RejectedPayloads.WithLabelValues(res.Source.Key()).Inc()
				log.Warn("Payload rejected",
					slog.String("stage", "normalize"),
					slog.String("source", res.Source.Key()),
					slog.String("title", raw.Title),
					slog.Any("error", err),
				)
				continue
			}
			incoming = append(incoming, a)
		}
	}
	b.accepted = len(incoming)

	priorKnown := make(map[string]struct{}, len(held))
	priorByID := make(map[string]domain.Article, len(held))
	ix := newIndex(len(held) + len(incoming))
	for _, a := range held {
		for _, alias := range a.Aliases {
			priorKnown[alias] = struct{}{}
		}
		priorByID[a.ID] = a
		ix.add(a)
	}
	for _, a := range incoming {
		ix.add(a)
	}
	merged := ix.articles()
	log.Debug("Batch merged",
		slog.String("stage", "merge"),
		slog.Int("held", len(held)),
		slog.Int("incoming", len(incoming)),
		slog.Int("count", len(merged)),
	)

	for i := range merged {
		merged[i] = m.score(merged[i])
		if merged[i].IsBreaking || !m.classifier.Classify(merged[i], priorKnown) {
			continue
		}
		merged[i].IsBreaking = true
		if m.classifier.Actionable(merged[i], now) {
			b.breaking = append(b.breaking, merged[i])
		}
	}

	b.articles, b.evicted = m.evict(merged, now)
	for _, a := range b.articles {
		if prior, ok := priorByID[a.ID]; !ok || !reflect.DeepEqual(prior, a) {
			b.changed = append(b.changed, a)
		}
	}
	return b
}

// score заново вычисляет уровни наблюдений и признак проверенности
// по текущему реестру источников. Возвращает новую копию статьи.
func (m *FeedManager) score(a domain.Article) domain.Article {
	sightings := make([]domain.Sighting, len(a.Sightings))
	for i, s := range a.Sightings {
		s.Tier = m.sources.ResolveTier(s.SourceKey)
		sightings[i] = s
	}
	a.Sightings = sightings
	a.Source.Tier = m.sources.ResolveTier(a.Source.URL)

	primary := domain.Sighting{SourceKey: a.Source.Key(), Tier: a.Source.Tier, PublishedAt: a.PublishedAt}
	for _, s := range a.Sightings {
		if s.SourceKey == primary.SourceKey {
			primary = s
			break
		}
	}
	n := registry.CountCorroborations(primary, a.Sightings, m.cfg.CorroborationWindow.Duration)
	a.IsVerified = registry.IsVerifiable(a.Source.Tier, n)
	return a
}

// evict упорядочивает статьи и удаляет вышедшие за окно хранения, затем самые
// старые сверх лимита. Статьи с действующим окном срочности не удаляются.
func (m *FeedManager) evict(articles []domain.Article, now time.Time) ([]domain.Article, []string) {
	slices.SortFunc(articles, domain.Compare)
	window := m.classifier.Window()
	cutoff := now.Add(-m.cfg.RetentionWindow.Duration)
	var evicted []string

	kept := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.Before(cutoff) && !a.BreakingActive(now, window) {
			evicted = append(evicted, a.ID)
			continue
		}
		kept = append(kept, a)
	}

	excess := len(kept) - m.cfg.MaxArticles
	if m.cfg.MaxArticles <= 0 || excess <= 0 {
		return kept, evicted
	}
	drop := make(map[int]bool, excess)
	for i := len(kept) - 1; i >= 0 && len(drop) < excess; i-- {
		if !kept[i].BreakingActive(now, window) {
			drop[i] = true
			evicted = append(evicted, kept[i].ID)
		}
	}
	out := make([]domain.Article, 0, len(kept)-len(drop))
	for i, a := range kept {
		if !drop[i] {
			out = append(out, a)
		}
	}
	return out, evicted
}
