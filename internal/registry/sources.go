package registry

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"wrestlenews/internal/domain"
)

// Sources хранит соответствие источника и уровня доверия вместе с параметрами загрузки.
// Изменения не затрагивают уже загруженные статьи до их следующей переоценки.
type Sources struct {
	mu          sync.RWMutex
	descriptors map[string]domain.SourceDescriptor
	log         *slog.Logger
}

// NewSources создает пустой реестр источников.
func NewSources(log *slog.Logger) *Sources {
	return &Sources{
		descriptors: make(map[string]domain.SourceDescriptor),
		log:         log.With(slog.String("component", "registry")),
	}
}

// Register добавляет источник. Повторная регистрация того же ключа возвращает ErrSourceExists.
func (r *Sources) Register(d domain.SourceDescriptor) error {
	const op = "registry.Sources.Register"
	if err := validate(d); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	key := d.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[key]; ok {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrSourceExists, key)
	}
	r.descriptors[key] = d
	r.log.Info("Source registered",
		slog.String("op", op),
		slog.String("source", key),
		slog.String("tier", string(d.Source.Tier)),
		slog.String("kind", string(d.Kind)),
	)
	return nil
}

// Remove удаляет источник по его идентичности (URL в любом написании).
func (r *Sources) Remove(identity string) error {
	key := domain.SourceKey(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[key]; !ok {
		return fmt.Errorf("registry.Sources.Remove: %w: %s", domain.ErrUnknownSource, key)
	}
	delete(r.descriptors, key)
	r.log.Info("Source removed", slog.String("source", key))
	return nil
}

// UpdateTier меняет уровень доверия источника. Это единственный способ
// изменить уровень после регистрации.
func (r *Sources) UpdateTier(identity string, tier domain.Tier) error {
	const op = "registry.Sources.UpdateTier"
	if tier.Rank() == 0 {
		return fmt.Errorf("%s: unknown tier %q", op, tier)
	}
	key := domain.SourceKey(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[key]
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrUnknownSource, key)
	}
	previous := d.Source.Tier
	d.Source.Tier = tier
	r.descriptors[key] = d
	r.log.Info("Source tier updated",
		slog.String("op", op),
		slog.String("source", key),
		slog.String("from", string(previous)),
		slog.String("to", string(tier)),
	)
	return nil
}

// Lookup возвращает дескриптор источника.
func (r *Sources) Lookup(identity string) (domain.SourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[domain.SourceKey(identity)]
	return d, ok
}

// ResolveTier возвращает уровень доверия источника; неизвестные источники
// считаются TierSpeculation.
func (r *Sources) ResolveTier(identity string) domain.Tier {
	if d, ok := r.Lookup(identity); ok {
		return d.Source.Tier
	}
	return domain.TierSpeculation
}

// Descriptors возвращает копию всех дескрипторов, упорядоченную по ключу.
func (r *Sources) Descriptors() []domain.SourceDescriptor {
	r.mu.RLock()
	out := make([]domain.SourceDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Sources возвращает зарегистрированных издателей.
func (r *Sources) Sources() []domain.NewsSource {
	descriptors := r.Descriptors()
	out := make([]domain.NewsSource, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Source
	}
	return out
}

// Len возвращает число зарегистрированных источников.
func (r *Sources) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// IsVerifiable применяет политику верификации: tier1 проверен всегда,
// tier2 требует хотя бы одного подтверждающего источника tier1/tier2 в окне,
// speculation не проверяется автоматически никогда.
func IsVerifiable(tier domain.Tier, corroborations int) bool {
	switch tier {
	case domain.TierOne:
		return true
	case domain.TierTwo:
		return corroborations >= 1
	}
	return false
}

// CountCorroborations считает подтверждения первичного наблюдения: наблюдения
// других источников уровня tier1/tier2, опубликованные в пределах окна.
func CountCorroborations(primary domain.Sighting, sightings []domain.Sighting, window time.Duration) int {
	n := 0
	for _, s := range sightings {
		if s.SourceKey == primary.SourceKey {
			continue
		}
		if s.Tier != domain.TierOne && s.Tier != domain.TierTwo {
			continue
		}
		delta := s.PublishedAt.Sub(primary.PublishedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			n++
		}
	}
	return n
}

func validate(d domain.SourceDescriptor) error {
	if strings.TrimSpace(d.Source.Name) == "" {
		return fmt.Errorf("%w: empty source name", domain.ErrMalformedSource)
	}
	if _, err := url.ParseRequestURI(d.Source.URL); err != nil {
		return fmt.Errorf("%w: invalid source url %q", domain.ErrMalformedSource, d.Source.URL)
	}
	if d.Source.Tier.Rank() == 0 {
		return fmt.Errorf("%w: unknown tier %q", domain.ErrMalformedSource, d.Source.Tier)
	}
	return nil
}
