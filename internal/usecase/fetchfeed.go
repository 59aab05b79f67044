package usecase

import (
	"context"

	"wrestlenews/internal/domain"
)

// SourceFetcher определяет интерфейс загрузки сырых материалов одного источника.
// Реализация должна быть безопасна для одновременного вызова по разным источникам.
// Временные сбои оборачивают domain.ErrSourceUnavailable, неустранимые -
// domain.ErrMalformedSource.
type SourceFetcher interface {
	Fetch(ctx context.Context, source domain.SourceDescriptor) ([]domain.RawPayload, error)
}

// ArticleStore определяет контракт постоянного хранилища.
// LoadAll вызывается при старте, UpsertBatch - после каждого обновления.
// Ошибки хранилища не влияют на ленту в памяти.
type ArticleStore interface {
	LoadAll(ctx context.Context) ([]domain.Article, error)
	UpsertBatch(ctx context.Context, articles []domain.Article) error
	Close() error
}

// BreakingDispatcher принимает события о срочных новостях.
// Движок не ждет подтверждения доставки и не повторяет отправку.
type BreakingDispatcher interface {
	PublishBreaking(ctx context.Context, article domain.Article) error
}

// SourceCatalog предоставляет список источников и их уровни доверия.
type SourceCatalog interface {
	Descriptors() []domain.SourceDescriptor
	ResolveTier(identity string) domain.Tier
}

// PromotionResolver распознает теги промоушенов.
type PromotionResolver interface {
	Canonical(raw string) (domain.Promotion, bool)
	Detect(text string) []domain.Promotion
}
