package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
	"wrestlenews/internal/migrations"
)

// Storage определяет общий интерфейс постоянного хранилища статей.
// UpsertBatch заменяет статьи по ID и удаляет записи, сохраненные под
// устаревшими алиасами объединенных статей.
type Storage interface {
	LoadAll(ctx context.Context) ([]domain.Article, error)
	UpsertBatch(ctx context.Context, articles []domain.Article) error
	Close() error
}

// New создает хранилище по драйверу из конфигурации.
func New(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (Storage, error) {
	const op = "storage.New"
	log = log.With(slog.String("component", "storage"), slog.String("driver", cfg.Driver))
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
		}
		if err := migrations.Apply(ctx, log, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return NewPostgresStore(pool, log), nil
	case "mongo":
		s, err := NewMongoStore(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	case "redis":
		s, err := NewRedisStore(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	case "s3":
		s, err := NewS3Store(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%s: unsupported database driver %q", op, cfg.Driver)
}

// superseded возвращает алиасы статей, под которыми они больше не хранятся.
func superseded(articles []domain.Article) []string {
	var ids []string
	for _, a := range articles {
		for _, alias := range a.Aliases {
			if alias != a.ID {
				ids = append(ids, alias)
			}
		}
	}
	return ids
}

// latest оставляет последнюю версию каждой статьи из пачки.
func latest(articles []domain.Article) []domain.Article {
	idx := make(map[string]int, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if i, ok := idx[a.ID]; ok {
			out[i] = a
			continue
		}
		idx[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}

// ErrClosed возвращается при обращении к закрытому хранилищу.
var ErrClosed = errors.New("storage is closed")

func sortArticles(articles []domain.Article) {
	slices.SortFunc(articles, domain.Compare)
}
