package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

const redisNamespace = "wrestlenews:"

// RedisStore хранит каждую статью JSON-значением по ключу
// wrestlenews:article:<id>, а порядок - в сортированном множестве по времени публикации.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid redis uri: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info("Initializing Redis article storage", slog.String("addr", opts.Addr))
	return newRedisStore(client, log), nil
}

func newRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	return &RedisStore{client: client, log: log.With(slog.String("component", "redis-store"))}
}

func articleKey(id string) string { return redisNamespace + "article:" + id }

func indexKey() string { return redisNamespace + "articles" }

func (s *RedisStore) LoadAll(ctx context.Context) ([]domain.Article, error) {
	const op = "storage.redis.LoadAll"
	ids, err := s.client.ZRevRange(ctx, indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read index: %w", op, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = articleKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read articles: %w", op, err)
	}
	articles := make([]domain.Article, 0, len(values))
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			s.log.Warn("Indexed article is missing", slog.String("op", op), slog.String("id", ids[i]))
			continue
		}
		a, err := DecodeArticle([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		articles = append(articles, a)
	}
	sortArticles(articles)
	s.log.Info("Articles loaded", slog.String("op", op), slog.Int("count", len(articles)))
	return articles, nil
}

// UpsertBatch записывает статьи в одной транзакции MULTI/EXEC.
func (s *RedisStore) UpsertBatch(ctx context.Context, articles []domain.Article) error {
	const op = "storage.redis.UpsertBatch"
	articles = latest(articles)
	if len(articles) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if ids := superseded(articles); len(ids) > 0 {
			keys := make([]string, len(ids))
			members := make([]any, len(ids))
			for i, id := range ids {
				keys[i] = articleKey(id)
				members[i] = id
			}
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, indexKey(), members...)
		}
		for _, a := range articles {
			data, err := EncodeArticle(a)
			if err != nil {
				return err
			}
			pipe.Set(ctx, articleKey(a.ID), data, 0)
			pipe.ZAdd(ctx, indexKey(), redis.Z{Score: float64(a.PublishedAt.Unix()), Member: a.ID})
		}
		return nil
	})
	if err != nil {
		s.log.Error("Redis transaction failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("Articles upserted", slog.String("op", op), slog.Int("count", len(articles)))
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
