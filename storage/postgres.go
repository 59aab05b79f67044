package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wrestlenews/internal/domain"
)

const (
	articlesTable = "articles"
	// upsertChunk ограничивает число строк в одном INSERT, чтобы не выйти
	// за предел параметров протокола PostgreSQL.
	upsertChunk = 1000
)

var articleColumns = []string{
	"id", "aliases", "fingerprints", "title", "summary", "url",
	"source_name", "source_url", "source_tier", "sightings", "category", "promotions",
	"author", "image_url", "tags", "is_breaking", "is_verified", "published_at", "ingested_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresStore {
	log.Info("Initializing Postgres article storage")
	return &PostgresStore{
		pool: pool,
		log:  log.With(slog.String("component", "postgres-store")),
	}
}

func (db *PostgresStore) Close() error {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
	return nil
}

// UpsertBatch сохраняет статьи в одной транзакции.
func (db *PostgresStore) UpsertBatch(ctx context.Context, articles []domain.Article) (err error) {
	const op = "storage.postgres.UpsertBatch"
	log := db.log.With(slog.String("op", op))
	articles = latest(articles)
	if len(articles) == 0 {
		return nil
	}
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()

	if ids := superseded(articles); len(ids) > 0 {
		query, args, err := deleteQuery(ids)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			log.Error("Failed to delete superseded articles", slog.Any("error", err))
			return fmt.Errorf("%s: failed to delete superseded articles: %w", op, err)
		}
	}
	for start := 0; start < len(articles); start += upsertChunk {
		end := min(start+upsertChunk, len(articles))
		query, args, err := upsertQuery(articles[start:end])
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			log.Error("Failed to upsert articles", slog.Any("error", err))
			return fmt.Errorf("%s: failed to upsert articles: %w", op, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	log.Debug("Articles upserted", slog.Int("count", len(articles)))
	return nil
}

func (db *PostgresStore) LoadAll(ctx context.Context) ([]domain.Article, error) {
	const op = "storage.postgres.LoadAll"
	log := db.log.With(slog.String("op", op))
	query, args, err := psql.Select(articleColumns...).
		From(articlesTable).
		OrderBy("published_at DESC", "ingested_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	articles, err := pgx.CollectRows(rows, scanArticle)
	if err != nil {
		log.Error("Failed to collect rows", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	log.Info("Articles loaded", slog.Int("count", len(articles)))
	return articles, nil
}

func scanArticle(row pgx.CollectableRow) (domain.Article, error) {
	var r Record
	var aliases, fingerprints, sightings, promotions, tags []byte
	err := row.Scan(
		&r.ID,
		&aliases,
		&fingerprints,
		&r.Title,
		&r.Summary,
		&r.URL,
		&r.SourceName,
		&r.SourceURL,
		&r.SourceTier,
		&sightings,
		&r.Category,
		&promotions,
		&r.Author,
		&r.ImageURL,
		&tags,
		&r.IsBreaking,
		&r.IsVerified,
		&r.PublishedAt,
		&r.IngestedAt,
	)
	if err != nil {
		return domain.Article{}, err
	}
	for _, f := range []struct {
		data []byte
		dst  any
	}{
		{aliases, &r.Aliases},
		{fingerprints, &r.Fingerprints},
		{sightings, &r.Sightings},
		{promotions, &r.Promotions},
		{tags, &r.Tags},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return domain.Article{}, fmt.Errorf("failed to decode column of article %s: %w", r.ID, err)
		}
	}
	return r.Article(), nil
}

// upsertQuery строит INSERT ... ON CONFLICT (id) DO UPDATE для пачки статей.
// Множества хранятся в колонках jsonb.
func upsertQuery(articles []domain.Article) (string, []any, error) {
	b := psql.Insert(articlesTable).Columns(articleColumns...)
	for _, a := range articles {
		r := NewRecord(a)
		values := []any{r.ID}
		for _, v := range []any{r.Aliases, r.Fingerprints} {
			data, err := json.Marshal(v)
			if err != nil {
				return "", nil, err
			}
			values = append(values, data)
		}
		values = append(values, r.Title, r.Summary, r.URL, r.SourceName, r.SourceURL, r.SourceTier)
		sightings, err := json.Marshal(r.Sightings)
		if err != nil {
			return "", nil, err
		}
		promotions, err := json.Marshal(r.Promotions)
		if err != nil {
			return "", nil, err
		}
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return "", nil, err
		}
		values = append(values, sightings, r.Category, promotions, r.Author, r.ImageURL, tags,
			r.IsBreaking, r.IsVerified, r.PublishedAt, r.IngestedAt)
		b = b.Values(values...)
	}
	query, args, err := b.Suffix(conflictClause()).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build upsert query: %w", err)
	}
	return query, args, nil
}

func conflictClause() string {
	clause := "ON CONFLICT (id) DO UPDATE SET "
	for i, c := range articleColumns[1:] {
		if i > 0 {
			clause += ", "
		}
		clause += c + " = EXCLUDED." + c
	}
	return clause
}

func deleteQuery(ids []string) (string, []any, error) {
	query, args, err := psql.Delete(articlesTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build delete query: %w", err)
	}
	return query, args, nil
}
