package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration - одна миграция схемы. ID задает порядок применения.
type Migration struct {
	ID    string
	UpSQL string
}

var allMigrations = []Migration{
	{
		ID: "20250301120000_create_articles_table",
		UpSQL: `
		CREATE TABLE articles(
		id TEXT PRIMARY KEY,
		aliases JSONB NOT NULL DEFAULT '[]',
		fingerprints JSONB NOT NULL DEFAULT '[]',
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		source_name TEXT NOT NULL,
		source_url TEXT NOT NULL,
		source_tier TEXT NOT NULL,
		sightings JSONB NOT NULL DEFAULT '[]',
		category TEXT NOT NULL,
		promotions JSONB NOT NULL DEFAULT '[]',
		author TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		tags JSONB NOT NULL DEFAULT '[]',
		is_breaking BOOLEAN NOT NULL DEFAULT FALSE,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TIMESTAMPTZ NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL
		);`,
	},
	{
		ID:    "20250301120100_index_articles_published_at",
		UpSQL: `CREATE INDEX articles_published_at_idx ON articles (published_at DESC, id);`,
	},
}

// Apply применяет все необходимые миграции к базе данных.
func Apply(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error {
	log = log.With(slog.String("component", "migrations"))
	log.Info("Starting database migrations check...")
	_, err := pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	rows, err := pool.Query(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	appliedMigrations := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration id: %w", err)
		}
		appliedMigrations[id] = true
	}
	rows.Close()
	pending := Pending(appliedMigrations)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	appliedCount := 0
	for _, m := range pending {
		log.Info("Applying migration", slog.String("id", m.ID))
		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (id) VALUES ($1)", m.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
		appliedCount++
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations transaction: %w", err)
	}
	if appliedCount > 0 {
		log.Info("Database migrations applied successfully", slog.Int("count", appliedCount))
	} else {
		log.Info("Database is up to date, no new migrations found.")
	}
	return nil
}

// Pending возвращает непримененные миграции в порядке ID.
func Pending(applied map[string]bool) []Migration {
	out := make([]Migration, 0, len(allMigrations))
	for _, m := range allMigrations {
		if !applied[m.ID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
