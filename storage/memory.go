package storage

import (
	"context"
	"sync"

	"wrestlenews/internal/domain"
)

// MemoryStore хранит статьи в памяти процесса. Используется в тестах и
// при локальном запуске без базы данных.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]domain.Article
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{articles: make(map[string]domain.Article)}
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, a)
	}
	sortArticles(out)
	return out, nil
}

func (s *MemoryStore) UpsertBatch(ctx context.Context, articles []domain.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, id := range superseded(articles) {
		delete(s.articles, id)
	}
	for _, a := range articles {
		s.articles[a.ID] = a
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
