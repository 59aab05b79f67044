package domain

import "time"

// Phase - состояние менеджера ленты.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRefreshing Phase = "refreshing"
)

// Outcome - итог последнего цикла обновления.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSuccess   Outcome = "success"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// FeedState - неизменяемый снимок ленты для слоя представления.
// Публикуется целиком: читатель видит либо старый, либо новый снимок.
type FeedState struct {
	Version      uint64            `json:"version"`
	Articles     []Article         `json:"articles"`
	IsLoading    bool              `json:"is_loading"`
	LastError    string            `json:"last_error,omitempty"`
	LastUpdate   time.Time         `json:"last_update"`
	Phase        Phase             `json:"phase"`
	Outcome      Outcome           `json:"outcome,omitempty"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

// FilterCriteria описывает проекцию ленты. Пустые поля не ограничивают выборку.
type FilterCriteria struct {
	Categories   []Category
	Promotions   []Promotion
	Sources      []string
	UnreadOnly   bool
	VerifiedOnly bool
	BreakingOnly bool
	Since        time.Time
	Limit        int
}
