package usecase

import (
	"time"

	"wrestlenews/internal/domain"
)

// Classifier определяет, какие новые статьи считаются срочными.
type Classifier struct {
	window time.Duration
}

// NewClassifier создает классификатор с окном срочности window.
func NewClassifier(window time.Duration) *Classifier {
	return &Classifier{window: window}
}

// Classify возвращает true для новой статьи (ни один алиас не был известен ранее)
// от источника tier1 или подтвержденной хотя бы двумя источниками,
// если категория не редакционная (business, general).
func (c *Classifier) Classify(a domain.Article, priorKnown map[string]struct{}) bool {
	for _, alias := range a.Aliases {
		if _, ok := priorKnown[alias]; ok {
			return false
		}
	}
	if a.Category.Editorial() {
		return false
	}
	return a.Source.Tier == domain.TierOne || a.Corroboration() >= 2
}

// Actionable сообщает, нужно ли еще уведомлять о статье на момент now.
func (c *Classifier) Actionable(a domain.Article, now time.Time) bool {
	return a.BreakingActive(now, c.window)
}

// Window возвращает окно срочности.
func (c *Classifier) Window() time.Duration { return c.window }
