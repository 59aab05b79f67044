package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wrestlenews/internal/domain"
)

var errMissingID = errors.New("failed to decode article: missing id")

// Record - плоское представление статьи для документных хранилищ (Mongo, Redis, S3).
type Record struct {
	ID           string           `json:"id" bson:"_id"`
	Aliases      []string         `json:"aliases" bson:"aliases"`
	Fingerprints []string         `json:"fingerprints" bson:"fingerprints"`
	Title        string           `json:"title" bson:"title"`
	Summary      string           `json:"summary" bson:"summary"`
	URL          string           `json:"url" bson:"url"`
	SourceName   string           `json:"source_name" bson:"source_name"`
	SourceURL    string           `json:"source_url" bson:"source_url"`
	SourceTier   string           `json:"source_tier" bson:"source_tier"`
	Sightings    []SightingRecord `json:"sightings" bson:"sightings"`
	Category     string           `json:"category" bson:"category"`
	Promotions   []string         `json:"promotions" bson:"promotions"`
	Author       string           `json:"author,omitempty" bson:"author,omitempty"`
	ImageURL     string           `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Tags         []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	IsBreaking   bool             `json:"is_breaking" bson:"is_breaking"`
	IsVerified   bool             `json:"is_verified" bson:"is_verified"`
	PublishedAt  time.Time        `json:"published_at" bson:"published_at"`
	IngestedAt   time.Time        `json:"ingested_at" bson:"ingested_at"`
}

type SightingRecord struct {
	SourceKey   string    `json:"source_key" bson:"source_key"`
	Tier        string    `json:"tier" bson:"tier"`
	PublishedAt time.Time `json:"published_at" bson:"published_at"`
}

func NewRecord(a domain.Article) Record {
	r := Record{
		ID:           a.ID,
		Aliases:      a.Aliases,
		Fingerprints: a.Fingerprints,
		Title:        a.Title,
		Summary:      a.Summary,
		URL:          a.URL,
		SourceName:   a.Source.Name,
		SourceURL:    a.Source.URL,
		SourceTier:   string(a.Source.Tier),
		Category:     string(a.Category),
		Author:       a.Author,
		ImageURL:     a.ImageURL,
		Tags:         a.Tags,
		IsBreaking:   a.IsBreaking,
		IsVerified:   a.IsVerified,
		PublishedAt:  a.PublishedAt.UTC(),
		IngestedAt:   a.IngestedAt.UTC(),
	}
	if a.Sightings != nil {
		r.Sightings = make([]SightingRecord, len(a.Sightings))
		for i, s := range a.Sightings {
			r.Sightings[i] = SightingRecord{SourceKey: s.SourceKey, Tier: string(s.Tier), PublishedAt: s.PublishedAt.UTC()}
		}
	}
	if a.Promotions != nil {
		r.Promotions = make([]string, len(a.Promotions))
		for i, p := range a.Promotions {
			r.Promotions[i] = string(p)
		}
	}
	return r
}

// Article восстанавливает статью. Неизвестные значения уровня и категории
// заменяются на speculation и general.
func (r Record) Article() domain.Article {
	a := domain.Article{
		ID:           r.ID,
		Aliases:      r.Aliases,
		Fingerprints: r.Fingerprints,
		Title:        r.Title,
		Summary:      r.Summary,
		URL:          r.URL,
		Source:       domain.NewsSource{Name: r.SourceName, URL: r.SourceURL, Tier: tierOf(r.SourceTier)},
		Category:     categoryOf(r.Category),
		Author:       r.Author,
		ImageURL:     r.ImageURL,
		Tags:         r.Tags,
		IsBreaking:   r.IsBreaking,
		IsVerified:   r.IsVerified,
		PublishedAt:  r.PublishedAt.UTC(),
		IngestedAt:   r.IngestedAt.UTC(),
	}
	if r.Sightings != nil {
		a.Sightings = make([]domain.Sighting, len(r.Sightings))
		for i, s := range r.Sightings {
			a.Sightings[i] = domain.Sighting{SourceKey: s.SourceKey, Tier: tierOf(s.Tier), PublishedAt: s.PublishedAt.UTC()}
		}
	}
	if r.Promotions != nil {
		a.Promotions = make([]domain.Promotion, len(r.Promotions))
		for i, p := range r.Promotions {
			a.Promotions[i] = domain.Promotion(p)
		}
	}
	return a
}

func categoryOf(s string) domain.Category {
	c, ok := domain.ParseCategory(s)
	if !ok {
		return domain.CategoryGeneral
	}
	return c
}

func tierOf(s string) domain.Tier {
	t, err := domain.ParseTier(s)
	if err != nil {
		return domain.TierSpeculation
	}
	return t
}

// EncodeArticle сериализует статью в JSON-документ.
func EncodeArticle(a domain.Article) ([]byte, error) {
	data, err := json.Marshal(NewRecord(a))
	if err != nil {
		return nil, fmt.Errorf("failed to encode article %s: %w", a.ID, err)
	}
	return data, nil
}

// DecodeArticle разбирает JSON-документ, записанный EncodeArticle.
func DecodeArticle(data []byte) (domain.Article, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Article{}, fmt.Errorf("failed to decode article: %w", err)
	}
	if r.ID == "" {
		return domain.Article{}, errMissingID
	}
	return r.Article(), nil
}
