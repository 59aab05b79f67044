package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

// MongoStore хранит статьи документами коллекции; _id документа - ID статьи.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *slog.Logger
}

func NewMongoStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	coll := client.Database(cfg.DBName).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "published_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create mongo index: %w", err)
	}
	log.Info("Initializing Mongo article storage",
		slog.String("database", cfg.DBName),
		slog.String("collection", cfg.Collection),
	)
	return &MongoStore{
		client: client,
		coll:   coll,
		log:    log.With(slog.String("component", "mongo-store")),
	}, nil
}

func (s *MongoStore) LoadAll(ctx context.Context) ([]domain.Article, error) {
	const op = "storage.mongo.LoadAll"
	opts := options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		s.log.Error("Mongo find failed", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%s: failed to decode documents: %w", op, err)
	}
	articles := make([]domain.Article, 0, len(records))
	for _, r := range records {
		articles = append(articles, r.Article())
	}
	s.log.Info("Articles loaded", slog.String("op", op), slog.Int("count", len(articles)))
	return articles, nil
}

// UpsertBatch заменяет документы статей и удаляет документы устаревших алиасов
// одной неупорядоченной пачкой.
func (s *MongoStore) UpsertBatch(ctx context.Context, articles []domain.Article) error {
	const op = "storage.mongo.UpsertBatch"
	models := writeModels(latest(articles))
	if len(models) == 0 {
		return nil
	}
	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		s.log.Error("Mongo bulk write failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("Articles upserted",
		slog.String("op", op),
		slog.Int64("upserted", res.UpsertedCount),
		slog.Int64("modified", res.ModifiedCount),
		slog.Int64("deleted", res.DeletedCount),
	)
	return nil
}

func writeModels(articles []domain.Article) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(articles)+1)
	if ids := superseded(articles); len(ids) > 0 {
		models = append(models, mongo.NewDeleteManyModel().
			SetFilter(bson.M{"_id": bson.M{"$in": ids}}))
	}
	for _, a := range articles {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": a.ID}).
			SetReplacement(NewRecord(a)).
			SetUpsert(true))
	}
	return models
}

func (s *MongoStore) Close() error {
	s.log.Info("Closing mongo connection")
	return s.client.Disconnect(context.Background())
}
