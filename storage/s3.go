package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

// S3API - используемая часть клиента S3.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store хранит каждую статью отдельным JSON-объектом <prefix><id>.json.
// Учетные данные берутся из стандартной цепочки AWS SDK.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	log    *slog.Logger
}

func NewS3Store(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	log.Info("Initializing S3 article storage",
		slog.String("bucket", cfg.Bucket),
		slog.String("prefix", cfg.Prefix),
	)
	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, log), nil
}

func NewS3StoreWithClient(client S3API, bucket, prefix string, log *slog.Logger) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log.With(slog.String("component", "s3-store")),
	}
}

func (s *S3Store) objectKey(id string) string {
	return s.prefix + id + ".json"
}

func (s *S3Store) LoadAll(ctx context.Context) ([]domain.Article, error) {
	const op = "storage.s3.LoadAll"
	var articles []domain.Article
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.log.Error("Failed to list objects", slog.String("op", op), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to list objects: %w", op, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			a, err := s.get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			articles = append(articles, a)
		}
	}
	sortArticles(articles)
	s.log.Info("Articles loaded", slog.String("op", op), slog.Int("count", len(articles)))
	return articles, nil
}

func (s *S3Store) get(ctx context.Context, key string) (domain.Article, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Article{}, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return DecodeArticle(data)
}

// UpsertBatch перезаписывает объекты статей, затем удаляет объекты устаревших алиасов.
// S3 не поддерживает транзакции: при сбое часть объектов может остаться обновленной.
func (s *S3Store) UpsertBatch(ctx context.Context, articles []domain.Article) error {
	const op = "storage.s3.UpsertBatch"
	articles = latest(articles)
	for _, a := range articles {
		data, err := EncodeArticle(a)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.objectKey(a.ID)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			s.log.Error("Failed to upload object", slog.String("op", op), slog.String("id", a.ID), slog.Any("error", err))
			return fmt.Errorf("%s: failed to upload object to S3: %w", op, err)
		}
	}
	ids := superseded(articles)
	if len(ids) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, len(ids))
	for i, id := range ids {
		objects[i] = types.ObjectIdentifier{Key: aws.String(s.objectKey(id))}
	}
	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		s.log.Error("Failed to delete superseded objects", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete superseded objects: %w", op, err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
