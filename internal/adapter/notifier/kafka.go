package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

// KafkaDispatcher публикует события в топик Kafka синхронным продюсером.
// Ключ сообщения - ID статьи, чтобы события одной статьи шли в одну партицию.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

func NewKafkaDispatcher(cfg config.NotifierConfig, log *slog.Logger) (*KafkaDispatcher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.ClientID = "wrestlenews"
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 0
	saramaConfig.Producer.Timeout = cfg.Timeout.Duration
	saramaConfig.Net.DialTimeout = cfg.Timeout.Duration

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newKafkaDispatcher(producer, cfg.Subject, log), nil
}

func newKafkaDispatcher(producer sarama.SyncProducer, topic string, log *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		producer: producer,
		topic:    topic,
		log:      log.With(slog.String("component", "kafka-notifier")),
	}
}

func (d *KafkaDispatcher) PublishBreaking(ctx context.Context, a domain.Article) error {
	const op = "notifier.KafkaDispatcher.PublishBreaking"
	ev, data, err := encodeEvent(a)
	if err != nil {
		record("kafka", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	partition, offset, err := d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(a.ID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(ev.EventID)},
			{Key: []byte("type"), Value: []byte(ev.Type)},
		},
	})
	record("kafka", err)
	if err != nil {
		return fmt.Errorf("%s: send to %s: %w", op, d.topic, err)
	}
	d.log.Info("Breaking event published",
		slog.String("op", op),
		slog.String("topic", d.topic),
		slog.String("event_id", ev.EventID),
		slog.String("id", a.ID),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.producer.Close()
}
