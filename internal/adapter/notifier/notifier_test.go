package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func breakingArticle() domain.Article {
	return domain.Article{
		ID:         "a1b2c3d4e5f60718",
		Title:      "Championship Changes Hands",
		Source:     domain.NewsSource{Name: "WWE", URL: "https://www.wwe.com", Tier: domain.TierOne},
		Category:   domain.CategoryResults,
		IsBreaking: true,
		IsVerified: true,
	}
}

type fakeConn struct {
	subject    string
	data       []byte
	publishErr error
	flushErr   error
	closed     bool
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.subject, c.data = subj, data
	return c.publishErr
}

func (c *fakeConn) FlushWithContext(ctx context.Context) error { return c.flushErr }

func (c *fakeConn) Close() { c.closed = true }

func TestNATSDispatcher_PublishBreaking(t *testing.T) {
	conn := &fakeConn{}
	d := newNATSDispatcher(conn, "wrestlenews.breaking", time.Second, discardLogger())

	err := d.PublishBreaking(context.Background(), breakingArticle())

	require.NoError(t, err)
	assert.Equal(t, "wrestlenews.breaking", conn.subject)
	var ev Event
	require.NoError(t, json.Unmarshal(conn.data, &ev))
	assert.Equal(t, "breaking", ev.Type)
	assert.Equal(t, "a1b2c3d4e5f60718", ev.Article.ID)
	_, err = uuid.Parse(ev.EventID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ev.EmittedAt, time.Minute)

	require.NoError(t, d.Close())
	assert.True(t, conn.closed)
}

func TestNATSDispatcher_Errors(t *testing.T) {
	conn := &fakeConn{flushErr: errors.New("no responders")}
	d := newNATSDispatcher(conn, "wrestlenews.breaking", 0, discardLogger())

	err := d.PublishBreaking(context.Background(), breakingArticle())

	assert.ErrorContains(t, err, "no responders")
}

func TestKafkaDispatcher_PublishBreaking(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Article.ID != "a1b2c3d4e5f60718" {
			return errors.New("unexpected article id " + ev.Article.ID)
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	d := newKafkaDispatcher(producer, "wrestlenews.breaking", discardLogger())

	require.NoError(t, d.PublishBreaking(context.Background(), breakingArticle()))
	err := d.PublishBreaking(context.Background(), breakingArticle())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, d.Close())
}

func TestLogDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewLogDispatcher(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, d.PublishBreaking(context.Background(), breakingArticle()))

	assert.Contains(t, buf.String(), "Breaking news")
	assert.Contains(t, buf.String(), "a1b2c3d4e5f60718")
	assert.NoError(t, d.Close())
}

func TestNew_Drivers(t *testing.T) {
	d, err := New(config.NotifierConfig{}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &LogDispatcher{}, d)

	_, err = New(config.NotifierConfig{Driver: "carrier-pigeon"}, discardLogger())
	assert.ErrorContains(t, err, "unsupported notifier driver")
}
