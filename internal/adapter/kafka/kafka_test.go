package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/config"
	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	failures int // calls that fail before one succeeds
	calls    int
	msgs     []kafkago.Message
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("leader not available")
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testRun() domain.RunRecord {
	return domain.RunRecord{
		ID:           "run-1",
		CreatedAt:    time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Duration:     3 * time.Second,
		TotalNodes:   12,
		FloodedNodes: 4,
	}
}

func testWriter(mw *mockWriter) *Writer {
	return &Writer{writer: mw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSerializeToMessage(t *testing.T) {
	run := testRun()

	msg, err := serializeToMessage(run)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"flooded_nodes":4`)
	assert.Contains(t, string(msg.Value), `"duration_ns":3000000000`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "flooded_nodes", msg.Headers[0].Key)
	assert.Equal(t, []byte("4"), msg.Headers[0].Value)
	assert.Equal(t, "created_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

func TestWriter_PublishRun(t *testing.T) {
	mw := &mockWriter{}
	w := testWriter(mw)

	require.NoError(t, w.PublishRun(context.Background(), testRun()))
	require.Len(t, mw.msgs, 1)
	assert.Equal(t, []byte("run-1"), mw.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, mw.closed)
}

func TestWriter_PublishRun_RetriesTransientFailures(t *testing.T) {
	mw := &mockWriter{failures: 2}
	w := testWriter(mw)

	require.NoError(t, w.PublishRun(context.Background(), testRun()))
	assert.Equal(t, 3, mw.calls)
	assert.Len(t, mw.msgs, 1)
}

func TestWriter_PublishRun_GivesUp(t *testing.T) {
	mw := &mockWriter{failures: 10}
	w := testWriter(mw)

	err := w.PublishRun(context.Background(), testRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish run run-1")
	assert.Equal(t, publishAttempts, mw.calls)
}

func TestWriter_PublishRun_StopsOnCancel(t *testing.T) {
	mw := &mockWriter{failures: 10}
	w := testWriter(mw)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.PublishRun(ctx, testRun())
	require.Error(t, err)
	assert.Equal(t, 1, mw.calls)
}

func TestNewWriter(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "flood-simulation-results"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "flood-simulation-results", kw.Topic)
	assert.Equal(t, kafkago.RequireAll, kw.RequiredAcks)
	require.NoError(t, w.Close())
}
