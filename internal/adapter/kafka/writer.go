package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/config"
	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	publishAttempts = 3
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 2 * time.Second
)

// messageWriter is the subset of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes completed runs to a Kafka topic.
// It implements simulation.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishRun writes one run event keyed by run id, retrying transient
// failures with exponential backoff until the context ends.
func (w *Writer) PublishRun(ctx context.Context, run domain.RunRecord) error {
	msg, err := serializeToMessage(run)
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = w.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt == publishAttempts || ctx.Err() != nil {
			return fmt.Errorf("publish run %s: %w", run.ID, err)
		}
		w.logger.Warn("publish run failed, retrying",
			"run_id", run.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("publish run %s: %w", run.ID, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RunRecord into a Kafka message.
func serializeToMessage(run domain.RunRecord) (kafkago.Message, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(run.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "flooded_nodes", Value: []byte(strconv.Itoa(run.FloodedNodes))},
			{Key: "created_at", Value: []byte(run.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
