package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// SinkName identifies the publisher in logs and metrics.
const SinkName = "kafka"

// Publisher produces observations to a Kafka topic.
// It implements pipeline.Sink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name implements pipeline.Sink.
func (p *Publisher) Name() string { return SinkName }

// LoadBatch publishes records in a single WriteMessages call. Records keep
// their relative order within a partition.
func (p *Publisher) LoadBatch(ctx context.Context, records []domain.Observation) error {
	if len(records) == 0 {
		return nil
	}
	publishedAt := domain.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d observations: %w", len(msgs), err)
	}
	p.logger.Debug("published observations", "topic", p.writer.Topic, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// messageKey identifies a strike by time and position, so replays of an
// overlapping window land on the same partition.
func messageKey(o domain.Observation) []byte {
	return []byte(o.Time + "|" + o.Lat + "|" + o.Lon)
}

func serializeToMessage(o domain.Observation, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   messageKey(o),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "observed_at", Value: []byte(o.Time)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
