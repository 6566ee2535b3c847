package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/emberwatch/firesync/internal/config"
	"github.com/emberwatch/firesync/internal/domain"
)

// Publisher produces validated-fire alerts to a Kafka topic.
// It implements pipeline.AlertPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured alert topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishFires serializes and publishes newly validated fires in a single
// WriteMessages call. Only fires inserted this run should be passed in, so
// downstream consumers see each fire once.
func (p *Publisher) PublishFires(ctx context.Context, fires []domain.ValidatedFire) error {
	if len(fires) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(fires))
	for i := range fires {
		msg, err := serializeToMessage(fires[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Info("published fire alerts", "count", len(fires))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ValidatedFire into a Kafka message keyed by
// the fire's natural key, so replays of the same fire land on one partition.
func serializeToMessage(fire domain.ValidatedFire) (kafkago.Message, error) {
	data, err := json.Marshal(fire)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize validated fire: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fire.Detection.Key().String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "primary_sensor", Value: []byte(fire.PrimarySensor)},
			{Key: "confidence_level", Value: []byte(strconv.Itoa(fire.ConfidenceLevel))},
			{Key: "acquired_at", Value: []byte(fire.AcquiredAt.Format(time.RFC3339))},
		},
	}, nil
}
