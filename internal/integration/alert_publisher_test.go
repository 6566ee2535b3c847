//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/emberwatch/firesync/internal/adapter/kafka"
	"github.com/emberwatch/firesync/internal/config"
	"github.com/emberwatch/firesync/internal/domain"
)

const testAlertTopic = "test-validated-fires"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-broker Kafka container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("firesync-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// alertMessage holds a deserialized message read from the alert topic.
type alertMessage struct {
	Fire    domain.ValidatedFire
	Key     string
	Headers map[string]string
}

func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) alertMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var fire domain.ValidatedFire
	require.NoError(t, json.Unmarshal(msg.Value, &fire), "unmarshal alert message")

	return alertMessage{Fire: fire, Key: string(msg.Key), Headers: headers}
}

// TestAlertPublisher verifies that validated fires round-trip through Kafka
// with their natural-key message keys and metadata headers intact.
func TestAlertPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaAlertTopic: testAlertTopic,
	}

	publisher := kafkaadapter.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	acquired := time.Date(2025, 10, 26, 17, 44, 0, 0, time.UTC)
	fires := []domain.ValidatedFire{
		{
			Detection: domain.Detection{
				SensorID:   "viirs_noaa20",
				Latitude:   53.5,
				Longitude:  -104.0,
				AcqDate:    "2025-10-26",
				AcqTime:    "1744",
				Confidence: "h",
			},
			AcquiredAt:        acquired,
			ConfidenceLevel:   2,
			PrimarySensor:     "viirs_noaa20",
			ValidatingSensors: []string{"modis", "viirs_snpp"},
		},
		{
			Detection: domain.Detection{
				SensorID:   "viirs_noaa20",
				Latitude:   53.61,
				Longitude:  -103.8,
				AcqDate:    "2025-10-26",
				AcqTime:    "1744",
				Confidence: "n",
			},
			AcquiredAt:        acquired,
			ConfidenceLevel:   1,
			PrimarySensor:     "viirs_noaa20",
			ValidatingSensors: []string{"goes"},
		},
	}

	require.NoError(t, publisher.PublishFires(ctx, fires))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		GroupID:     fmt.Sprintf("test-alerts-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readAlert(ctx, t, consumer)
	assert.Equal(t, "53.50000,-104.00000,2025-10-26,1744", first.Key)
	assert.Equal(t, "viirs_noaa20", first.Headers["primary_sensor"])
	assert.Equal(t, "2", first.Headers["confidence_level"])
	_, err := time.Parse(time.RFC3339, first.Headers["acquired_at"])
	assert.NoError(t, err, "acquired_at should be valid RFC3339")
	assert.Equal(t, 2, first.Fire.ConfidenceLevel)
	assert.Equal(t, []string{"modis", "viirs_snpp"}, first.Fire.ValidatingSensors)
	assert.True(t, first.Fire.AcquiredAt.Equal(acquired))

	second := readAlert(ctx, t, consumer)
	assert.Equal(t, 1, second.Fire.ConfidenceLevel)
	assert.Equal(t, []string{"goes"}, second.Fire.ValidatingSensors)
	assert.Equal(t, 53.61, second.Fire.Detection.Latitude)
}
