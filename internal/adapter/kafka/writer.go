package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/epw-climate-service/internal/config"
	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

// Writer publishes temperature series to a Kafka topic, one message per
// observation. It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured series topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    500,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes every observation of s in a single WriteMessages call.
// Messages are keyed by label so one series lands on one partition in order.
func (w *Writer) Publish(ctx context.Context, s domain.TemperatureSeries) error {
	if s.Len() == 0 {
		return nil
	}
	msgs, err := seriesToMessages(s)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish series %q: %w", s.Label(), err)
	}
	w.logger.Debug("series published", "label", s.Label(), "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// observationMessage is the wire form of one observation.
type observationMessage struct {
	Label       string    `json:"label"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature_c"`
}

// seriesToMessages marshals each observation of a series into a Kafka message.
func seriesToMessages(s domain.TemperatureSeries) ([]kafkago.Message, error) {
	obs := s.Observations()
	msgs := make([]kafkago.Message, len(obs))
	headers := []kafkago.Header{
		{Key: "series_label", Value: []byte(s.Label())},
		{Key: "fingerprint", Value: []byte(s.Fingerprint())},
	}
	for i, o := range obs {
		data, err := json.Marshal(observationMessage{
			Label:       s.Label(),
			Fingerprint: s.Fingerprint(),
			Timestamp:   o.Timestamp,
			Temperature: o.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("serialize observation %s: %w", o.Timestamp.Format(time.RFC3339), err)
		}
		msgs[i] = kafkago.Message{
			Key:     []byte(s.Label()),
			Value:   data,
			Headers: headers,
		}
	}
	return msgs, nil
}
