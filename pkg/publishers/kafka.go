package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaSender struct {
	topic  string
	writer kafkaWriter
	log    Logger
}

func newKafkaSender(_ context.Context, cfg *KafkaConfig, log Logger) (queueSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kafka configuration is missing")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxAttempts,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}

	return &kafkaSender{topic: cfg.Topic, writer: w, log: ensureLogger(log)}, nil
}

// Send writes the event keyed by headline id so one headline always lands on the same partition.
func (s *kafkaSender) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := evt.Attributes()
	headers := make([]kafka.Header, 0, len(attrs))
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Key:     []byte(evt.HeadlineID),
		Value:   payload,
		Headers: headers,
		Time:    evt.EmittedAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.log.ErrorObj("kafka publisher send failed", "publisher_kafka_error", map[string]any{
			"topic":       s.topic,
			"headline_id": evt.HeadlineID,
			"error":       err.Error(),
		})
		return fmt.Errorf("write message to kafka: %w", err)
	}

	s.log.DebugObj("kafka publisher delivered event", "publisher_kafka_delivery", map[string]any{
		"topic":       s.topic,
		"headline_id": evt.HeadlineID,
	})
	return nil
}

func (s *kafkaSender) Close() error { return s.writer.Close() }
