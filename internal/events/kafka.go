package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"storefront-be/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes envelopes as JSON. Logical topics are mapped to the
// configured Kafka topic names; unmapped topics are rejected.
type KafkaSink struct {
	writer messageWriter
	topics map[string]string
}

func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.L().Sugar().Warnf("kafka writer: "+msg, args...)
		}),
	}
}

func NewKafkaSink(w messageWriter, topics map[string]string) *KafkaSink {
	return &KafkaSink{writer: w, topics: topics}
}

func (s *KafkaSink) Deliver(ctx context.Context, env Envelope) error {
	topic, ok := s.topics[env.Topic]
	if !ok || topic == "" {
		return fmt.Errorf("no kafka topic configured for %q", env.Topic)
	}

	value, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", env.Topic, err)
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(env.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(env.Topic)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink writes envelopes to the log. It stands in when no broker is
// configured.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, env Envelope) error {
	logger.FromCtx(ctx).Info("event",
		zap.String("topic", env.Topic),
		zap.String("key", env.Key),
		zap.Any("payload", env.Payload),
	)
	return nil
}
