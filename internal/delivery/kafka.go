package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/charlesng35/campusalert/internal/dispatch"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaGateway publishes notifications to a Kafka topic consumed by push workers.
type KafkaGateway struct {
	writer messageWriter
}

// NewKafkaGateway creates a producer for cfg.Topic.
func NewKafkaGateway(cfg KafkaConfig) (*KafkaGateway, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("delivery: kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("delivery: kafka topic is required")
	}
	acks, err := parseRequiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: acks,
		BatchTimeout: batchTimeout,
	}
	if cfg.ClientID != "" {
		w.Transport = &kafkago.Transport{ClientID: cfg.ClientID}
	}
	return &KafkaGateway{writer: w}, nil
}

// Send writes one message keyed by notification ID.
func (g *KafkaGateway) Send(ctx context.Context, n dispatch.Notification) error {
	msg, err := encodeMessage(n)
	if err != nil {
		return err
	}
	if err := g.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the producer.
func (g *KafkaGateway) Close() error {
	return g.writer.Close()
}

func encodeMessage(n dispatch.Notification) (kafkago.Message, error) {
	data, err := json.Marshal(NewPayload(n))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(n.Category)},
			{Key: "priority", Value: []byte(n.Priority.String())},
		},
	}, nil
}

func parseRequiredAcks(raw string) (kafkago.RequiredAcks, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return kafkago.RequireAll, nil
	case "one":
		return kafkago.RequireOne, nil
	case "none":
		return kafkago.RequireNone, nil
	default:
		return kafkago.RequireAll, fmt.Errorf("delivery: unknown required_acks %q", raw)
	}
}
