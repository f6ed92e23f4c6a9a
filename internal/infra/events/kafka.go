package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const source = "kviz-gateway"

// envelope is the message value written to the topic.
type envelope struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Type   string          `json:"type"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a single topic keyed by entity id.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event app.Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(event app.Event) (kafka.Message, error) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	value, err := json.Marshal(envelope{
		ID:     uuid.NewString(),
		Source: source,
		Type:   event.Type,
		Time:   at,
		Data:   data,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Time:    at,
		Headers: []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, nil
}
