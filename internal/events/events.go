// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher sends keyed JSON payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

type Client struct {
	Brokers []string
}

func NewClient(brokers []string) *Client {
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every event as one message keyed by entity.
type KafkaPublisher struct {
	writer messageWriter
}

// NewPublisher returns a Kafka publisher for topic, or a no-op publisher when no brokers are configured.
func (c *Client) NewPublisher(topic string) Publisher {
	if !c.Enabled() {
		return Noop{}
	}
	return &KafkaPublisher{writer: c.NewWriter(topic)}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload any) error {
	msg, err := Message(key, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message encodes payload as a JSON Kafka message.
func Message(key string, payload any) (kafka.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()}, nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                               { return nil }
