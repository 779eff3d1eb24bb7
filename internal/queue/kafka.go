package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smukkama/energy-workshop/internal/events"
)

// Producer wraps a Kafka producer
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // Partition by key (team or batch)
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish sends a message to Kafka
func (p *Producer) Publish(ctx context.Context, msg kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// EventHeader carries the event type so consumers can filter without
// decoding the payload.
const EventHeader = "event_type"

// EventMessage wraps a live-update event in a Kafka message. Team events
// are keyed by team so that they stay ordered per team.
func EventMessage(e events.Event) (kafka.Message, error) {
	value, err := events.Encode(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event: %w", err)
	}

	key := "workshop"
	switch {
	case e.TeamID != 0:
		key = "team-" + strconv.Itoa(e.TeamID)
	case e.BatchID != "":
		key = "batch-" + e.BatchID
	}

	return kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: EventHeader, Value: []byte(e.Type)}},
		Time:    e.Timestamp,
	}, nil
}

// EventType reads the event type header of a message. It is empty when the
// message carries none.
func EventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == EventHeader {
			return string(h.Value)
		}
	}
	return ""
}

// EventProducer mirrors live-update events to a Kafka topic. It satisfies
// broadcast.Publisher; failures are logged and dropped.
type EventProducer struct {
	producer *Producer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEventProducer creates an event mirror on topic
func NewEventProducer(brokers []string, topic string, logger *slog.Logger) *EventProducer {
	return &EventProducer{
		producer: NewProducer(brokers, topic),
		timeout:  5 * time.Second,
		logger:   logger.With("component", "event-producer", "topic", topic),
	}
}

func (p *EventProducer) Broadcast(ctx context.Context, e events.Event) {
	msg, err := EventMessage(e)
	if err != nil {
		p.logger.Error("event dropped", "type", e.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.logger.Warn("event not mirrored", "type", e.Type, "error", err)
	}
}

func (p *EventProducer) Close() error {
	return p.producer.Close()
}

// Consumer wraps a Kafka consumer
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,    // 1 byte
			MaxBytes:       10e6, // 10MB
			CommitInterval: 0,    // Manual commit after processing
			StartOffset:    kafka.FirstOffset,
		}),
	}
}

// Consume reads messages from Kafka
func (c *Consumer) Consume(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

// Commit commits the message offsets
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Stats returns consumer statistics
func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// CreateTopic creates a Kafka topic with the specified number of partitions
func CreateTopic(brokers []string, topic string, numPartitions int, replicationFactor int) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     numPartitions,
			ReplicationFactor: replicationFactor,
		},
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}
