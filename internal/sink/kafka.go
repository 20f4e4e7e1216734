package sink

import (
	"context"
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes trades and notifications to two topics, keyed by instrument
// and user so per-key ordering holds.
type Kafka struct {
	writer            MessageWriter
	tradeTopic        string
	notificationTopic string
}

// NewKafkaWriter builds a synchronous writer that hashes on the message key.
func NewKafkaWriter(brokers []string, writeTimeout time.Duration) *kafka.Writer {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: writeTimeout,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafka wraps writer. The writer must not have a fixed Topic.
func NewKafka(writer MessageWriter, tradeTopic, notificationTopic string) *Kafka {
	return &Kafka{writer: writer, tradeTopic: tradeTopic, notificationTopic: notificationTopic}
}

func (k *Kafka) RecordTrade(ctx context.Context, rec TradeRecord) error {
	return k.publish(ctx, k.tradeTopic, rec.Instrument, rec)
}

func (k *Kafka) Notify(ctx context.Context, n Notification) error {
	key := n.UserID
	if key == "" {
		key = n.TradeID
	}
	return k.publish(ctx, k.notificationTopic, key, n)
}

func (k *Kafka) publish(ctx context.Context, topic, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: payload, Time: time.Now()}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}
