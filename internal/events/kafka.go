package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultKafkaWriteTimeout bounds a single message write, retries included.
const DefaultKafkaWriteTimeout = 10 * time.Second

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event as one message keyed by wallet.
// Publish only enqueues; a single worker writes in order, so events for
// a wallet reach the topic in the order they were published. Write
// failures are logged.
type KafkaPublisher struct {
	writer       MessageWriter
	logger       *zap.Logger
	writeTimeout time.Duration
	queue        *queue
	closeOnce    sync.Once
	closeErr     error
}

// NewKafkaPublisher creates a producer for topic that waits for all
// in-sync replicas to acknowledge each write.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(w, logger, DefaultQueueSize, DefaultKafkaWriteTimeout)
}

func newKafkaPublisher(w MessageWriter, logger *zap.Logger, queueSize int, writeTimeout time.Duration) *KafkaPublisher {
	p := &KafkaPublisher{
		writer:       w,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
	p.queue = newQueue(queueSize, 1, p.write)
	return p
}

// Publish encodes ev and queues it. It does not wait for the broker.
func (p *KafkaPublisher) Publish(_ context.Context, ev OfferEvent) error {
	value, err := Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if err := p.queue.push(message{eventType: ev.Type, key: ev.Key(), body: value}); err != nil {
		return fmt.Errorf("queue %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) write(m message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.key),
		Value: m.body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(m.eventType)},
		},
	})
	if err != nil {
		p.logger.Warn("kafka write failed",
			zap.String("event", m.eventType),
			zap.String("wallet", m.key),
			zap.Error(err),
		)
	}
}

// Close writes the queued backlog, then closes the writer.
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.queue.close()
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}
