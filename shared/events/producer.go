package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned when the producer buffer is saturated
var ErrQueueFull = errors.New("event queue full, event dropped")

// ErrProducerClosed is returned after Close
var ErrProducerClosed = errors.New("event producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes lifecycle events through a bounded worker pool
type KafkaProducer struct {
	writer      messageWriter
	topic       string
	queue       chan Event
	workerCount int
	wg          sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// ProducerOptions tunes the worker pool
type ProducerOptions struct {
	QueueSize   int
	WorkerCount int
}

// NewKafkaProducer creates a producer writing to topic on the given brokers
func NewKafkaProducer(brokers []string, topic string, opts ProducerOptions) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{}, // same property, same partition
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireOne,
	}
	return newProducer(writer, topic, opts)
}

func newProducer(writer messageWriter, topic string, opts ProducerOptions) *KafkaProducer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 4
	}

	kp := &KafkaProducer{
		writer:      writer,
		topic:       topic,
		queue:       make(chan Event, opts.QueueSize),
		workerCount: opts.WorkerCount,
	}
	for i := 0; i < kp.workerCount; i++ {
		kp.wg.Add(1)
		go kp.worker(i)
	}
	logrus.WithFields(logrus.Fields{"topic": topic, "workers": kp.workerCount}).Info("Event producer started")
	return kp
}

// worker drains the queue until it is closed
func (kp *KafkaProducer) worker(id int) {
	defer kp.wg.Done()

	for event := range kp.queue {
		if err := kp.send(event); err != nil {
			metrics.ObservePublish(string(event.Type), "error")
			logrus.WithFields(logrus.Fields{
				"worker":   id,
				"event_id": event.ID,
				"type":     event.Type,
			}).WithError(err).Error("Failed to publish event")
			continue
		}
		metrics.ObservePublish(string(event.Type), "ok")
	}
}

// Publish queues an event without blocking. Drops are logged and counted.
func (kp *KafkaProducer) Publish(_ context.Context, event Event) {
	if err := kp.Enqueue(event); err != nil {
		metrics.ObservePublish(string(event.Type), "dropped")
		logrus.WithField("type", event.Type).WithError(err).Warn("Event not queued")
	}
}

// Enqueue is Publish with the failure reported to the caller
func (kp *KafkaProducer) Enqueue(event Event) error {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.closed {
		return ErrProducerClosed
	}

	select {
	case kp.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (kp *KafkaProducer) send(event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: kp.topic,
		Key:   []byte(event.PropertyID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	return nil
}

// Close stops accepting events, flushes the queue and closes the writer
func (kp *KafkaProducer) Close() error {
	kp.mu.Lock()
	if kp.closed {
		kp.mu.Unlock()
		return nil
	}
	kp.closed = true
	close(kp.queue)
	kp.mu.Unlock()

	kp.wg.Wait()

	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	logrus.Info("Event producer stopped")
	return nil
}
