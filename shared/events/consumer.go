package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// HandlerFunc processes one decoded event. Returning an error does not stop consumption.
type HandlerFunc func(ctx context.Context, event Event) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads lifecycle events for one consumer group
type Consumer struct {
	reader messageReader
}

// NewConsumer creates a consumer group reader on topic
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
	}
}

// Run blocks until ctx is cancelled, passing every decodable event to handle
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	log := logrus.WithField("component", "event-consumer")
	log.Info("Starting event consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.WithError(err).Error("Error reading event")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		event, err := Decode(msg.Value)
		if err != nil {
			log.WithError(err).WithField("offset", msg.Offset).Warn("Skipping undecodable event")
			continue
		}

		if err := handle(ctx, event); err != nil {
			log.WithFields(logrus.Fields{"event_id": event.ID, "type": event.Type}).
				WithError(err).Warn("Event handler failed")
		}
	}
}

// Decode parses a message value
func Decode(value []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return Event{}, fmt.Errorf("event missing id or type")
	}
	return event, nil
}

// Close closes the reader
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close event reader: %w", err)
	}
	return nil
}
