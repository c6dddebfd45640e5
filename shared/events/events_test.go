package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	block    chan struct{}
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	messages []kafka.Message
	cancel   context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "rental-events", ProducerOptions{QueueSize: 10, WorkerCount: 2})

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Enqueue(New(LeaseCreated, "prop-1", "lease", "mgr", nil)))
	}
	require.NoError(t, p.Close())

	assert.Len(t, w.messages, 5)
	assert.True(t, w.closed)
	assert.Equal(t, "prop-1", string(w.messages[0].Key))
	assert.Equal(t, "rental-events", w.messages[0].Topic)
	assert.ErrorIs(t, p.Enqueue(New(LeaseCreated, "p", "l", "m", nil)), ErrProducerClosed)
}

func TestProducerDropsWhenFull(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	p := newProducer(w, "rental-events", ProducerOptions{QueueSize: 1, WorkerCount: 1})

	var full error
	for i := 0; i < 5 && full == nil; i++ {
		full = p.Enqueue(New(PaymentRecorded, "p", "pay", "m", nil))
	}
	assert.ErrorIs(t, full, ErrQueueFull)

	close(w.block)
	require.NoError(t, p.Close())
}

func TestEventRoundTripThroughConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWriter{}
	p := newProducer(w, "rental-events", ProducerOptions{QueueSize: 4, WorkerCount: 1})
	sent := New(ApplicationDecided, "prop-1", "app-1", "mgr-1", map[string]string{"status": "APPROVED"}).
		WithStatus("PENDING", "APPROVED")
	require.NoError(t, p.Enqueue(sent))
	require.NoError(t, p.Close())

	bad := kafka.Message{Value: []byte("{not json")}
	reader := &fakeReader{messages: []kafka.Message{bad, w.messages[0]}, cancel: cancel}
	c := &Consumer{reader: reader}

	var got []Event
	err := c.Run(ctx, func(_ context.Context, e Event) error {
		got = append(got, e)
		return errors.New("handler errors do not stop the loop")
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)
	assert.Equal(t, "PENDING", got[0].PreviousStatus)
	assert.JSONEq(t, `{"status":"APPROVED"}`, string(got[0].Payload))
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	_, err := Decode([]byte(`{"id":""}`))
	assert.Error(t, err)
}
