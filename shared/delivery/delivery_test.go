package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db))
	return db
}

func leaseEvent() events.Event {
	return events.New(events.LeaseStatusChanged, uuid.NewString(), uuid.NewString(), "manager-1", map[string]string{"status": "ACTIVE"}).
		WithStatus("PENDING", "ACTIVE")
}

type flakySender struct {
	failures int
	calls    int
}

func (s *flakySender) Deliver(context.Context, events.Event) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("webhook unavailable")
	}
	return nil
}

func TestWebhookDeliversEnvelope(t *testing.T) {
	var got webhookPayload
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL, time.Second)
	event := leaseEvent()

	require.NoError(t, client.Deliver(context.Background(), event))

	assert.Equal(t, events.LeaseStatusChanged, got.EventType)
	assert.Equal(t, event.ID, got.Data.ID)
	assert.Equal(t, "ACTIVE", got.Data.Status)
	assert.Equal(t, event.ID, headers.Get("X-Event-ID"))
	assert.Equal(t, string(events.LeaseStatusChanged), headers.Get("X-Event-Type"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))

	status := client.GetStatus()
	assert.Equal(t, true, status["connected"])
	assert.NotContains(t, status, "last_error")
}

func TestWebhookNon2xxIsFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL, time.Second)
	err := client.Deliver(context.Background(), leaseEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, err.Error(), client.GetStatus()["last_error"])
}

func TestBackoffDoubles(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(1))
	assert.Equal(t, 2*time.Minute, Backoff(2))
	assert.Equal(t, 4*time.Minute, Backoff(3))
	assert.Equal(t, 128*time.Minute, Backoff(8))
	assert.Equal(t, time.Minute, Backoff(0))
}

func TestRecordFailureSchedulesFirstRetry(t *testing.T) {
	db := testDB(t)
	event := leaseEvent()

	require.NoError(t, RecordFailure(context.Background(), db, event, errors.New("connection refused")))

	var stored models.FailedDelivery
	require.NoError(t, db.First(&stored, "event_id = ?", event.ID).Error)
	assert.Equal(t, models.DeliveryStatusPending, stored.Status)
	assert.Equal(t, string(events.LeaseStatusChanged), stored.EventType)
	assert.Equal(t, event.PropertyID, stored.PropertyID)
	assert.Equal(t, "connection refused", stored.ErrorMessage)
	require.NotNil(t, stored.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *stored.NextRetryAt, 10*time.Second)

	decoded, err := events.Decode(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, event.EntityID, decoded.EntityID)
}

func TestRetrierResolvesAfterRecovery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	event := leaseEvent()
	require.NoError(t, RecordFailure(ctx, db, event, errors.New("timeout")))

	sender := &flakySender{failures: 1}
	retrier := NewRetrier(db, sender)
	clock := time.Now().UTC().Add(time.Hour)
	retrier.now = func() time.Time { return clock }

	attempted, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	var stored models.FailedDelivery
	require.NoError(t, db.First(&stored, "event_id = ?", event.ID).Error)
	assert.Equal(t, models.DeliveryStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.WithinDuration(t, clock.Add(2*time.Minute), *stored.NextRetryAt, time.Second)

	// not due yet
	attempted, err = retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, attempted)

	clock = clock.Add(3 * time.Minute)
	attempted, err = retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	require.NoError(t, db.First(&stored, "event_id = ?", event.ID).Error)
	assert.Equal(t, models.DeliveryStatusResolved, stored.Status)
	assert.NotNil(t, stored.ResolvedAt)

	stats, err := retrier.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Resolved: 1}, stats)
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	event := leaseEvent()
	require.NoError(t, RecordFailure(ctx, db, event, errors.New("timeout")))

	sender := &flakySender{failures: 100}
	retrier := NewRetrier(db, sender)
	clock := time.Now().UTC()
	retrier.now = func() time.Time { return clock }

	for i := 0; i < DefaultMaxRetries; i++ {
		clock = clock.Add(6 * time.Hour)
		_, err := retrier.RunOnce(ctx)
		require.NoError(t, err)
	}

	var stored models.FailedDelivery
	require.NoError(t, db.First(&stored, "event_id = ?", event.ID).Error)
	assert.Equal(t, models.DeliveryStatusPermanentlyFailed, stored.Status)
	assert.Equal(t, DefaultMaxRetries, stored.RetryCount)
	assert.Contains(t, stored.ErrorMessage, "max retries reached")
	assert.Equal(t, DefaultMaxRetries, sender.calls)

	clock = clock.Add(6 * time.Hour)
	attempted, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, attempted)

	stats, err := retrier.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PermanentlyFailed)
}

func TestRetrierDropsUndecodablePayload(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Create(&models.FailedDelivery{
		EventID:      "broken",
		EventType:    "lease.created",
		Payload:      []byte(`{"type":""}`),
		ErrorMessage: "timeout",
		Status:       models.DeliveryStatusPending,
		NextRetryAt:  &past,
	}).Error)

	sender := &flakySender{}
	retrier := NewRetrier(db, sender)

	_, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sender.calls)

	var stored models.FailedDelivery
	require.NoError(t, db.First(&stored, "event_id = ?", "broken").Error)
	assert.Equal(t, models.DeliveryStatusPermanentlyFailed, stored.Status)
}

func TestWebhookCircuitOpensAndResets(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL, time.Second)
	for i := 0; i < 5; i++ {
		require.Error(t, client.Deliver(context.Background(), leaseEvent()))
	}

	err := client.Deliver(context.Background(), leaseEvent())
	assert.ErrorIs(t, err, utils.ErrCircuitOpen)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))

	client.Reset()
	assert.Equal(t, utils.StateClosed, client.GetStatus()["circuit_state"])
	require.Error(t, client.Deliver(context.Background(), leaseEvent()))
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}
