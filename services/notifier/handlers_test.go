package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	err       error
	delivered []events.Event
}

func (s *stubSender) Deliver(_ context.Context, event events.Event) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, event)
	return nil
}

type stubFailures struct {
	err      error
	recorded []events.Event
	causes   []error
}

func (s *stubFailures) Record(_ context.Context, event events.Event, cause error) error {
	s.recorded = append(s.recorded, event)
	s.causes = append(s.causes, cause)
	return s.err
}

type stubStatus struct {
	status map[string]interface{}
	resets int
}

func (s *stubStatus) GetStatus() map[string]interface{} { return s.status }

func (s *stubStatus) Reset() { s.resets++ }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func paymentEvent() events.Event {
	return events.New(events.PaymentRecorded, "property-1", "payment-1", "manager-1", nil)
}

func TestForwardEventDelivers(t *testing.T) {
	sender := &stubSender{}
	failures := &stubFailures{}
	event := paymentEvent()

	require.NoError(t, forwardEvent(sender, failures, quietLogger())(context.Background(), event))

	require.Len(t, sender.delivered, 1)
	assert.Equal(t, event.ID, sender.delivered[0].ID)
	assert.Empty(t, failures.recorded)
}

func TestForwardEventParksFailures(t *testing.T) {
	cause := errors.New("webhook returned status 503")
	failures := &stubFailures{}
	event := paymentEvent()

	err := forwardEvent(&stubSender{err: cause}, failures, quietLogger())(context.Background(), event)

	require.NoError(t, err)
	require.Len(t, failures.recorded, 1)
	assert.Equal(t, event.ID, failures.recorded[0].ID)
	assert.Equal(t, cause, failures.causes[0])
}

func TestForwardEventReportsLostEvents(t *testing.T) {
	failures := &stubFailures{err: errors.New("database down")}
	event := paymentEvent()

	err := forwardEvent(&stubSender{err: errors.New("timeout")}, failures, quietLogger())(context.Background(), event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), event.ID)
}

func TestHealthIncludesWebhookStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(&stubStatus{status: map[string]interface{}{"connected": true, "endpoint": "http://hooks.local"}}, quietLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Webhook map[string]interface{} `json:"webhook"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, true, body.Data.Webhook["connected"])
	assert.Equal(t, "http://hooks.local", body.Data.Webhook["endpoint"])
}

func TestResetWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	control := &stubStatus{status: map[string]interface{}{"circuit_state": "closed"}}
	router := setupRouter(control, quietLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/reset", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, control.resets)
}
