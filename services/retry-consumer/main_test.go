package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/delivery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetrier struct {
	runs     int32
	stats    delivery.Stats
	statsErr error
}

func (f *fakeRetrier) RunOnce(context.Context) (int, error) {
	atomic.AddInt32(&f.runs, 1)
	return 0, nil
}

func (f *fakeRetrier) GetStats(context.Context) (delivery.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeRetrier) Config() map[string]interface{} {
	return map[string]interface{}{"max_retries": 8}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSchedulerRunsRetryPasses(t *testing.T) {
	retrier := &fakeRetrier{}
	scheduler, err := newScheduler(context.Background(), "@every 1s", retrier, quietLogger())
	require.NoError(t, err)

	scheduler.Start()
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&retrier.runs) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := newScheduler(context.Background(), "every now and then", &fakeRetrier{}, quietLogger())
	assert.Error(t, err)
}

func TestStatsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	retrier := &fakeRetrier{stats: delivery.Stats{Pending: 2, Resolved: 5, PermanentlyFailed: 1}}
	router := setupRouter(retrier, "@every 30s", quietLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			RetryStats delivery.Stats         `json:"retry_stats"`
			Config     map[string]interface{} `json:"config"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, retrier.stats, body.Data.RetryStats)
	assert.Equal(t, "@every 30s", body.Data.Config["schedule"])
	assert.Equal(t, float64(8), body.Data.Config["max_retries"])
}

func TestStatsEndpointStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(&fakeRetrier{statsErr: errors.New("connection refused")}, "@every 30s", quietLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
