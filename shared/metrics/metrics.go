package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"service", "method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "path"})

	lifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_lifecycle_transitions_total",
		Help: "Status changes applied to applications, leases and payments",
	}, []string{"entity", "from", "to"})

	lifecycleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_lifecycle_rejections_total",
		Help: "Lifecycle operations refused by an invariant, by error code",
	}, []string{"operation", "code"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_events_published_total",
		Help: "Lifecycle events handed to the broker, by result",
	}, []string{"type", "result"})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_webhook_deliveries_total",
		Help: "Webhook delivery attempts by source and result",
	}, []string{"source", "result"})

	pendingDeliveries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rental_failed_deliveries_pending",
		Help: "Failed deliveries waiting for a retry",
	})

	circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rental_circuit_breaker_open",
		Help: "1 when the named circuit breaker is open or half-open",
	}, []string{"name"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rental_gateway_rate_limited_total",
		Help: "Requests rejected by the gateway rate limiter",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(service, method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	httpRequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// ObserveTransition counts an applied status change
func ObserveTransition(entity, from, to string) {
	lifecycleTransitions.WithLabelValues(entity, from, to).Inc()
}

// ObserveRejection counts an operation refused with a taxonomy code
func ObserveRejection(operation, code string) {
	lifecycleRejections.WithLabelValues(operation, code).Inc()
}

// ObservePublish records the outcome of handing an event to the producer
func ObservePublish(eventType, result string) {
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

// ObserveDelivery records a webhook delivery attempt. source is "live" or "retry".
func ObserveDelivery(source, result string) {
	webhookDeliveries.WithLabelValues(source, result).Inc()
}

// SetPendingDeliveries sets the retry backlog gauge
func SetPendingDeliveries(count int64) {
	pendingDeliveries.Set(float64(count))
}

// ObserveCircuitState exports a breaker transition; matches utils.StateChangeFunc
func ObserveCircuitState(name string, _ string, to string) {
	open := 0.0
	if to != "closed" {
		open = 1
	}
	circuitState.WithLabelValues(name).Set(open)
}

// ObserveRateLimited counts a throttled request
func ObserveRateLimited() {
	rateLimited.Inc()
}

// Handler exposes the default registry for /metrics
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
