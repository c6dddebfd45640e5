package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
)

// WebhookClient posts lifecycle events to the downstream webhook
type WebhookClient struct {
	endpoint       string
	httpClient     *http.Client
	circuitBreaker *utils.CircuitBreaker

	mutex       sync.RWMutex
	connected   bool
	lastSuccess time.Time
	lastError   error
}

// webhookPayload is the body the webhook receives
type webhookPayload struct {
	EventType events.Type  `json:"event_type"`
	Data      events.Event `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewWebhookClient creates a client whose calls go through a named circuit breaker
func NewWebhookClient(endpoint string, timeout time.Duration) *WebhookClient {
	return &WebhookClient{
		endpoint:       endpoint,
		httpClient:     tracing.Client(&http.Client{Timeout: timeout}),
		circuitBreaker: utils.NewNamedCircuitBreaker("webhook", 5, 30*time.Second, utils.ExportState),
	}
}

// Deliver sends one event. Any non-2xx answer is a failure.
func (c *WebhookClient) Deliver(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(webhookPayload{EventType: event.Type, Data: event, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = c.circuitBreaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-ID", event.ID)
		req.Header.Set("X-Event-Type", string(event.Type))
		req.Header.Set("X-Property-ID", event.PropertyID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send event: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	})

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err != nil {
		c.lastError = err
		return err
	}
	c.connected = true
	c.lastSuccess = time.Now()
	c.lastError = nil
	return nil
}

// GetStatus returns the current connection status
func (c *WebhookClient) GetStatus() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	status := map[string]interface{}{
		"connected":     c.connected,
		"endpoint":      c.endpoint,
		"last_success":  c.lastSuccess,
		"circuit_state": c.circuitBreaker.GetState(),
	}
	if c.lastError != nil {
		status["last_error"] = c.lastError.Error()
	}
	return status
}

// Reset closes the circuit so the next event is attempted immediately
func (c *WebhookClient) Reset() {
	c.circuitBreaker.Reset()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lastError = nil
}
