package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
)

// User context headers set by the gateway. Values sent by clients are always replaced.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// hopHeaders are connection-scoped and never forwarded
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// ServiceClient handles HTTP communication with one backend service
type ServiceClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// ServiceClients holds all service clients
type ServiceClients struct {
	Auth          *ServiceClient
	Property      *ServiceClient
	Rental        *ServiceClient
	Notifier      *ServiceClient
	RetryConsumer *ServiceClient
}

// NewServiceClient creates a client whose outgoing requests carry trace context
func NewServiceClient(name, baseURL string, timeout time.Duration) *ServiceClient {
	return &ServiceClient{
		name:       name,
		baseURL:    baseURL,
		httpClient: tracing.Client(&http.Client{Timeout: timeout}),
	}
}

// ProxyRequest forwards the request to the service and copies the answer back
func (sc *ServiceClient) ProxyRequest(c *gin.Context) {
	targetURL := sc.baseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	var body io.Reader
	if c.Request.Body != nil {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.BadRequestResponse(c, "Failed to read request body")
			return
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, body)
	if err != nil {
		utils.ErrorFromApp(c, apperrors.Internal(err, "failed to create upstream request"))
		return
	}

	for key, values := range c.Request.Header {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Del(HeaderUserID)
	req.Header.Del(HeaderUserEmail)
	req.Header.Del(HeaderUserRole)

	if userInfo, err := middleware.GetUserInfoFromContext(c); err == nil {
		req.Header.Set(HeaderUserID, userInfo.CognitoID)
		req.Header.Set(HeaderUserEmail, userInfo.Email)
		req.Header.Set(HeaderUserRole, string(userInfo.Role))
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}
	req.Header.Set("X-Forwarded-For", c.ClientIP())

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, apperrors.KindInternal, fmt.Sprintf("%s is unavailable", sc.name))
		return
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, apperrors.KindInternal, "Failed to read upstream response")
		return
	}

	for key, values := range resp.Header {
		if hopHeaders[key] || key == "Content-Length" || key == middleware.RequestIDHeader {
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), responseBody)
}

// HealthCheck checks if a service is healthy
func (sc *ServiceClient) HealthCheck() error {
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	return nil
}

func (scs *ServiceClients) all() []*ServiceClient {
	return []*ServiceClient{scs.Auth, scs.Property, scs.Rental, scs.Notifier, scs.RetryConsumer}
}

// GetServiceStatus checks every service in parallel. It reports whether all of them are healthy.
func (scs *ServiceClients) GetServiceStatus() (map[string]interface{}, bool) {
	clients := scs.all()
	results := make([]error, len(clients))

	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client *ServiceClient) {
			defer wg.Done()
			results[i] = client.HealthCheck()
		}(i, client)
	}
	wg.Wait()

	status := make(map[string]interface{}, len(clients))
	healthy := true
	for i, client := range clients {
		if results[i] != nil {
			healthy = false
			status[client.name] = map[string]interface{}{
				"healthy": false,
				"error":   results[i].Error(),
			}
			continue
		}
		status[client.name] = map[string]interface{}{"healthy": true}
	}
	return status, healthy
}
