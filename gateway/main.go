package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
)

const serviceName = "api-gateway"

func main() {
	config.LoadEnv()
	logger := config.ConfigureLogging(serviceName)

	shutdownTracing, err := tracing.Init(context.Background(), serviceName, config.GetEnv("ENVIRONMENT", "development"))
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer shutdownTracing(context.Background())
	}

	// Initialize Redis for the verified-claims cache
	if err := utils.InitRedis(); err != nil {
		logger.Warnf("Failed to connect to Redis, caching disabled: %v", err)
	}
	defer utils.CloseRedis()

	authMiddleware, err := middleware.NewAuthMiddleware(config.GetAuthConfig())
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	timeout := config.GetEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second)
	clients := &ServiceClients{
		Auth:          NewServiceClient("auth_service", config.GetEnv("AUTH_SERVICE_URL", "http://localhost:8001"), timeout),
		Property:      NewServiceClient("property_service", config.GetEnv("PROPERTY_SERVICE_URL", "http://localhost:8002"), timeout),
		Rental:        NewServiceClient("rental_service", config.GetEnv("RENTAL_SERVICE_URL", "http://localhost:8003"), timeout),
		Notifier:      NewServiceClient("notifier", config.GetEnv("NOTIFIER_URL", "http://localhost:8004"), 5*time.Second),
		RetryConsumer: NewServiceClient("retry_consumer", config.GetEnv("RETRY_CONSUMER_URL", "http://localhost:8005"), 5*time.Second),
	}

	limiter := NewRateLimiter(
		float64(config.GetEnvInt("RATE_LIMIT_RPS", 20)),
		config.GetEnvInt("RATE_LIMIT_BURST", 40),
		10*time.Minute,
	)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			limiter.Sweep(now)
		}
	}()

	router := setupRouter(clients, authMiddleware, limiter, config.GetEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}), logger)

	port := config.ServicePort("API_GATEWAY_PORT", "8080")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           tracing.Handler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("API Gateway starting on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to start API Gateway:", err)
	}
}

func setupRouter(clients *ServiceClients, authMiddleware *middleware.AuthMiddleware, limiter *RateLimiter,
	origins []string, logger *logrus.Entry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), CORS(origins), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics(serviceName))

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", nil)
	})
	router.GET("/health/services", func(c *gin.Context) {
		status, healthy := clients.GetServiceStatus()
		if !healthy {
			utils.SuccessResponse(c, http.StatusServiceUnavailable, "Some services are unhealthy", status)
			return
		}
		utils.OKResponse(c, "All services are healthy", status)
	})
	router.GET("/metrics", metrics.Handler())

	public := router.Group("")
	public.Use(authMiddleware.OptionalAuth(), limiter.Middleware())

	authed := router.Group("")
	authed.Use(authMiddleware.RequireAuth(), limiter.Middleware())

	// Authentication routes
	public.POST("/auth/register", clients.Auth.ProxyRequest)
	public.POST("/auth/login", clients.Auth.ProxyRequest)
	public.POST("/auth/refresh", clients.Auth.ProxyRequest)
	authed.GET("/auth/verify", clients.Auth.ProxyRequest)
	authed.POST("/auth/logout", clients.Auth.ProxyRequest)

	// Property browsing is public; listing management needs a manager
	public.GET("/properties", clients.Property.ProxyRequest)
	public.GET("/properties/nearby", clients.Property.ProxyRequest)
	public.GET("/properties/:id", clients.Property.ProxyRequest)
	authed.POST("/properties", authMiddleware.RequireCapability(models.CapManageProperties), clients.Property.ProxyRequest)
	authed.PUT("/properties/:id", authMiddleware.RequireCapability(models.CapManageProperties), clients.Property.ProxyRequest)

	// Profiles
	authed.GET("/tenants/:cognitoId", clients.Property.ProxyRequest)
	authed.PUT("/tenants/:cognitoId", clients.Property.ProxyRequest)
	authed.GET("/tenants/:cognitoId/current-residences", clients.Property.ProxyRequest)
	authed.POST("/tenants/:cognitoId/favorites/:propertyId", clients.Property.ProxyRequest)
	authed.DELETE("/tenants/:cognitoId/favorites/:propertyId", clients.Property.ProxyRequest)
	authed.GET("/managers/:cognitoId", clients.Property.ProxyRequest)
	authed.PUT("/managers/:cognitoId", clients.Property.ProxyRequest)
	authed.GET("/managers/:cognitoId/properties", clients.Property.ProxyRequest)

	// Applications, leases and payments
	authed.POST("/applications", clients.Rental.ProxyRequest)
	authed.GET("/applications", clients.Rental.ProxyRequest)
	authed.GET("/applications/:id", clients.Rental.ProxyRequest)
	authed.PUT("/applications/:id/withdraw", clients.Rental.ProxyRequest)
	authed.PUT("/applications/:id/status", clients.Rental.ProxyRequest)

	authed.POST("/leases", clients.Rental.ProxyRequest)
	authed.GET("/leases", clients.Rental.ProxyRequest)
	authed.GET("/leases/:id", clients.Rental.ProxyRequest)
	authed.PUT("/leases/:id/status", clients.Rental.ProxyRequest)
	authed.POST("/leases/:id/agreement", clients.Rental.ProxyRequest)

	authed.POST("/payments", clients.Rental.ProxyRequest)
	authed.GET("/payments", clients.Rental.ProxyRequest)
	authed.GET("/payments/:id", clients.Rental.ProxyRequest)
	authed.PUT("/payments/:id/status", clients.Rental.ProxyRequest)

	// Delivery observability
	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/deliveries/stats", proxyTo(clients.RetryConsumer, "/stats"))
	}

	return router
}

// proxyTo forwards to a fixed upstream path
func proxyTo(client *ServiceClient, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.URL.Path = path
		client.ProxyRequest(c)
	}
}
