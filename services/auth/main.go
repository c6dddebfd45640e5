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
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
)

const serviceName = "auth-service"

func main() {
	config.LoadEnv()
	logger := config.ConfigureLogging(serviceName)

	shutdownTracing, err := tracing.Init(context.Background(), serviceName, config.GetEnv("ENVIRONMENT", "development"))
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer shutdownTracing(context.Background())
	}

	// Redis backs logout revocation
	if err := utils.InitRedis(); err != nil {
		logger.Warnf("Failed to connect to Redis, logout disabled: %v", err)
	}
	defer utils.CloseRedis()

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	authConfig := config.GetAuthConfig()
	authMiddleware, err := middleware.NewAuthMiddleware(authConfig)
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	idp, err := newCognitoProvider(authConfig)
	if err != nil {
		log.Fatal("Failed to create AWS session:", err)
	}

	router := setupRouter(newAuthService(db, idp, authMiddleware, logger), logger)

	port := config.ServicePort("AUTH_SERVICE_PORT", "8001")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           tracing.Handler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Auth service starting on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to start auth service:", err)
	}
}

func setupRouter(svc *authService, logger *logrus.Entry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics(serviceName))

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Auth service is healthy", gin.H{
			"cognito_circuit": svc.circuitBreaker.GetState(),
		})
	})
	router.GET("/metrics", metrics.Handler())

	auth := router.Group("/auth")
	{
		auth.POST("/register", svc.handleRegister())
		auth.POST("/login", svc.handleLogin())
		auth.POST("/refresh", svc.handleRefreshToken())
		auth.GET("/verify", svc.auth.RequireAuth(), handleVerifyToken())
		auth.POST("/logout", svc.auth.RequireAuth(), handleLogout())
	}

	return router
}
