package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/lifecycle"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/storage"
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const serviceName = "rental-service"

func main() {
	config.LoadEnv()
	logger := config.ConfigureLogging(serviceName)

	shutdownTracing, err := tracing.Init(context.Background(), serviceName, config.GetEnv("ENVIRONMENT", "development"))
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer shutdownTracing(context.Background())
	}

	// Redis backs the verified-claims cache and logout revocation
	if err := utils.InitRedis(); err != nil {
		logger.Warnf("Failed to connect to Redis, token cache disabled: %v", err)
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

	kafkaConfig := config.GetKafkaConfig("")
	producer := events.NewKafkaProducer(kafkaConfig.Brokers, kafkaConfig.Topic, events.ProducerOptions{
		QueueSize:   config.GetEnvInt("EVENT_QUEUE_SIZE", 1000),
		WorkerCount: config.GetEnvInt("EVENT_WORKERS", 4),
	})
	defer producer.Close()

	sess, err := session.NewSession(&aws.Config{Region: aws.String(authConfig.Region)})
	if err != nil {
		log.Fatal("Failed to create AWS session:", err)
	}
	store := storage.NewS3Store(sess, config.GetEnv("AGREEMENT_BUCKET", "rental-lease-agreements"))

	router := setupRouter(db, authMiddleware, producer, store, logger)

	port := config.ServicePort("RENTAL_SERVICE_PORT", "8003")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           tracing.Handler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Rental service starting on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to start rental service:", err)
	}
}

func setupRouter(db *gorm.DB, authMiddleware *middleware.AuthMiddleware, publisher events.Publisher,
	store storage.AgreementStore, logger *logrus.Entry) *gin.Engine {
	apps := lifecycle.NewApplicationManager(db, publisher)
	leases := lifecycle.NewLeaseManager(db, publisher)
	payments := lifecycle.NewPaymentLedger(db, publisher)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics(serviceName))

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Rental service is healthy", nil)
	})
	router.GET("/metrics", metrics.Handler())

	applications := router.Group("/applications")
	applications.Use(authMiddleware.RequireAuth())
	{
		applications.POST("", authMiddleware.RequireCapability(models.CapSubmitApplication), handleSubmitApplication(apps))
		applications.GET("", handleListApplications(apps))
		applications.GET("/:id", handleGetApplication(apps))
		applications.PUT("/:id/withdraw", authMiddleware.RequireCapability(models.CapWithdrawApplication), handleWithdrawApplication(apps))
		applications.PUT("/:id/status", authMiddleware.RequireCapability(models.CapDecideApplication), handleDecideApplication(apps))
	}

	leaseRoutes := router.Group("/leases")
	leaseRoutes.Use(authMiddleware.RequireAuth())
	{
		leaseRoutes.POST("", authMiddleware.RequireCapability(models.CapCreateLease), handleCreateLease(leases))
		leaseRoutes.GET("", handleListLeases(leases))
		leaseRoutes.GET("/:id", handleGetLease(leases))
		leaseRoutes.PUT("/:id/status", authMiddleware.RequireCapability(models.CapTransitionLease), handleTransitionLease(leases))
		leaseRoutes.POST("/:id/agreement", authMiddleware.RequireCapability(models.CapTransitionLease), handleAgreementUpload(leases, store))
	}

	paymentRoutes := router.Group("/payments")
	paymentRoutes.Use(authMiddleware.RequireAuth())
	{
		paymentRoutes.POST("", authMiddleware.RequireCapability(models.CapRecordPayment), handleRecordPayment(payments))
		paymentRoutes.GET("", handleListPayments(payments))
		paymentRoutes.GET("/:id", handleGetPayment(payments))
		paymentRoutes.PUT("/:id/status", authMiddleware.RequireCapability(models.CapUpdatePayment), handleUpdatePaymentStatus(payments))
	}

	return router
}
