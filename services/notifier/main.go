package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/delivery"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/sirupsen/logrus"
)

const serviceName = "notifier"

func main() {
	config.LoadEnv()
	logger := config.ConfigureLogging(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, serviceName, config.GetEnv("ENVIRONMENT", "development"))
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer shutdownTracing(context.Background())
	}

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	endpoint := config.GetEnv("WEBHOOK_ENDPOINT", "")
	if endpoint == "" {
		log.Fatal("WEBHOOK_ENDPOINT must be set")
	}
	client := delivery.NewWebhookClient(endpoint, config.GetEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second))

	kafkaConfig := config.GetKafkaConfig(config.GetEnv("KAFKA_GROUP_ID", serviceName))
	consumer := events.NewConsumer(kafkaConfig.Brokers, kafkaConfig.Topic, kafkaConfig.GroupID)
	defer consumer.Close()

	go func() {
		if err := consumer.Run(ctx, forwardEvent(client, &failureStore{db: db}, logger)); err != nil {
			logger.WithError(err).Error("Event consumer stopped")
			stop()
		}
	}()

	port := config.ServicePort("NOTIFIER_PORT", "8004")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           tracing.Handler(setupRouter(client, logger), serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("Notifier starting on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to start notifier:", err)
	}
}

// webhookControl exposes the webhook connection state to operators
type webhookControl interface {
	GetStatus() map[string]interface{}
	Reset()
}

func setupRouter(client webhookControl, logger *logrus.Entry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics(serviceName))

	router.GET("/health", handleHealth(client))
	router.GET("/metrics", metrics.Handler())
	router.POST("/webhook/reset", handleResetWebhook(client))
	return router
}
