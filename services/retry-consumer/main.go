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
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/tracing"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const serviceName = "retry-consumer"

func main() {
	config.LoadEnv()
	logger := config.ConfigureLogging(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	endpoint := config.GetEnv("WEBHOOK_ENDPOINT", "")
	if endpoint == "" {
		log.Fatal("WEBHOOK_ENDPOINT must be set")
	}
	client := delivery.NewWebhookClient(endpoint, config.GetEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second))
	retrier := delivery.NewRetrier(db, client)

	schedule := config.GetEnv("RETRY_SCHEDULE", "@every 30s")
	scheduler, err := newScheduler(ctx, schedule, retrier, logger)
	if err != nil {
		log.Fatal("Invalid RETRY_SCHEDULE:", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	port := config.ServicePort("RETRY_CONSUMER_PORT", "8005")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           tracing.Handler(setupRouter(retrier, schedule, logger), serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("Retry consumer starting on port %s (schedule %q)", port, schedule)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to start retry consumer:", err)
	}
}

// retryRunner is the part of the retrier driven by the schedule and the stats endpoint
type retryRunner interface {
	RunOnce(ctx context.Context) (int, error)
	GetStats(ctx context.Context) (delivery.Stats, error)
	Config() map[string]interface{}
}

// newScheduler runs one retry pass per tick; a pass still running when the next tick fires is skipped
func newScheduler(ctx context.Context, schedule string, retrier retryRunner, logger *logrus.Entry) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := scheduler.AddFunc(schedule, func() {
		attempted, err := retrier.RunOnce(ctx)
		if err != nil {
			logger.WithError(err).Error("Retry pass failed")
			return
		}
		if attempted > 0 {
			logger.WithField("attempted", attempted).Info("Retry pass finished")
		}
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

func setupRouter(retrier retryRunner, schedule string, logger *logrus.Entry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics(serviceName))

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Retry consumer is healthy", nil)
	})
	router.GET("/metrics", metrics.Handler())

	router.GET("/stats", func(c *gin.Context) {
		stats, err := retrier.GetStats(c.Request.Context())
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		cfg := retrier.Config()
		cfg["schedule"] = schedule
		utils.OKResponse(c, "Retry statistics", gin.H{
			"retry_stats": stats,
			"config":      cfg,
		})
	})

	return router
}
