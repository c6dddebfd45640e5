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
	"gorm.io/gorm"
)

const serviceName = "property-service"

func main() {
	config.LoadEnv()
	logger := config.ConfigureLogging(serviceName)

	shutdownTracing, err := tracing.Init(context.Background(), serviceName, config.GetEnv("ENVIRONMENT", "development"))
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer shutdownTracing(context.Background())
	}

	// Property details are cached; the service still works without Redis
	if err := utils.InitRedis(); err != nil {
		logger.Warnf("Failed to connect to Redis, caching disabled: %v", err)
	}
	defer utils.CloseRedis()

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	authMiddleware, err := middleware.NewAuthMiddleware(config.GetAuthConfig())
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	router := setupRouter(db, authMiddleware, logger)

	port := config.ServicePort("PROPERTY_SERVICE_PORT", "8002")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           tracing.Handler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Property service starting on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to start property service:", err)
	}
}

func setupRouter(db *gorm.DB, authMiddleware *middleware.AuthMiddleware, logger *logrus.Entry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics(serviceName))

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Property service is healthy", nil)
	})
	router.GET("/metrics", metrics.Handler())

	// Browsing is public
	properties := router.Group("/properties")
	{
		properties.GET("", handleListProperties(db))
		properties.GET("/nearby", handleNearbyProperties(db))
		properties.GET("/:id", handleGetProperty(db))

		manage := properties.Group("")
		manage.Use(authMiddleware.RequireAuth(), authMiddleware.RequireCapability(models.CapManageProperties))
		manage.POST("", handleCreateProperty(db))
		manage.PUT("/:id", handleUpdateProperty(db))
	}

	tenants := router.Group("/tenants/:cognitoId")
	tenants.Use(authMiddleware.RequireAuth())
	{
		tenants.GET("", handleGetTenant(db))
		tenants.PUT("", handleUpdateTenant(db))
		tenants.GET("/current-residences", handleCurrentResidences(db))
		tenants.POST("/favorites/:propertyId", authMiddleware.RequireCapability(models.CapManageFavorites), handleAddFavorite(db))
		tenants.DELETE("/favorites/:propertyId", authMiddleware.RequireCapability(models.CapManageFavorites), handleRemoveFavorite(db))
	}

	managers := router.Group("/managers/:cognitoId")
	managers.Use(authMiddleware.RequireAuth())
	{
		managers.GET("", handleGetManager(db))
		managers.PUT("", handleUpdateManager(db))
		managers.GET("/properties", handleManagerProperties(db))
	}

	return router
}
