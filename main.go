package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zargham101/wildfire-backend/common/logger"
	"github.com/zargham101/wildfire-backend/controllers"
	"github.com/zargham101/wildfire-backend/database"
	"github.com/zargham101/wildfire-backend/kafka"
	"github.com/zargham101/wildfire-backend/middleware"
	"github.com/zargham101/wildfire-backend/models"
	"github.com/zargham101/wildfire-backend/repository"
	"github.com/zargham101/wildfire-backend/routes"
	"github.com/zargham101/wildfire-backend/services"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	logger.Initialize(cfg.Environment)
	log := logger.Log
	defer log.Sync()

	// --- Stores ---
	ddbClient, err := database.NewDynamoClient(context.Background(), database.DynamoConfig{
		Region:    cfg.DynamoRegion,
		Endpoint:  cfg.DynamoEndpoint,
		AccessKey: cfg.DynamoAccessKey,
		SecretKey: cfg.DynamoSecretKey,
	})
	if err != nil {
		log.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}

	db, err := database.ConnectPostgres(database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}, log, &models.ResourceRequest{}, &models.RequestTransition{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	mongoClient, mongoDB, err := database.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}()

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	responseCache := database.NewResponseCache(redisClient, 24*time.Hour)

	// --- Eventing (optional) ---
	var producer kafka.ProducerAPI
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer p.Close()
		producer = p
	} else {
		log.Warn("KAFKA_BROKERS not set, lifecycle events disabled")
	}

	// --- Service wiring ---
	inventoryRepo := repository.NewDynamoAgencyInventoryRepository(ddbClient, cfg.DynamoTable)
	requestRepo := repository.NewGormRequestRepository(db)
	predictionRepo := repository.NewMongoPredictionRepository(mongoDB, cfg.MongoPredictions)

	allocationService := services.NewAllocationService(inventoryRepo, producer, log)
	inventoryService := services.NewInventoryService(inventoryRepo, producer, log)
	requestService := services.NewRequestService(
		requestRepo, predictionRepo, inventoryService, allocationService, responseCache, producer, log)

	requestController := controllers.NewRequestController(requestService)
	inventoryController := controllers.NewInventoryController(inventoryService)

	// --- HTTP router ---
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimitMiddleware())
	r.Use(middlewareTimeout(30 * time.Second))
	r.Use(logger.RequestLogger())

	routes.Register(r, requestController, inventoryController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Info("Allocation Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Allocation Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Allocation Service stopped gracefully")
}

func middlewareTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
