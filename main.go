package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pricewatch-etl/internal/config"
	"pricewatch-etl/internal/etl"
	"pricewatch-etl/internal/fetch"
	"pricewatch-etl/internal/handlers"
	"pricewatch-etl/internal/ingest"
	"pricewatch-etl/internal/models"
	"pricewatch-etl/internal/observability/metrics"
	"pricewatch-etl/internal/storage"
)

// productStore is the store shape main needs: the pipeline's load side
// plus the sampling and readiness views layered on top.
type productStore interface {
	etl.Store
	ingest.Sampler
	handlers.Readiness
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Starting Pricewatch ETL Service")

	// Initialize components
	fetcher := fetch.NewHTTPFetcher(cfg, logger)

	var store productStore
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer pg.Close()
		store = pg
		logger.Info("Using PostgreSQL store")
	} else {
		store = storage.NewMemoryStore()
		logger.Info("No DATABASE_URL configured, using in-memory store")
	}

	pipeline := etl.NewPipeline(fetcher, store, logger)
	pipeline.SetQualityThreshold(cfg.QualityThreshold)

	providers := loadProviders(logger)
	service := ingest.NewService(pipeline, fetcher, providers, store, logger)

	collector := metrics.NewIngestionCollector()
	service.SetRunObserver(collector)

	// Initialize handlers
	handler := handlers.New(cfg, service, store, logger)

	// Setup Gin router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// Health endpoints
	router.GET("/healthz", handler.HealthCheck)
	router.GET("/readyz", handler.ReadinessCheck)

	// Ingestion endpoints
	router.POST("/ingest/run", handler.IngestProvider)
	router.POST("/ingest/scheduled", handler.RunScheduledIngestion)
	router.GET("/ingest/metrics", handler.GetIngestionMetrics)
	router.PUT("/ingest/schedule", handler.UpdateSchedule)

	// Provider validation endpoint
	router.POST("/providers/validate", handler.ValidateProvider)

	// Data quality endpoint
	router.GET("/quality/report", handler.GetQualityReport)

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// loadProviders reads the scheduled-provider list from the JSON file
// named by PROVIDERS_FILE. Missing file means no scheduled providers;
// ad-hoc ingestion via the API still works.
func loadProviders(logger *logrus.Logger) ingest.StaticProviders {
	path := os.Getenv("PROVIDERS_FILE")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to read providers file")
		return nil
	}

	var providers []models.ProviderConfig
	if err := json.Unmarshal(data, &providers); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to parse providers file")
		return nil
	}

	logger.WithField("providers", len(providers)).Info("Loaded provider configurations")
	return ingest.StaticProviders(providers)
}
