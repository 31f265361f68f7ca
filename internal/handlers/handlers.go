package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pricewatch-etl/internal/config"
	"pricewatch-etl/internal/ingest"
	"pricewatch-etl/internal/models"
)

// Readiness is the slice of the store the readiness check needs.
type Readiness interface {
	HasData() bool
	LastSaveTime() time.Time
}

type Handler struct {
	config  *config.Config
	service *ingest.Service
	store   Readiness
	logger  *logrus.Logger
}

func New(cfg *config.Config, service *ingest.Service, store Readiness, logger *logrus.Logger) *Handler {
	return &Handler{
		config:  cfg,
		service: service,
		store:   store,
		logger:  logger,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "pricewatch-etl",
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.store != nil && h.store.HasData() {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"has_data":    true,
			"last_ingest": h.store.LastSaveTime().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":   "not ready",
		"has_data": false,
		"message":  "No data ingested yet",
	})
}

// IngestProvider runs one ETL pipeline for the provider config in the
// request body. The run itself never fails; a failed run arrives as an
// error-status result.
func (h *Handler) IngestProvider(c *gin.Context) {
	var provider models.ProviderConfig
	if err := c.ShouldBindJSON(&provider); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid provider configuration: " + err.Error()})
		return
	}

	result := h.service.IngestFromProvider(c.Request.Context(), provider)
	c.JSON(http.StatusOK, result)
}

// RunScheduledIngestion triggers one pass over all active providers.
func (h *Handler) RunScheduledIngestion(c *gin.Context) {
	summary := h.service.RunScheduledIngestion(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetIngestionMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Metrics())
}

// ValidateProvider checks a provider config without ingesting it. The
// optional probe query runs a live connectivity test against the first
// product URL.
func (h *Handler) ValidateProvider(c *gin.Context) {
	var provider models.ProviderConfig
	if err := c.ShouldBindJSON(&provider); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid provider configuration: " + err.Error()})
		return
	}

	probe := c.Query("probe") == "true"
	validation := h.service.ValidateProviderConfig(c.Request.Context(), provider, probe)
	c.JSON(http.StatusOK, validation)
}

func (h *Handler) GetQualityReport(c *gin.Context) {
	providerID, err := strconv.Atoi(c.DefaultQuery("provider_id", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid provider_id"})
		return
	}

	result := h.service.RunQualityCheck(c.Request.Context(), providerID)
	c.JSON(http.StatusOK, result)
}

// UpdateSchedule replaces the scheduled-ingestion configuration.
func (h *Handler) UpdateSchedule(c *gin.Context) {
	var schedule models.ScheduleConfig
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule configuration: " + err.Error()})
		return
	}

	h.service.ConfigureSchedule(schedule)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
