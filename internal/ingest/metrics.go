package ingest

import (
	"sync"
	"time"

	"pricewatch-etl/internal/models"
)

// errorLogSize bounds the recent-error ring.
const errorLogSize = 5

// Metrics holds the process-wide ingestion counters. It is an explicit
// object owned by the Service, guarded by its own mutex; folds happen
// once per completed provider task.
type Metrics struct {
	mu                    sync.Mutex
	totalIngestions       int
	successfulIngestions  int
	failedIngestions      int
	totalRecordsProcessed int
	totalProcessingMS     int64
	errorLog              []models.IngestionError
	startTime             time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RecordSuccess(recordsCount int, processingTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalIngestions++
	m.successfulIngestions++
	m.totalRecordsProcessed += recordsCount
	m.totalProcessingMS += processingTime.Milliseconds()
}

func (m *Metrics) RecordFailure(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalIngestions++
	m.failedIngestions++
	m.errorLog = append(m.errorLog, models.IngestionError{
		Timestamp: time.Now(),
		Message:   message,
	})
	if len(m.errorLog) > errorLogSize {
		m.errorLog = m.errorLog[len(m.errorLog)-errorLogSize:]
	}
}

func (m *Metrics) Snapshot() models.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	uptime := time.Since(m.startTime).Seconds()

	successRate := 0.0
	if m.totalIngestions > 0 {
		successRate = float64(m.successfulIngestions) / float64(m.totalIngestions)
	}

	averageMS := 0.0
	if m.successfulIngestions > 0 {
		averageMS = float64(m.totalProcessingMS) / float64(m.successfulIngestions)
	}

	recordsPerSecond := 0.0
	if uptime > 0 {
		recordsPerSecond = float64(m.totalRecordsProcessed) / uptime
	}

	recent := make([]models.IngestionError, len(m.errorLog))
	copy(recent, m.errorLog)

	return models.MetricsSnapshot{
		TotalIngestions:       m.totalIngestions,
		SuccessfulIngestions:  m.successfulIngestions,
		FailedIngestions:      m.failedIngestions,
		SuccessRate:           successRate,
		TotalRecordsProcessed: m.totalRecordsProcessed,
		AverageProcessingMS:   averageMS,
		UptimeSeconds:         uptime,
		RecordsPerSecond:      recordsPerSecond,
		RecentErrors:          recent,
	}
}
