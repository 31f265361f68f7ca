package ingest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordSuccess(10, 200*time.Millisecond)
	m.RecordSuccess(20, 400*time.Millisecond)
	m.RecordFailure("provider shop_a: data quality too low")

	snapshot := m.Snapshot()
	assert.Equal(t, 3, snapshot.TotalIngestions)
	assert.Equal(t, 2, snapshot.SuccessfulIngestions)
	assert.Equal(t, 1, snapshot.FailedIngestions)
	assert.InDelta(t, 2.0/3.0, snapshot.SuccessRate, 0.001)
	assert.Equal(t, 30, snapshot.TotalRecordsProcessed)
	assert.InDelta(t, 300.0, snapshot.AverageProcessingMS, 0.001)
	require.Len(t, snapshot.RecentErrors, 1)
	assert.Equal(t, "provider shop_a: data quality too low", snapshot.RecentErrors[0].Message)
}

func TestMetricsEmptySnapshot(t *testing.T) {
	m := NewMetrics()

	snapshot := m.Snapshot()
	assert.Equal(t, 0, snapshot.TotalIngestions)
	assert.Equal(t, 0.0, snapshot.SuccessRate)
	assert.Equal(t, 0.0, snapshot.AverageProcessingMS)
	assert.Empty(t, snapshot.RecentErrors)
}

func TestMetricsErrorLogBounded(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 8; i++ {
		m.RecordFailure(fmt.Sprintf("failure %d", i))
	}

	snapshot := m.Snapshot()
	assert.Equal(t, 8, snapshot.FailedIngestions)
	require.Len(t, snapshot.RecentErrors, errorLogSize)
	// Oldest entries are evicted first.
	assert.Equal(t, "failure 3", snapshot.RecentErrors[0].Message)
	assert.Equal(t, "failure 7", snapshot.RecentErrors[len(snapshot.RecentErrors)-1].Message)
}
