package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-plan-api/internal/models"
)

type flakyPlanWriter struct {
	mu       sync.Mutex
	failures int
	stored   []string
	calls    int
}

func (w *flakyPlanWriter) Create(_ context.Context, plan *models.StudyPlan) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.failures {
		return errors.New("connection reset")
	}
	w.stored = append(w.stored, plan.ID)
	return nil
}

func (w *flakyPlanWriter) snapshot() ([]string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.stored...), w.calls
}

func TestPlanHistoryServiceRetriesWrites(t *testing.T) {
	writer := &flakyPlanWriter{failures: 1}
	metrics := NewMetricsService()
	svc := NewPlanHistoryService(writer, metrics, nil, PlanHistoryConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	svc.Start(context.Background())

	require.NoError(t, svc.Record(&models.StudyPlan{ID: "plan-1", StudentID: "stu-1"}))
	require.Eventually(t, func() bool {
		stored, _ := writer.snapshot()
		return len(stored) == 1
	}, time.Second, 5*time.Millisecond)
	svc.Stop()

	stored, calls := writer.snapshot()
	assert.Equal(t, []string{"plan-1"}, stored)
	assert.Equal(t, 2, calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.historyWrites.WithLabelValues(historyOutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.historyWrites.WithLabelValues(historyOutcomeStored)))
}

func TestPlanHistoryServiceDiscardsAfterRetries(t *testing.T) {
	writer := &flakyPlanWriter{failures: 10}
	metrics := NewMetricsService()
	svc := NewPlanHistoryService(writer, metrics, nil, PlanHistoryConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond})
	svc.Start(context.Background())

	require.NoError(t, svc.Record(&models.StudyPlan{ID: "plan-1", StudentID: "stu-1"}))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.historyWrites.WithLabelValues(historyOutcomeDiscarded)) == 1
	}, time.Second, 5*time.Millisecond)
	svc.Stop()

	stored, calls := writer.snapshot()
	assert.Empty(t, stored)
	assert.Equal(t, 2, calls)
}

func TestPlanHistoryServiceRejectsWhenStopped(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewPlanHistoryService(&flakyPlanWriter{}, metrics, nil, PlanHistoryConfig{})

	assert.Error(t, svc.Record(&models.StudyPlan{ID: "plan-1"}))
	assert.Error(t, svc.Record(nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.historyWrites.WithLabelValues(historyOutcomeRejected)))
}
