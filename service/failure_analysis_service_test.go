package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/models"
	"caseflow/repository"
)

func seedErrorBatch(t *testing.T, store *fakeStore) int64 {
	t.Helper()
	batch := &models.AllocationBatch{
		BatchNumber: store.GenerateBatchNumber(),
		BatchType:   models.BatchTypeAllocation,
		FileName:    "seed.csv",
		Status:      models.BatchStatusUploaded,
		UploadedBy:  "system",
	}
	require.NoError(t, store.CreateBatch(batch))

	seed := []models.BatchError{
		{RowNumber: 2, ErrorType: models.ErrorTypeBusinessRule, Message: "agent 9 does not exist"},
		{RowNumber: 3, ErrorType: models.ErrorTypeBusinessRule, Message: "agent 9 does not exist"},
		{RowNumber: 4, ErrorType: models.ErrorTypeBusinessRule, Message: "agent 7 is inactive"},
		{RowNumber: 5, ErrorType: models.ErrorTypeValidation, Message: "case_id is required"},
	}
	fields := []string{"primary_agent_id", "primary_agent_id", "primary_agent_id", "case_id"}
	for i := range seed {
		seed[i].BatchID = batch.BatchID
		seed[i].FieldName.String = fields[i]
		seed[i].FieldName.Valid = true
		require.NoError(t, store.InsertBatchError(&seed[i]))
	}
	require.NoError(t, store.FinalizeBatch(batch.BatchID, models.BatchStatusCompletedWithErrors, 10, 6, 4))
	return batch.BatchID
}

func TestAnalyzeBatchAggregates(t *testing.T) {
	store := newFakeStore()
	svc := NewFailureAnalysisService(store)
	batchID := seedErrorBatch(t, store)

	analysis, err := svc.AnalyzeBatch(batchID)
	require.NoError(t, err)
	assert.Equal(t, 4, analysis.TotalErrors)

	require.Len(t, analysis.ByErrorType, 2)
	assert.Equal(t, models.ErrorTypeBusinessRule, analysis.ByErrorType[0].ErrorType)
	assert.Equal(t, 3, analysis.ByErrorType[0].Count)
	assert.Equal(t, models.ErrorTypeValidation, analysis.ByErrorType[1].ErrorType)
	assert.Equal(t, 1, analysis.ByErrorType[1].Count)

	require.NotEmpty(t, analysis.TopReasons)
	assert.Equal(t, "agent 9 does not exist", analysis.TopReasons[0].Message)
	assert.Equal(t, 2, analysis.TopReasons[0].Count)
	assert.InDelta(t, 50.0, analysis.TopReasons[0].Percentage, 0.001)

	require.Len(t, analysis.FieldBreakdowns, 2)
	assert.Equal(t, "primary_agent_id", analysis.FieldBreakdowns[0].FieldName)
	assert.Equal(t, 3, analysis.FieldBreakdowns[0].Count)
	assert.Equal(t, "agent 9 does not exist", analysis.FieldBreakdowns[0].CommonMessage)
}

func TestAnalyzeBatchWithoutErrors(t *testing.T) {
	store := newFakeStore()
	svc := NewFailureAnalysisService(store)

	batch := &models.AllocationBatch{
		BatchNumber: store.GenerateBatchNumber(),
		Status:      models.BatchStatusUploaded,
	}
	require.NoError(t, store.CreateBatch(batch))

	analysis, err := svc.AnalyzeBatch(batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 0, analysis.TotalErrors)
	assert.Empty(t, analysis.ByErrorType)
	assert.Empty(t, analysis.TopReasons)
	assert.Empty(t, analysis.FieldBreakdowns)
}

func TestAnalyzeBatchUnknownBatch(t *testing.T) {
	svc := NewFailureAnalysisService(newFakeStore())
	_, err := svc.AnalyzeBatch(42)
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
}

func TestTopReasonsCappedAtFive(t *testing.T) {
	store := newFakeStore()
	svc := NewFailureAnalysisService(store)

	batch := &models.AllocationBatch{BatchNumber: store.GenerateBatchNumber(), Status: models.BatchStatusUploaded}
	require.NoError(t, store.CreateBatch(batch))
	messages := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i, m := range messages {
		require.NoError(t, store.InsertBatchError(&models.BatchError{
			BatchID:   batch.BatchID,
			RowNumber: i + 2,
			ErrorType: models.ErrorTypeValidation,
			Message:   m,
		}))
	}

	analysis, err := svc.AnalyzeBatch(batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 7, analysis.TotalErrors)
	assert.Len(t, analysis.TopReasons, 5)
}

func TestSummaryOverDateRange(t *testing.T) {
	store := newFakeStore()
	svc := NewFailureAnalysisService(store)
	seedErrorBatch(t, store)

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(time.Hour)
	summary, err := svc.Summary(from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.BatchesProcessed)
	assert.Equal(t, 1, summary.BatchesWithErrors)
	assert.Equal(t, 4, summary.TotalErrors)
	require.Len(t, summary.ByErrorType, 2)
	assert.Equal(t, models.ErrorTypeBusinessRule, summary.ByErrorType[0].ErrorType)
	require.Len(t, summary.DailyTrend, 1)
	assert.Equal(t, 4, summary.DailyTrend[0].Errors)
	assert.Equal(t, time.Now().Format("2006-01-02"), summary.DailyTrend[0].Date)
}

func TestSummaryEmptyRange(t *testing.T) {
	svc := NewFailureAnalysisService(newFakeStore())
	summary, err := svc.Summary(time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.BatchesProcessed)
	assert.Empty(t, summary.DailyTrend)
}
