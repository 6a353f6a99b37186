package service

import (
	"sort"
	"time"

	"caseflow/models"
)

// FailureAnalysisService aggregates batch errors into operational views. It is
// read-only over the error tables and computes everything at query time.
type FailureAnalysisService struct {
	batches BatchStore
	topN    int
}

// NewFailureAnalysisService creates a new failure analysis service
func NewFailureAnalysisService(batches BatchStore) *FailureAnalysisService {
	return &FailureAnalysisService{batches: batches, topN: 5}
}

// AnalyzeBatch breaks one batch's errors down by type, recurring message and
// input field. Empty batches yield zeroed sections, not an error.
func (s *FailureAnalysisService) AnalyzeBatch(batchID int64) (*models.BatchFailureAnalysis, error) {
	if _, err := s.batches.GetBatchByID(batchID); err != nil {
		return nil, err
	}
	batchErrors, err := s.batches.ListErrorsByBatch(batchID)
	if err != nil {
		return nil, err
	}

	analysis := &models.BatchFailureAnalysis{
		BatchID:         batchID,
		TotalErrors:     len(batchErrors),
		ByErrorType:     []models.ErrorTypeCount{},
		TopReasons:      []models.TopErrorReason{},
		FieldBreakdowns: []models.FieldErrorBreakdown{},
	}
	if len(batchErrors) == 0 {
		return analysis, nil
	}

	byType := make(map[models.ErrorType]int)
	byMessage := make(map[string]int)
	byField := make(map[string]map[string]int) // field -> message -> count
	for _, e := range batchErrors {
		byType[e.ErrorType]++
		byMessage[e.Message]++
		if e.FieldName.Valid {
			if byField[e.FieldName.String] == nil {
				byField[e.FieldName.String] = make(map[string]int)
			}
			byField[e.FieldName.String][e.Message]++
		}
	}

	for errorType, count := range byType {
		analysis.ByErrorType = append(analysis.ByErrorType, models.ErrorTypeCount{
			ErrorType: errorType,
			Count:     count,
		})
	}
	sort.Slice(analysis.ByErrorType, func(i, j int) bool {
		if analysis.ByErrorType[i].Count != analysis.ByErrorType[j].Count {
			return analysis.ByErrorType[i].Count > analysis.ByErrorType[j].Count
		}
		return analysis.ByErrorType[i].ErrorType < analysis.ByErrorType[j].ErrorType
	})

	for message, count := range byMessage {
		analysis.TopReasons = append(analysis.TopReasons, models.TopErrorReason{
			Message:    message,
			Count:      count,
			Percentage: float64(count) * 100 / float64(len(batchErrors)),
		})
	}
	sort.Slice(analysis.TopReasons, func(i, j int) bool {
		if analysis.TopReasons[i].Count != analysis.TopReasons[j].Count {
			return analysis.TopReasons[i].Count > analysis.TopReasons[j].Count
		}
		return analysis.TopReasons[i].Message < analysis.TopReasons[j].Message
	})
	if len(analysis.TopReasons) > s.topN {
		analysis.TopReasons = analysis.TopReasons[:s.topN]
	}

	for field, messages := range byField {
		total := 0
		common, commonCount := "", 0
		for message, count := range messages {
			total += count
			if count > commonCount || (count == commonCount && message < common) {
				common, commonCount = message, count
			}
		}
		analysis.FieldBreakdowns = append(analysis.FieldBreakdowns, models.FieldErrorBreakdown{
			FieldName:     field,
			Count:         total,
			CommonMessage: common,
		})
	}
	sort.Slice(analysis.FieldBreakdowns, func(i, j int) bool {
		if analysis.FieldBreakdowns[i].Count != analysis.FieldBreakdowns[j].Count {
			return analysis.FieldBreakdowns[i].Count > analysis.FieldBreakdowns[j].Count
		}
		return analysis.FieldBreakdowns[i].FieldName < analysis.FieldBreakdowns[j].FieldName
	})

	return analysis, nil
}

// Summary reports batch failure volumes across a date range with a per-day
// error trend.
func (s *FailureAnalysisService) Summary(from, to time.Time) (*models.FailureSummary, error) {
	counts, err := s.batches.GetRangeCounts(from, to)
	if err != nil {
		return nil, err
	}

	summary := &models.FailureSummary{
		From:              from,
		To:                to,
		BatchesProcessed:  counts.BatchesProcessed,
		BatchesWithErrors: counts.BatchesWithErrors,
		TotalErrors:       counts.TotalErrors,
		ByErrorType:       []models.ErrorTypeCount{},
		DailyTrend:        []models.DailyErrorCount{},
	}
	for errorType, count := range counts.ByErrorType {
		summary.ByErrorType = append(summary.ByErrorType, models.ErrorTypeCount{
			ErrorType: errorType,
			Count:     count,
		})
	}
	sort.Slice(summary.ByErrorType, func(i, j int) bool {
		if summary.ByErrorType[i].Count != summary.ByErrorType[j].Count {
			return summary.ByErrorType[i].Count > summary.ByErrorType[j].Count
		}
		return summary.ByErrorType[i].ErrorType < summary.ByErrorType[j].ErrorType
	})
	for date, errs := range counts.DailyErrors {
		summary.DailyTrend = append(summary.DailyTrend, models.DailyErrorCount{
			Date:   date,
			Errors: errs,
		})
	}
	sort.Slice(summary.DailyTrend, func(i, j int) bool {
		return summary.DailyTrend[i].Date < summary.DailyTrend[j].Date
	})
	return summary, nil
}
