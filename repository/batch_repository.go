package repository

import (
	"database/sql"
	"fmt"
	"time"

	"caseflow/models"

	"github.com/google/uuid"
)

// BatchRepository handles database operations for upload batches, their
// per-row errors, and asynchronous reallocation jobs.
type BatchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// GenerateBatchNumber generates a unique batch number.
// Format: BATCH-YYYYMMDD-{UUID}
func (r *BatchRepository) GenerateBatchNumber() string {
	datePrefix := time.Now().UTC().Format("20060102")
	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("BATCH-%s-%s", datePrefix, uniqueID)
}

// GenerateJobID generates a unique reallocation job id.
// Format: JOB-YYYYMMDD-{UUID}
func (r *BatchRepository) GenerateJobID() string {
	datePrefix := time.Now().UTC().Format("20060102")
	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("JOB-%s-%s", datePrefix, uniqueID)
}

const batchColumns = `
	batch_id, batch_number, batch_type, file_name, file_path, total_cases,
	successful_allocations, failed_allocations, status, uploaded_by,
	created_at, processing_started_at, completed_at`

func scanBatch(row interface{ Scan(...interface{}) error }) (*models.AllocationBatch, error) {
	var b models.AllocationBatch
	err := row.Scan(
		&b.BatchID, &b.BatchNumber, &b.BatchType, &b.FileName, &b.FilePath,
		&b.TotalCases, &b.SuccessfulAllocations, &b.FailedAllocations, &b.Status,
		&b.UploadedBy, &b.CreatedAt, &b.ProcessingStartedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBatch records a newly uploaded file in status UPLOADED
func (r *BatchRepository) CreateBatch(batch *models.AllocationBatch) error {
	result, err := r.db.Exec(
		`INSERT INTO allocation_batches (batch_number, batch_type, file_name, file_path, status, uploaded_by)
		 VALUES (?, ?, ?, ?, 'UPLOADED', ?)`,
		batch.BatchNumber, batch.BatchType, batch.FileName, batch.FilePath, batch.UploadedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	batchID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get batch ID: %w", err)
	}
	batch.BatchID = batchID
	batch.Status = models.BatchStatusUploaded
	return nil
}

// GetBatchByID retrieves a batch by its ID
func (r *BatchRepository) GetBatchByID(batchID int64) (*models.AllocationBatch, error) {
	b, err := scanBatch(r.db.QueryRow(
		`SELECT `+batchColumns+` FROM allocation_batches WHERE batch_id = ?`, batchID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch %d: %w", batchID, ErrBatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

// ClaimNextUploadedBatch atomically moves one UPLOADED batch to PROCESSING and
// returns it, or nil when nothing is queued. The compare-and-swap on status
// keeps two workers from processing the same file.
func (r *BatchRepository) ClaimNextUploadedBatch() (*models.AllocationBatch, error) {
	var batchID int64
	err := r.db.QueryRow(
		`SELECT batch_id FROM allocation_batches WHERE status = 'UPLOADED' ORDER BY created_at ASC LIMIT 1`,
	).Scan(&batchID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find uploaded batch: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE allocation_batches
		 SET status = 'PROCESSING', processing_started_at = NOW()
		 WHERE batch_id = ? AND status = 'UPLOADED'`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil // another worker won the claim
	}
	return r.GetBatchByID(batchID)
}

// UpdateBatchTotals records row counts as processing progresses
func (r *BatchRepository) UpdateBatchTotals(batchID int64, total, successful, failed int) error {
	_, err := r.db.Exec(
		`UPDATE allocation_batches
		 SET total_cases = ?, successful_allocations = ?, failed_allocations = ?
		 WHERE batch_id = ?`,
		total, successful, failed, batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch totals: %w", err)
	}
	return nil
}

// FinalizeBatch writes the terminal status and final counts. The status guard
// keeps terminal states monotonic: a completed batch never changes again.
func (r *BatchRepository) FinalizeBatch(batchID int64, status models.BatchStatus, total, successful, failed int) error {
	result, err := r.db.Exec(
		`UPDATE allocation_batches
		 SET status = ?, total_cases = ?, successful_allocations = ?, failed_allocations = ?, completed_at = NOW()
		 WHERE batch_id = ? AND status IN ('UPLOADED', 'PROCESSING')`,
		status, total, successful, failed, batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("batch %d already in terminal state", batchID)
	}
	return nil
}

// ListStaleProcessingBatches finds batches stuck in PROCESSING longer than the
// given window, for the recovery pass.
func (r *BatchRepository) ListStaleProcessingBatches(olderThan time.Duration) ([]models.AllocationBatch, error) {
	rows, err := r.db.Query(
		`SELECT `+batchColumns+` FROM allocation_batches
		 WHERE status = 'PROCESSING' AND processing_started_at < ?
		 ORDER BY processing_started_at ASC`,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale batches: %w", err)
	}
	defer rows.Close()

	var batches []models.AllocationBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}

// InsertBatchError records one failed input row (write-once)
func (r *BatchRepository) InsertBatchError(e *models.BatchError) error {
	result, err := r.db.Exec(
		`INSERT INTO batch_errors (batch_id, row_number, case_id, error_type, field_name, message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.BatchID, e.RowNumber, e.CaseID, e.ErrorType, e.FieldName, e.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch error: %w", err)
	}
	errorID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get error ID: %w", err)
	}
	e.ErrorID = errorID
	return nil
}

// ListErrorsByBatch returns all failed rows for a batch in file order
func (r *BatchRepository) ListErrorsByBatch(batchID int64) ([]models.BatchError, error) {
	rows, err := r.db.Query(
		`SELECT error_id, batch_id, row_number, case_id, error_type, field_name, message, created_at
		 FROM batch_errors WHERE batch_id = ? ORDER BY row_number ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch errors: %w", err)
	}
	defer rows.Close()

	var errs []models.BatchError
	for rows.Next() {
		var e models.BatchError
		if err := rows.Scan(
			&e.ErrorID, &e.BatchID, &e.RowNumber, &e.CaseID, &e.ErrorType,
			&e.FieldName, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch error: %w", err)
		}
		errs = append(errs, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch errors: %w", err)
	}
	return errs, nil
}

// RangeCounts aggregates batch and error counts over a date range
type RangeCounts struct {
	BatchesProcessed  int
	BatchesWithErrors int
	TotalErrors       int
	ByErrorType       map[models.ErrorType]int
	DailyErrors       map[string]int // YYYY-MM-DD → count
}

// GetRangeCounts computes the date-range failure summary inputs
func (r *BatchRepository) GetRangeCounts(from, to time.Time) (*RangeCounts, error) {
	counts := &RangeCounts{
		ByErrorType: make(map[models.ErrorType]int),
		DailyErrors: make(map[string]int),
	}

	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(failed_allocations > 0), 0)
		 FROM allocation_batches
		 WHERE created_at >= ? AND created_at < ? AND status IN ('COMPLETED', 'COMPLETED_WITH_ERRORS', 'FAILED')`,
		from, to,
	).Scan(&counts.BatchesProcessed, &counts.BatchesWithErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}

	rows, err := r.db.Query(
		`SELECT e.error_type, DATE_FORMAT(e.created_at, '%Y-%m-%d'), COUNT(*)
		 FROM batch_errors e
		 WHERE e.created_at >= ? AND e.created_at < ?
		 GROUP BY e.error_type, DATE_FORMAT(e.created_at, '%Y-%m-%d')`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate errors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var errorType models.ErrorType
		var day string
		var count int
		if err := rows.Scan(&errorType, &day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan error aggregate: %w", err)
		}
		counts.ByErrorType[errorType] += count
		counts.DailyErrors[day] += count
		counts.TotalErrors += count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating error aggregates: %w", err)
	}
	return counts, nil
}

// CreateJob records a pending reallocation job
func (r *BatchRepository) CreateJob(job *models.ReallocationJob) error {
	_, err := r.db.Exec(
		`INSERT INTO reallocation_jobs (job_id, from_agent_id, to_agent_id, filter_json, reason, estimated_cases, status, requested_by)
		 VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?)`,
		job.JobID, job.FromAgentID, job.ToAgentID, job.FilterJSON, job.Reason,
		job.EstimatedCases, job.RequestedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create reallocation job: %w", err)
	}
	job.Status = models.JobStatusPending
	return nil
}

// GetJobByID retrieves a reallocation job
func (r *BatchRepository) GetJobByID(jobID string) (*models.ReallocationJob, error) {
	var j models.ReallocationJob
	err := r.db.QueryRow(
		`SELECT job_id, from_agent_id, to_agent_id, filter_json, reason, estimated_cases,
		        moved_cases, failed_cases, status, requested_by, error_message, created_at, completed_at
		 FROM reallocation_jobs WHERE job_id = ?`, jobID,
	).Scan(
		&j.JobID, &j.FromAgentID, &j.ToAgentID, &j.FilterJSON, &j.Reason, &j.EstimatedCases,
		&j.MovedCases, &j.FailedCases, &j.Status, &j.RequestedBy, &j.ErrorMessage,
		&j.CreatedAt, &j.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

// ClaimNextPendingJob atomically moves one PENDING job to RUNNING and returns
// it, or nil when nothing is queued.
func (r *BatchRepository) ClaimNextPendingJob() (*models.ReallocationJob, error) {
	var jobID string
	err := r.db.QueryRow(
		`SELECT job_id FROM reallocation_jobs WHERE status = 'PENDING' ORDER BY created_at ASC LIMIT 1`,
	).Scan(&jobID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending job: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE reallocation_jobs SET status = 'RUNNING' WHERE job_id = ? AND status = 'PENDING'`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return r.GetJobByID(jobID)
}

// CompleteJob writes the job's terminal state with reconciled counts
func (r *BatchRepository) CompleteJob(jobID string, moved, failed int, status models.JobStatus, errorMessage string) error {
	var nullMsg sql.NullString
	if errorMessage != "" {
		nullMsg = sql.NullString{String: errorMessage, Valid: true}
	}
	_, err := r.db.Exec(
		`UPDATE reallocation_jobs
		 SET moved_cases = ?, failed_cases = ?, status = ?, error_message = ?, completed_at = NOW()
		 WHERE job_id = ?`,
		moved, failed, status, nullMsg, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}
