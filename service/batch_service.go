package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"caseflow/metrics"
	"caseflow/models"
	"caseflow/parser"
	"caseflow/repository"
)

// BatchService runs uploaded files through validation and application. A batch
// either fails whole (bad header) or completes with per-row outcomes; one bad
// row never aborts the rest of the file.
type BatchService struct {
	batches    BatchStore
	cases      CaseDirectory
	agents     AgentDirectory
	allocation *AllocationService

	uploadBasePath string
	chunkSize      int
}

// NewBatchService creates a new batch service
func NewBatchService(batches BatchStore, cases CaseDirectory, agents AgentDirectory,
	allocation *AllocationService, uploadBasePath string, chunkSize int) *BatchService {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &BatchService{
		batches:        batches,
		cases:          cases,
		agents:         agents,
		allocation:     allocation,
		uploadBasePath: uploadBasePath,
		chunkSize:      chunkSize,
	}
}

// CreateUpload stores the uploaded file on disk and registers an UPLOADED
// batch for the worker to pick up. Processing is never done in the request
// path.
func (s *BatchService) CreateUpload(r io.Reader, fileName string, batchType models.BatchType, uploadedBy string) (*models.AllocationBatch, error) {
	switch batchType {
	case models.BatchTypeAllocation, models.BatchTypeReallocation, models.BatchTypeContactUpdate:
	default:
		return nil, fmt.Errorf("%w: unknown batch type %q", ErrInvalidRequest, batchType)
	}

	batchNumber := s.batches.GenerateBatchNumber()
	dir := filepath.Join(s.uploadBasePath, string(batchType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	filePath := filepath.Join(dir, batchNumber+".csv")

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	batch := &models.AllocationBatch{
		BatchNumber: batchNumber,
		BatchType:   batchType,
		FileName:    fileName,
		FilePath:    filePath,
		Status:      models.BatchStatusUploaded,
		UploadedBy:  uploadedBy,
	}
	if err := s.batches.CreateBatch(batch); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	log.Printf("[BATCH] Registered %s batch %s (%s) uploaded by %s", batchType, batchNumber, fileName, uploadedBy)
	return batch, nil
}

// GetBatch returns the current status of a batch.
func (s *BatchService) GetBatch(batchID int64) (*models.AllocationBatch, error) {
	return s.batches.GetBatchByID(batchID)
}

// GetErrors returns a batch's row errors ordered by row number.
func (s *BatchService) GetErrors(batchID int64) ([]models.BatchError, error) {
	return s.batches.ListErrorsByBatch(batchID)
}

// ProcessNext claims the oldest UPLOADED batch and processes it to a terminal
// status. Returns false when no batch was waiting.
func (s *BatchService) ProcessNext() (bool, error) {
	batch, err := s.batches.ClaimNextUploadedBatch()
	if err != nil {
		return false, err
	}
	if batch == nil {
		return false, nil
	}
	return true, s.ProcessBatch(batch)
}

// rowError is one validation or application failure tied to its input row.
type rowError struct {
	RowNumber int
	CaseID    int64 // 0 when the row never yielded a valid case id
	ErrorType models.ErrorType
	FieldName string
	Message   string
}

// ProcessBatch runs one claimed batch to a terminal status. Header failures
// fail the whole batch; row failures are recorded and skipped.
func (s *BatchService) ProcessBatch(batch *models.AllocationBatch) error {
	started := time.Now()
	log.Printf("[BATCH] Processing batch %d (%s, %s)", batch.BatchID, batch.BatchNumber, batch.BatchType)

	f, err := os.Open(batch.FilePath)
	if err != nil {
		return s.failBatch(batch, 0, fmt.Sprintf("upload file missing: %v", err))
	}
	defer f.Close()

	sc, err := parser.NewScanner(f, batch.BatchType)
	if err != nil {
		var headerErr *parser.HeaderError
		if errors.As(err, &headerErr) || errors.Is(err, parser.ErrEmptyFile) {
			return s.failBatch(batch, 0, err.Error())
		}
		return s.failBatch(batch, 0, fmt.Sprintf("unreadable file: %v", err))
	}

	total := 0
	successful := 0
	var rowErrors []rowError

	seen := make(map[int64]int) // case_id -> first row number
	sinceCheckpoint := 0
	for sc.Scan() {
		row := sc.Row()
		total++
		if rerr := s.applyRow(batch, row, seen); rerr != nil {
			rowErrors = append(rowErrors, *rerr)
			metrics.BatchRowsProcessed.WithLabelValues("failed").Inc()
		} else {
			successful++
			metrics.BatchRowsProcessed.WithLabelValues("succeeded").Inc()
		}
		sinceCheckpoint++
		if sinceCheckpoint >= s.chunkSize {
			// Checkpoint so status polls show progress on long files.
			if err := s.batches.UpdateBatchTotals(batch.BatchID, total, successful, len(rowErrors)); err != nil {
				log.Printf("[BATCH] Failed to checkpoint batch %d: %v", batch.BatchID, err)
			}
			sinceCheckpoint = 0
		}
	}
	if err := sc.Err(); err != nil {
		return s.failBatch(batch, total, fmt.Sprintf("unreadable file: %v", err))
	}

	for _, rerr := range rowErrors {
		s.recordError(batch.BatchID, rerr)
	}

	status := models.BatchStatusCompleted
	if len(rowErrors) > 0 {
		status = models.BatchStatusCompletedWithErrors
	}
	if err := s.batches.FinalizeBatch(batch.BatchID, status, total, successful, len(rowErrors)); err != nil {
		return fmt.Errorf("failed to finalize batch %d: %w", batch.BatchID, err)
	}

	metrics.BatchesCompleted.WithLabelValues(string(status)).Inc()
	metrics.BatchDurationSeconds.Observe(time.Since(started).Seconds())
	log.Printf("[BATCH] Batch %d done: %d total, %d succeeded, %d failed (%s)",
		batch.BatchID, total, successful, len(rowErrors), status)
	return nil
}

// failBatch marks a batch FAILED with a single row-1 error explaining why.
func (s *BatchService) failBatch(batch *models.AllocationBatch, total int, message string) error {
	s.recordError(batch.BatchID, rowError{
		RowNumber: 1,
		ErrorType: models.ErrorTypeValidation,
		Message:   message,
	})
	if err := s.batches.FinalizeBatch(batch.BatchID, models.BatchStatusFailed, total, 0, total); err != nil {
		return fmt.Errorf("failed to mark batch %d failed: %w", batch.BatchID, err)
	}
	metrics.BatchesCompleted.WithLabelValues(string(models.BatchStatusFailed)).Inc()
	log.Printf("[BATCH] Batch %d failed: %s", batch.BatchID, message)
	return nil
}

func (s *BatchService) recordError(batchID int64, rerr rowError) {
	e := &models.BatchError{
		BatchID:   batchID,
		RowNumber: rerr.RowNumber,
		ErrorType: rerr.ErrorType,
		Message:   rerr.Message,
	}
	if rerr.CaseID != 0 {
		e.CaseID.Int64 = rerr.CaseID
		e.CaseID.Valid = true
	}
	if rerr.FieldName != "" {
		e.FieldName.String = rerr.FieldName
		e.FieldName.Valid = true
	}
	if err := s.batches.InsertBatchError(e); err != nil {
		log.Printf("[BATCH] Failed to record error for batch %d row %d: %v", batchID, rerr.RowNumber, err)
		return
	}
	metrics.BatchErrorsTotal.WithLabelValues(string(rerr.ErrorType)).Inc()
}

// applyRow validates and applies one input row. Returns nil on success.
func (s *BatchService) applyRow(batch *models.AllocationBatch, row parser.Row, seen map[int64]int) *rowError {
	caseID, rerr := parseID(row, "case_id")
	if rerr != nil {
		return rerr
	}

	// Duplicate case ids within one file: first occurrence wins, later ones
	// are rejected at their own row number.
	if firstRow, dup := seen[caseID]; dup {
		return &rowError{
			RowNumber: row.Number,
			CaseID:    caseID,
			ErrorType: models.ErrorTypeDataIntegrity,
			FieldName: "case_id",
			Message:   fmt.Sprintf("duplicate case_id %d, first seen at row %d", caseID, firstRow),
		}
	}
	seen[caseID] = row.Number

	if _, err := s.cases.GetCaseByID(caseID); err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			return &rowError{
				RowNumber: row.Number,
				CaseID:    caseID,
				ErrorType: models.ErrorTypeDataIntegrity,
				FieldName: "case_id",
				Message:   fmt.Sprintf("case %d does not exist", caseID),
			}
		}
		return systemError(row.Number, caseID, err)
	}

	switch batch.BatchType {
	case models.BatchTypeAllocation:
		return s.applyAllocationRow(batch, row, caseID)
	case models.BatchTypeReallocation:
		return s.applyReallocationRow(batch, row, caseID)
	case models.BatchTypeContactUpdate:
		return s.applyContactRow(row, caseID)
	}
	return systemError(row.Number, caseID, fmt.Errorf("unknown batch type %q", batch.BatchType))
}

func (s *BatchService) applyAllocationRow(batch *models.AllocationBatch, row parser.Row, caseID int64) *rowError {
	agentID, rerr := parseID(row, "primary_agent_id")
	if rerr != nil {
		rerr.CaseID = caseID
		return rerr
	}
	if rerr := s.checkAgent(row.Number, caseID, "primary_agent_id", agentID); rerr != nil {
		return rerr
	}

	params := repository.AllocateParams{
		CaseID:         caseID,
		AgentID:        agentID,
		AllocationType: models.AllocationTypePrimary,
		Percentage:     100,
		Reason:         row.Get("remarks"),
		Actor:          batch.UploadedBy,
		BatchID:        &batch.BatchID,
	}

	if v := row.Get("secondary_agent_id"); v != "" {
		secondaryID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &rowError{
				RowNumber: row.Number,
				CaseID:    caseID,
				ErrorType: models.ErrorTypeValidation,
				FieldName: "secondary_agent_id",
				Message:   fmt.Sprintf("invalid secondary_agent_id %q", v),
			}
		}
		params.SecondaryAgentID = &secondaryID
		params.AllocationType = models.AllocationTypeSplit
	}
	if v := row.Get("allocation_percentage"); v != "" {
		pct, err := strconv.Atoi(v)
		if err != nil || pct <= 0 || pct > 100 {
			return &rowError{
				RowNumber: row.Number,
				CaseID:    caseID,
				ErrorType: models.ErrorTypeValidation,
				FieldName: "allocation_percentage",
				Message:   fmt.Sprintf("invalid allocation_percentage %q", v),
			}
		}
		params.Percentage = pct
	}

	if _, _, _, err := s.allocation.applyAllocation(params); err != nil {
		return allocationError(row.Number, caseID, err)
	}
	return nil
}

func (s *BatchService) applyReallocationRow(batch *models.AllocationBatch, row parser.Row, caseID int64) *rowError {
	currentID, rerr := parseID(row, "current_agent_id")
	if rerr != nil {
		rerr.CaseID = caseID
		return rerr
	}
	newID, rerr := parseID(row, "new_agent_id")
	if rerr != nil {
		rerr.CaseID = caseID
		return rerr
	}
	if rerr := s.checkAgent(row.Number, caseID, "new_agent_id", newID); rerr != nil {
		return rerr
	}

	// The stated current agent must actually own the case; a mismatch means
	// the upload was built from stale data.
	active, err := s.allocation.store.GetActiveAllocation(caseID)
	if err != nil {
		return systemError(row.Number, caseID, err)
	}
	if active == nil {
		return &rowError{
			RowNumber: row.Number,
			CaseID:    caseID,
			ErrorType: models.ErrorTypeBusinessRule,
			FieldName: "current_agent_id",
			Message:   fmt.Sprintf("case %d is not allocated", caseID),
		}
	}
	if active.PrimaryAgentID != currentID {
		return &rowError{
			RowNumber: row.Number,
			CaseID:    caseID,
			ErrorType: models.ErrorTypeBusinessRule,
			FieldName: "current_agent_id",
			Message: fmt.Sprintf("case %d is owned by agent %d, not %d",
				caseID, active.PrimaryAgentID, currentID),
		}
	}

	if _, _, _, err := s.allocation.applyAllocation(repository.AllocateParams{
		CaseID:  caseID,
		AgentID: newID,
		Reason:  row.Get("reallocation_reason"),
		Actor:   batch.UploadedBy,
		BatchID: &batch.BatchID,
	}); err != nil {
		return allocationError(row.Number, caseID, err)
	}
	return nil
}

func (s *BatchService) applyContactRow(row parser.Row, caseID int64) *rowError {
	update := &repository.ContactUpdate{
		CustomerName:    row.Get("customer_name"),
		MobileNumber:    row.Get("mobile_number"),
		AlternateMobile: row.Get("alternate_mobile"),
		Email:           row.Get("email"),
		AlternateEmail:  row.Get("alternate_email"),
		Address:         row.Get("address"),
		City:            row.Get("city"),
		State:           row.Get("state"),
		Pincode:         row.Get("pincode"),
	}
	if *update == (repository.ContactUpdate{}) {
		return &rowError{
			RowNumber: row.Number,
			CaseID:    caseID,
			ErrorType: models.ErrorTypeValidation,
			Message:   "row carries no contact fields to update",
		}
	}
	if err := s.cases.UpdateContact(caseID, update); err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			return &rowError{
				RowNumber: row.Number,
				CaseID:    caseID,
				ErrorType: models.ErrorTypeDataIntegrity,
				FieldName: "case_id",
				Message:   fmt.Sprintf("case %d does not exist", caseID),
			}
		}
		return systemError(row.Number, caseID, err)
	}
	return nil
}

func (s *BatchService) checkAgent(rowNumber int, caseID int64, field string, agentID int64) *rowError {
	agent, err := s.agents.GetAgentByID(agentID)
	if err != nil {
		if errors.Is(err, repository.ErrAgentNotFound) {
			return &rowError{
				RowNumber: rowNumber,
				CaseID:    caseID,
				ErrorType: models.ErrorTypeDataIntegrity,
				FieldName: field,
				Message:   fmt.Sprintf("agent %d does not exist", agentID),
			}
		}
		return systemError(rowNumber, caseID, err)
	}
	if !agent.IsActive {
		return &rowError{
			RowNumber: rowNumber,
			CaseID:    caseID,
			ErrorType: models.ErrorTypeBusinessRule,
			FieldName: field,
			Message:   fmt.Sprintf("agent %d is inactive", agentID),
		}
	}
	return nil
}

func parseID(row parser.Row, field string) (int64, *rowError) {
	v := row.Get(field)
	if v == "" {
		return 0, &rowError{
			RowNumber: row.Number,
			ErrorType: models.ErrorTypeValidation,
			FieldName: field,
			Message:   field + " is required",
		}
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &rowError{
			RowNumber: row.Number,
			ErrorType: models.ErrorTypeValidation,
			FieldName: field,
			Message:   fmt.Sprintf("invalid %s %q", field, v),
		}
	}
	return id, nil
}

// allocationError classifies an orchestrator failure. Broken references are
// data-integrity faults; inactive agents and exhausted capacity break business
// rules; anything else is a processing fault.
func allocationError(rowNumber int, caseID int64, err error) *rowError {
	switch {
	case errors.Is(err, repository.ErrCapacityExceeded), errors.Is(err, repository.ErrAgentInactive):
		return &rowError{RowNumber: rowNumber, CaseID: caseID,
			ErrorType: models.ErrorTypeBusinessRule, FieldName: "primary_agent_id", Message: err.Error()}
	case errors.Is(err, repository.ErrAgentNotFound):
		return &rowError{RowNumber: rowNumber, CaseID: caseID,
			ErrorType: models.ErrorTypeDataIntegrity, FieldName: "primary_agent_id", Message: err.Error()}
	case errors.Is(err, repository.ErrCaseNotFound):
		return &rowError{RowNumber: rowNumber, CaseID: caseID,
			ErrorType: models.ErrorTypeDataIntegrity, FieldName: "case_id", Message: err.Error()}
	case errors.Is(err, repository.ErrConflict):
		return &rowError{RowNumber: rowNumber, CaseID: caseID,
			ErrorType: models.ErrorTypeDataIntegrity, Message: err.Error()}
	default:
		return &rowError{RowNumber: rowNumber, CaseID: caseID,
			ErrorType: models.ErrorTypeProcessing, Message: err.Error()}
	}
}

func systemError(rowNumber int, caseID int64, err error) *rowError {
	return &rowError{
		RowNumber: rowNumber,
		CaseID:    caseID,
		ErrorType: models.ErrorTypeSystem,
		Message:   err.Error(),
	}
}

// ExportErrors writes a batch's row errors as CSV.
func (s *BatchService) ExportErrors(batchID int64, w io.Writer) error {
	if _, err := s.batches.GetBatchByID(batchID); err != nil {
		return err
	}
	batchErrors, err := s.batches.ListErrorsByBatch(batchID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"row_number", "case_id", "error_type", "field_name", "message"}); err != nil {
		return err
	}
	for _, e := range batchErrors {
		caseID := ""
		if e.CaseID.Valid {
			caseID = strconv.FormatInt(e.CaseID.Int64, 10)
		}
		record := []string{
			strconv.Itoa(e.RowNumber),
			caseID,
			string(e.ErrorType),
			e.FieldName.String,
			e.Message,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportBatch writes the original upload back out in canonical column order,
// so a corrected re-upload round-trips through the same parser.
func (s *BatchService) ExportBatch(batchID int64, w io.Writer) error {
	batch, err := s.batches.GetBatchByID(batchID)
	if err != nil {
		return err
	}
	f, err := os.Open(batch.FilePath)
	if err != nil {
		return fmt.Errorf("upload file missing: %w", err)
	}
	defer f.Close()

	sc, err := parser.NewScanner(f, batch.BatchType)
	if err != nil {
		return err
	}

	headers := parser.Headers(batch.BatchType)
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for sc.Scan() {
		row := sc.Row()
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = row.Get(h)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// RecoverStaleBatches fails batches stuck in PROCESSING past the threshold,
// typically after a crash mid-file. Safe to run repeatedly.
func (s *BatchService) RecoverStaleBatches(olderThan time.Duration) (int, error) {
	stale, err := s.batches.ListStaleProcessingBatches(olderThan)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, batch := range stale {
		s.recordError(batch.BatchID, rowError{
			RowNumber: 1,
			ErrorType: models.ErrorTypeSystem,
			Message:   fmt.Sprintf("processing did not finish within %s, batch marked failed", olderThan),
		})
		if err := s.batches.FinalizeBatch(batch.BatchID, models.BatchStatusFailed,
			batch.TotalCases, batch.SuccessfulAllocations, batch.FailedAllocations); err != nil {
			log.Printf("[BATCH] Failed to recover stale batch %d: %v", batch.BatchID, err)
			continue
		}
		metrics.BatchesCompleted.WithLabelValues(string(models.BatchStatusFailed)).Inc()
		log.Printf("[BATCH] Recovered stale batch %d (%s)", batch.BatchID, batch.BatchNumber)
		recovered++
	}
	return recovered, nil
}
