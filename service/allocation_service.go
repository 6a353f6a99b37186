package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"caseflow/metrics"
	"caseflow/models"
	"caseflow/repository"
)

// AllocationService is the orchestrator for all ownership changes. It is the
// only component that mutates case allocations, and every mutation leaves a
// matching ledger entry behind.
type AllocationService struct {
	store  AllocationStore
	agents AgentDirectory
	jobs   BatchStore
}

// NewAllocationService creates a new allocation service
func NewAllocationService(store AllocationStore, agents AgentDirectory, jobs BatchStore) *AllocationService {
	return &AllocationService{
		store:  store,
		agents: agents,
		jobs:   jobs,
	}
}

// Allocate assigns one case to an agent. If the case is already owned by the
// same agent the call is a no-op returning the existing allocation; if it is
// owned elsewhere, the move is atomic and recorded as a single REALLOCATE.
func (s *AllocationService) Allocate(req *models.AllocateRequest, actor string) (*models.AllocateResponse, error) {
	if req.CaseID == 0 {
		return nil, fmt.Errorf("%w: case_id is required", ErrInvalidRequest)
	}
	if req.AgentID == 0 {
		return nil, fmt.Errorf("%w: agent_id is required", ErrInvalidRequest)
	}

	allocType := models.AllocationTypePrimary
	if req.AllocationType != "" {
		allocType = models.AllocationType(req.AllocationType)
		if allocType != models.AllocationTypePrimary && allocType != models.AllocationTypeSplit {
			return nil, fmt.Errorf("%w: unknown allocation_type %q", ErrInvalidRequest, req.AllocationType)
		}
	}
	if allocType == models.AllocationTypeSplit && req.SecondaryAgentID == nil {
		return nil, fmt.Errorf("%w: split allocation requires secondary_agent_id", ErrInvalidRequest)
	}

	percentage := 100
	if req.Percentage != nil {
		if *req.Percentage <= 0 || *req.Percentage > 100 {
			return nil, fmt.Errorf("%w: percentage must be in (0, 100]", ErrInvalidRequest)
		}
		percentage = *req.Percentage
	}

	alloc, reallocated, noop, err := s.applyAllocation(repository.AllocateParams{
		CaseID:           req.CaseID,
		AgentID:          req.AgentID,
		SecondaryAgentID: req.SecondaryAgentID,
		AllocationType:   allocType,
		Percentage:       percentage,
		Reason:           req.Reason,
		Actor:            actor,
	})
	if err != nil {
		return nil, err
	}

	return &models.AllocateResponse{
		Allocation:  alloc,
		Reallocated: reallocated,
		NoOp:        noop,
	}, nil
}

// applyAllocation wraps the store mutation with ledger-action metrics so
// single-case, rule-driven and batch-driven allocations all count the same
// way.
func (s *AllocationService) applyAllocation(p repository.AllocateParams) (*models.CaseAllocation, bool, bool, error) {
	alloc, reallocated, noop, err := s.store.Allocate(p)
	switch {
	case err != nil:
		if errors.Is(err, repository.ErrConflict) {
			metrics.AllocationConflictsTotal.Inc()
		}
	case noop:
		// Same owner; nothing moved, nothing logged to the ledger.
	case reallocated:
		metrics.AllocationsTotal.WithLabelValues(string(models.ActionReallocate)).Inc()
	default:
		metrics.AllocationsTotal.WithLabelValues(string(models.ActionAllocate)).Inc()
	}
	return alloc, reallocated, noop, err
}

// GetAllocation returns the current allocation of a case, or ErrNotAllocated.
func (s *AllocationService) GetAllocation(caseID int64) (*models.CaseAllocation, error) {
	alloc, err := s.store.GetActiveAllocation(caseID)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, fmt.Errorf("case %d: %w", caseID, repository.ErrNotAllocated)
	}
	return alloc, nil
}

// GetHistory returns the ownership ledger of a case, newest first.
func (s *AllocationService) GetHistory(caseID int64) ([]models.AllocationHistory, error) {
	return s.store.GetHistory(caseID)
}

// Deallocate removes the active allocation of a single case.
func (s *AllocationService) Deallocate(caseID int64, reason, actor string) error {
	if err := s.store.Deallocate(caseID, reason, actor, nil); err != nil {
		return err
	}
	metrics.AllocationsTotal.WithLabelValues(string(models.ActionDeallocate)).Inc()
	return nil
}

// BulkDeallocate processes each case independently and reports per-case
// outcomes; one bad id never fails the rest of the batch.
func (s *AllocationService) BulkDeallocate(caseIDs []int64, reason, actor string) *models.BulkDeallocateResponse {
	resp := &models.BulkDeallocateResponse{Total: len(caseIDs)}
	for _, caseID := range caseIDs {
		outcome := models.BulkOutcome{CaseID: caseID, Success: true}
		if err := s.store.Deallocate(caseID, reason, actor, nil); err != nil {
			outcome.Success = false
			outcome.Message = err.Error()
			resp.Failed++
		} else {
			metrics.AllocationsTotal.WithLabelValues(string(models.ActionDeallocate)).Inc()
			resp.Succeeded++
		}
		resp.Outcomes = append(resp.Outcomes, outcome)
	}
	return resp
}

// RequestReallocationByAgent queues an async job moving every active case of
// one agent to another. The returned estimate is reconciled against the actual
// count in the job's terminal status.
func (s *AllocationService) RequestReallocationByAgent(req *models.ReallocateByAgentRequest, actor string) (*models.JobAcceptedResponse, error) {
	if req.FromAgentID == 0 || req.ToAgentID == 0 {
		return nil, fmt.Errorf("%w: from_agent_id and to_agent_id are required", ErrInvalidRequest)
	}
	if req.FromAgentID == req.ToAgentID {
		return nil, fmt.Errorf("%w: source and target agent are the same", ErrInvalidRequest)
	}
	target, err := s.agents.GetAgentByID(req.ToAgentID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, fmt.Errorf("agent %d: %w", req.ToAgentID, repository.ErrAgentInactive)
	}

	caseIDs, err := s.store.ListActiveCaseIDsByAgent(req.FromAgentID)
	if err != nil {
		return nil, err
	}

	job := &models.ReallocationJob{
		JobID:          s.jobs.GenerateJobID(),
		FromAgentID:    sql.NullInt64{Int64: req.FromAgentID, Valid: true},
		ToAgentID:      req.ToAgentID,
		Reason:         req.Reason,
		EstimatedCases: len(caseIDs),
		RequestedBy:    actor,
	}
	if err := s.jobs.CreateJob(job); err != nil {
		return nil, err
	}
	log.Printf("[ALLOCATION] Queued reallocation job %s: agent %d -> %d (estimated %d cases)",
		job.JobID, req.FromAgentID, req.ToAgentID, job.EstimatedCases)
	return &models.JobAcceptedResponse{
		JobID:          job.JobID,
		EstimatedCases: job.EstimatedCases,
		Status:         job.Status,
	}, nil
}

// RequestReallocationByFilter queues an async job moving every case matched by
// the filter criteria to the target agent.
func (s *AllocationService) RequestReallocationByFilter(req *models.ReallocateByFilterRequest, actor string) (*models.JobAcceptedResponse, error) {
	if req.ToAgentID == 0 {
		return nil, fmt.Errorf("%w: to_agent_id is required", ErrInvalidRequest)
	}
	if err := models.ValidateFilters(req.Filters); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	target, err := s.agents.GetAgentByID(req.ToAgentID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, fmt.Errorf("agent %d: %w", req.ToAgentID, repository.ErrAgentInactive)
	}

	caseIDs, err := s.store.ListActiveCaseIDsByFilter(req.Filters)
	if err != nil {
		return nil, err
	}

	filterJSON, err := json.Marshal(req.Filters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}

	job := &models.ReallocationJob{
		JobID:          s.jobs.GenerateJobID(),
		ToAgentID:      req.ToAgentID,
		Reason:         req.Reason,
		EstimatedCases: len(caseIDs),
		RequestedBy:    actor,
	}
	job.FilterJSON.String = string(filterJSON)
	job.FilterJSON.Valid = true
	if err := s.jobs.CreateJob(job); err != nil {
		return nil, err
	}
	log.Printf("[ALLOCATION] Queued filter reallocation job %s -> agent %d (estimated %d cases)",
		job.JobID, req.ToAgentID, job.EstimatedCases)
	return &models.JobAcceptedResponse{
		JobID:          job.JobID,
		EstimatedCases: job.EstimatedCases,
		Status:         job.Status,
	}, nil
}

// GetJob returns a reallocation job's current status.
func (s *AllocationService) GetJob(jobID string) (*models.ReallocationJob, error) {
	return s.jobs.GetJobByID(jobID)
}

// ExecuteJob runs one claimed reallocation job to completion. The case set is
// recomputed at execution time since the estimate from submission may have
// drifted, and each case moves independently so one failure never aborts the job.
func (s *AllocationService) ExecuteJob(job *models.ReallocationJob) error {
	metrics.ReallocationJobsRunning.Inc()
	defer metrics.ReallocationJobsRunning.Dec()

	var caseIDs []int64
	var err error
	if job.FromAgentID.Valid {
		caseIDs, err = s.store.ListActiveCaseIDsByAgent(job.FromAgentID.Int64)
	} else if job.FilterJSON.Valid {
		var filters []models.FilterCriterion
		if err = json.Unmarshal([]byte(job.FilterJSON.String), &filters); err == nil {
			caseIDs, err = s.store.ListActiveCaseIDsByFilter(filters)
		}
	} else {
		err = fmt.Errorf("job %s has neither source agent nor filters", job.JobID)
	}
	if err != nil {
		if completeErr := s.jobs.CompleteJob(job.JobID, 0, 0, models.JobStatusFailed, err.Error()); completeErr != nil {
			log.Printf("[ALLOCATION] Failed to mark job %s failed: %v", job.JobID, completeErr)
		}
		return err
	}

	moved, failed := 0, 0
	for _, caseID := range caseIDs {
		_, _, noop, err := s.applyAllocation(repository.AllocateParams{
			CaseID:  caseID,
			AgentID: job.ToAgentID,
			Reason:  job.Reason,
			Actor:   job.RequestedBy,
		})
		if err != nil {
			failed++
			log.Printf("[ALLOCATION] Job %s: case %d failed: %v", job.JobID, caseID, err)
			continue
		}
		if !noop {
			moved++
			metrics.ReallocationCasesMoved.Inc()
		}
	}

	status := models.JobStatusCompleted
	if err := s.jobs.CompleteJob(job.JobID, moved, failed, status, ""); err != nil {
		return fmt.Errorf("failed to finalize job %s: %w", job.JobID, err)
	}
	log.Printf("[ALLOCATION] Job %s completed: %d moved, %d failed (estimated %d)",
		job.JobID, moved, failed, job.EstimatedCases)
	return nil
}

// ProcessNextJob claims the oldest pending reallocation job and runs it.
// Returns false when no job was waiting.
func (s *AllocationService) ProcessNextJob() (bool, error) {
	job, err := s.jobs.ClaimNextPendingJob()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return true, s.ExecuteJob(job)
}

// GetWorkloads returns the derived per-agent workload view.
func (s *AllocationService) GetWorkloads(agentID *int64, geography string) ([]models.AgentWorkload, error) {
	return s.store.GetWorkloads(agentID, geography)
}
