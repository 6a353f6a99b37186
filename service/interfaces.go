package service

import (
	"errors"
	"time"

	"caseflow/models"
	"caseflow/repository"
)

// Business-rule errors surfaced by services on top of the repository sentinels.
var (
	ErrRuleNotActive  = errors.New("rule is not active")
	ErrRuleNoCriteria = errors.New("geography rule requires at least one state or city")
	ErrInvalidRequest = errors.New("invalid request")
)

// AllocationStore is the durable state the orchestrator mutates. Satisfied by
// repository.AllocationRepository; faked in tests.
type AllocationStore interface {
	GetActiveAllocation(caseID int64) (*models.CaseAllocation, error)
	Allocate(p repository.AllocateParams) (alloc *models.CaseAllocation, reallocated bool, noop bool, err error)
	Deallocate(caseID int64, reason, actor string, batchID *int64) error
	GetHistory(caseID int64) ([]models.AllocationHistory, error)
	ListActiveCaseIDsByAgent(agentID int64) ([]int64, error)
	ListActiveCaseIDsByFilter(filters []models.FilterCriterion) ([]int64, error)
	GetWorkloads(agentID *int64, geography string) ([]models.AgentWorkload, error)
	ListActiveAllocationsByBatch(batchID int64) ([]models.CaseAllocation, error)
}

// AgentDirectory is the read-only view of collection agents.
type AgentDirectory interface {
	GetAgentByID(agentID int64) (*models.Agent, error)
	ListActiveAgentsByGeography(states, cities []string) ([]models.Agent, error)
	ListActiveAgentsByCapacity() ([]models.Agent, error)
}

// CaseDirectory is the read-only view of delinquent-loan cases, plus the
// contact-update write the contact batch format feeds.
type CaseDirectory interface {
	GetCaseByID(caseID int64) (*models.Case, error)
	ListUnallocatedByGeography(states, cities []string, limit int) ([]models.Case, error)
	ListUnallocated(limit int) ([]models.Case, error)
	UpdateContact(caseID int64, u *repository.ContactUpdate) error
}

// RuleStore persists allocation rules.
type RuleStore interface {
	CreateRule(rule *models.AllocationRule) error
	GetRuleByID(ruleID int64) (*models.AllocationRule, error)
	ListRules() ([]models.AllocationRule, error)
	UpdateRule(rule *models.AllocationRule) error
	DeactivateRule(ruleID int64) error
}

// BatchStore persists batch tracking rows, per-row errors and async jobs.
type BatchStore interface {
	GenerateBatchNumber() string
	GenerateJobID() string
	CreateBatch(batch *models.AllocationBatch) error
	GetBatchByID(batchID int64) (*models.AllocationBatch, error)
	ClaimNextUploadedBatch() (*models.AllocationBatch, error)
	UpdateBatchTotals(batchID int64, total, successful, failed int) error
	FinalizeBatch(batchID int64, status models.BatchStatus, total, successful, failed int) error
	ListStaleProcessingBatches(olderThan time.Duration) ([]models.AllocationBatch, error)
	InsertBatchError(e *models.BatchError) error
	ListErrorsByBatch(batchID int64) ([]models.BatchError, error)
	GetRangeCounts(from, to time.Time) (*repository.RangeCounts, error)
	CreateJob(job *models.ReallocationJob) error
	GetJobByID(jobID string) (*models.ReallocationJob, error)
	ClaimNextPendingJob() (*models.ReallocationJob, error)
	CompleteJob(jobID string, moved, failed int, status models.JobStatus, errorMessage string) error
}
