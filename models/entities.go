package models

import (
	"database/sql"
	"time"
)

// AllocationStatus represents the lifecycle state of a case allocation
type AllocationStatus string

const (
	AllocationStatusAllocated   AllocationStatus = "ALLOCATED"
	AllocationStatusDeallocated AllocationStatus = "DEALLOCATED"
)

// AllocationType distinguishes single-owner from split allocations
type AllocationType string

const (
	AllocationTypePrimary AllocationType = "PRIMARY"
	AllocationTypeSplit   AllocationType = "SPLIT"
)

// RuleType determines which criteria fields of an allocation rule are honored
type RuleType string

const (
	RuleTypeGeography     RuleType = "GEOGRAPHY"
	RuleTypeCapacityBased RuleType = "CAPACITY_BASED"
)

// RuleStatus represents the lifecycle state of an allocation rule
type RuleStatus string

const (
	RuleStatusDraft    RuleStatus = "DRAFT"
	RuleStatusActive   RuleStatus = "ACTIVE"
	RuleStatusInactive RuleStatus = "INACTIVE"
)

// BatchStatus represents the processing state of an uploaded batch.
// Status is monotonic; COMPLETED states and FAILED are terminal.
type BatchStatus string

const (
	BatchStatusUploaded            BatchStatus = "UPLOADED"
	BatchStatusProcessing          BatchStatus = "PROCESSING"
	BatchStatusCompleted           BatchStatus = "COMPLETED"
	BatchStatusCompletedWithErrors BatchStatus = "COMPLETED_WITH_ERRORS"
	BatchStatusFailed              BatchStatus = "FAILED"
)

// IsTerminal reports whether the batch can no longer change status.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusCompletedWithErrors || s == BatchStatusFailed
}

// BatchType identifies which upload file format a batch carries
type BatchType string

const (
	BatchTypeAllocation    BatchType = "allocation"
	BatchTypeReallocation  BatchType = "reallocation"
	BatchTypeContactUpdate BatchType = "contact_update"
)

// ErrorType classifies batch row failures
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeBusinessRule  ErrorType = "BUSINESS_RULE"
	ErrorTypeDataIntegrity ErrorType = "DATA_INTEGRITY"
	ErrorTypeSystem        ErrorType = "SYSTEM"
	ErrorTypeProcessing    ErrorType = "PROCESSING"
)

// HistoryAction is the kind of ownership change recorded in the ledger
type HistoryAction string

const (
	ActionAllocate   HistoryAction = "ALLOCATE"
	ActionReallocate HistoryAction = "REALLOCATE"
	ActionDeallocate HistoryAction = "DEALLOCATE"
)

// OwnerType identifies what kind of owner holds a case
type OwnerType string

const (
	OwnerTypeUser   OwnerType = "USER"
	OwnerTypeAgent  OwnerType = "AGENT"
	OwnerTypeAgency OwnerType = "AGENCY"
)

// JobStatus represents the state of an asynchronous reallocation job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Agent is the read-only directory view of a collection agent
type Agent struct {
	AgentID          int64          `db:"agent_id" json:"agent_id"`
	Name             string         `db:"name" json:"name"`
	Email            sql.NullString `db:"email" json:"email"`
	Geography        string         `db:"geography" json:"geography"`
	State            sql.NullString `db:"state" json:"state"`
	City             sql.NullString `db:"city" json:"city"`
	Capacity         int            `db:"capacity" json:"capacity"`
	CurrentCaseCount int            `db:"current_case_count" json:"current_case_count"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        sql.NullTime   `db:"updated_at" json:"updated_at"`
}

// AvailableCapacity returns the headroom the agent still has for new cases.
func (a *Agent) AvailableCapacity() int {
	avail := a.Capacity - a.CurrentCaseCount
	if avail < 0 {
		return 0
	}
	return avail
}

// Case is the read-only directory view of a delinquent-loan case
type Case struct {
	CaseID            int64          `db:"case_id" json:"case_id"`
	ExternalCaseID    string         `db:"external_case_id" json:"external_case_id"`
	LoanAccountNumber sql.NullString `db:"loan_account_number" json:"loan_account_number"`
	CustomerName      sql.NullString `db:"customer_name" json:"customer_name"`
	Geography         string         `db:"geography" json:"geography"`
	State             sql.NullString `db:"state" json:"state"`
	City              sql.NullString `db:"city" json:"city"`
	Bucket            sql.NullString `db:"bucket" json:"bucket"`
	MobileNumber      sql.NullString `db:"mobile_number" json:"mobile_number"`
	AlternateMobile   sql.NullString `db:"alternate_mobile" json:"alternate_mobile"`
	Email             sql.NullString `db:"email" json:"email"`
	AlternateEmail    sql.NullString `db:"alternate_email" json:"alternate_email"`
	Address           sql.NullString `db:"address" json:"address"`
	Pincode           sql.NullString `db:"pincode" json:"pincode"`
	IsAllocated       bool           `db:"is_allocated" json:"is_allocated"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         sql.NullTime   `db:"updated_at" json:"updated_at"`
}

// CaseAllocation is the current-ownership record for a case.
// At most one row per case may hold status=ALLOCATED at any time; rows are
// never hard-deleted, they flip to DEALLOCATED for audit continuity.
type CaseAllocation struct {
	AllocationID       int64            `db:"allocation_id" json:"allocation_id"`
	CaseID             int64            `db:"case_id" json:"case_id"`
	ExternalCaseID     string           `db:"external_case_id" json:"external_case_id"`
	PrimaryAgentID     int64            `db:"primary_agent_id" json:"primary_agent_id"`
	SecondaryAgentID   sql.NullInt64    `db:"secondary_agent_id" json:"secondary_agent_id"`
	AllocationType     AllocationType   `db:"allocation_type" json:"allocation_type"`
	WorkloadPercentage int              `db:"workload_percentage" json:"workload_percentage"`
	Geography          string           `db:"geography" json:"geography"`
	Status             AllocationStatus `db:"status" json:"status"`
	AllocatedBy        string           `db:"allocated_by" json:"allocated_by"`
	AllocatedAt        time.Time        `db:"allocated_at" json:"allocated_at"`
	DeallocatedAt      sql.NullTime     `db:"deallocated_at" json:"deallocated_at"`
	RuleID             sql.NullInt64    `db:"rule_id" json:"rule_id"`
	BatchID            sql.NullInt64    `db:"batch_id" json:"batch_id"`
}

// AllocationRule is a named policy for matching unallocated cases to agents
type AllocationRule struct {
	RuleID    int64          `db:"rule_id" json:"rule_id"`
	Name      string         `db:"name" json:"name"`
	RuleType  RuleType       `db:"rule_type" json:"rule_type"`
	States    []string       `json:"states"`
	Cities    []string       `json:"cities"`
	MaxCases  int            `db:"max_cases" json:"max_cases"`
	Status    RuleStatus     `db:"status" json:"status"`
	Priority  int            `db:"priority" json:"priority"`
	CreatedBy sql.NullString `db:"created_by" json:"created_by"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt sql.NullTime   `db:"updated_at" json:"updated_at"`
}

// AllocationHistory is one row of the append-only ownership ledger (immutable)
type AllocationHistory struct {
	HistoryID       int64          `db:"history_id" json:"history_id"`
	CaseID          int64          `db:"case_id" json:"case_id"`
	Action          HistoryAction  `db:"action" json:"action"`
	PreviousOwnerID sql.NullInt64  `db:"previous_owner_id" json:"previous_owner_id"`
	NewOwnerID      sql.NullInt64  `db:"new_owner_id" json:"new_owner_id"`
	OwnerType       OwnerType      `db:"owner_type" json:"owner_type"`
	Reason          sql.NullString `db:"reason" json:"reason"`
	Actor           string         `db:"actor" json:"actor"`
	BatchID         sql.NullInt64  `db:"batch_id" json:"batch_id"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// AllocationBatch tracks one uploaded file through its processing lifecycle
type AllocationBatch struct {
	BatchID               int64        `db:"batch_id" json:"batch_id"`
	BatchNumber           string       `db:"batch_number" json:"batch_number"`
	BatchType             BatchType    `db:"batch_type" json:"batch_type"`
	FileName              string       `db:"file_name" json:"file_name"`
	FilePath              string       `db:"file_path" json:"file_path"`
	TotalCases            int          `db:"total_cases" json:"total_cases"`
	SuccessfulAllocations int          `db:"successful_allocations" json:"successful_allocations"`
	FailedAllocations     int          `db:"failed_allocations" json:"failed_allocations"`
	Status                BatchStatus  `db:"status" json:"status"`
	UploadedBy            string       `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
	ProcessingStartedAt   sql.NullTime `db:"processing_started_at" json:"processing_started_at"`
	CompletedAt           sql.NullTime `db:"completed_at" json:"completed_at"`
}

// BatchError records one failed input row (write-once)
type BatchError struct {
	ErrorID   int64          `db:"error_id" json:"error_id"`
	BatchID   int64          `db:"batch_id" json:"batch_id"`
	RowNumber int            `db:"row_number" json:"row_number"`
	CaseID    sql.NullInt64  `db:"case_id" json:"case_id"`
	ErrorType ErrorType      `db:"error_type" json:"error_type"`
	FieldName sql.NullString `db:"field_name" json:"field_name"`
	Message   string         `db:"message" json:"message"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// ReallocationJob tracks an asynchronous bulk reallocation
type ReallocationJob struct {
	JobID          string         `db:"job_id" json:"job_id"`
	FromAgentID    sql.NullInt64  `db:"from_agent_id" json:"from_agent_id"`
	ToAgentID      int64          `db:"to_agent_id" json:"to_agent_id"`
	FilterJSON     sql.NullString `db:"filter_json" json:"filter_json,omitempty"`
	Reason         string         `db:"reason" json:"reason"`
	EstimatedCases int            `db:"estimated_cases" json:"estimated_cases"`
	MovedCases     int            `db:"moved_cases" json:"moved_cases"`
	FailedCases    int            `db:"failed_cases" json:"failed_cases"`
	Status         JobStatus      `db:"status" json:"status"`
	RequestedBy    string         `db:"requested_by" json:"requested_by"`
	ErrorMessage   sql.NullString `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	CompletedAt    sql.NullTime   `db:"completed_at" json:"completed_at"`
}

// AuditLog represents an audit trail entry (immutable). Rows are written in the
// same transaction as the state change they describe.
type AuditLog struct {
	AuditID    int64          `db:"audit_id" json:"audit_id"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   int64          `db:"entity_id" json:"entity_id"`
	Action     string         `db:"action" json:"action"`
	Actor      string         `db:"actor" json:"actor"`
	OldValues  sql.NullString `db:"old_values" json:"old_values"` // JSON
	NewValues  sql.NullString `db:"new_values" json:"new_values"` // JSON
	Metadata   sql.NullString `db:"metadata" json:"metadata"`     // JSON
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// AgentWorkload is the derived per-agent capacity view. It is computed from
// case_allocations joined with the agent directory at query time and never stored.
type AgentWorkload struct {
	AgentID            int64   `json:"agent_id"`
	AgentName          string  `json:"agent_name"`
	Geography          string  `json:"geography"`
	Capacity           int     `json:"capacity"`
	ActiveAllocations  int     `json:"active_allocations"`
	AvailableCapacity  int     `json:"available_capacity"`
	UtilizationPercent float64 `json:"utilization_percent"`
}
