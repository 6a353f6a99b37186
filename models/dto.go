package models

import "time"

// ErrorResponse is the standard error payload for API responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// AllocateRequest is the body for allocating a single case
type AllocateRequest struct {
	CaseID           int64  `json:"case_id"`
	AgentID          int64  `json:"agent_id"`
	SecondaryAgentID *int64 `json:"secondary_agent_id,omitempty"`
	AllocationType   string `json:"allocation_type,omitempty"` // PRIMARY (default) or SPLIT
	Percentage       *int   `json:"percentage,omitempty"`
	Reason           string `json:"reason"`
}

// AllocateResponse reports the outcome of a single-case allocation
type AllocateResponse struct {
	Allocation  *CaseAllocation `json:"allocation"`
	Reallocated bool            `json:"reallocated"`
	NoOp        bool            `json:"no_op"`
}

// DeallocateRequest deallocates one case or a list of cases
type DeallocateRequest struct {
	CaseID  int64   `json:"case_id,omitempty"`
	CaseIDs []int64 `json:"case_ids,omitempty"`
	Reason  string  `json:"reason"`
}

// BulkOutcome is the per-item result of a bulk operation
type BulkOutcome struct {
	CaseID  int64  `json:"case_id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BulkDeallocateResponse summarizes a bulk deallocation
type BulkDeallocateResponse struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []BulkOutcome `json:"outcomes"`
}

// ReallocateByAgentRequest moves every active case from one agent to another
type ReallocateByAgentRequest struct {
	FromAgentID int64  `json:"from_agent_id"`
	ToAgentID   int64  `json:"to_agent_id"`
	Reason      string `json:"reason"`
}

// ReallocateByFilterRequest moves cases matched by filter criteria to an agent
type ReallocateByFilterRequest struct {
	Filters   []FilterCriterion `json:"filters"`
	ToAgentID int64             `json:"to_agent_id"`
	Reason    string            `json:"reason"`
}

// JobAcceptedResponse is returned when an async reallocation job is queued
type JobAcceptedResponse struct {
	JobID          string    `json:"job_id"`
	EstimatedCases int       `json:"estimated_cases"`
	Status         JobStatus `json:"status"`
}

// CreateRuleRequest creates or updates an allocation rule
type CreateRuleRequest struct {
	Name     string     `json:"name"`
	RuleType RuleType   `json:"rule_type"`
	States   []string   `json:"states,omitempty"`
	Cities   []string   `json:"cities,omitempty"`
	MaxCases int        `json:"max_cases,omitempty"`
	Status   RuleStatus `json:"status,omitempty"`
	Priority int        `json:"priority,omitempty"`
}

// ApplyRuleRequest controls rule application
type ApplyRuleRequest struct {
	DryRun      bool    `json:"dry_run,omitempty"`
	AgentIDs    []int64 `json:"agent_ids,omitempty"`
	Percentages []int   `json:"percentages,omitempty"`
	CaseIDs     []int64 `json:"case_ids,omitempty"`
	MaxCases    int     `json:"max_cases,omitempty"`
}

// Assignment is one planned case→agent pairing
type Assignment struct {
	CaseID  int64 `json:"case_id"`
	AgentID int64 `json:"agent_id"`
}

// EligibleAgent is an agent eligible under a rule, with current headroom
type EligibleAgent struct {
	AgentID           int64  `json:"agent_id"`
	Name              string `json:"name"`
	Geography         string `json:"geography"`
	AvailableCapacity int    `json:"available_capacity"`
}

// SimulationResult is the read-only preview of a rule application
type SimulationResult struct {
	RuleID         int64           `json:"rule_id"`
	MatchedCaseIDs []int64         `json:"matched_case_ids"`
	EligibleAgents []EligibleAgent `json:"eligible_agents"`
	Distribution   []Assignment    `json:"distribution"`
	Unassigned     []int64         `json:"unassigned_case_ids"`
}

// ApplyRuleResponse reports what a rule application changed
type ApplyRuleResponse struct {
	RuleID     int64             `json:"rule_id"`
	DryRun     bool              `json:"dry_run"`
	Simulation *SimulationResult `json:"simulation,omitempty"`
	Applied    int               `json:"applied"`
	Failed     int               `json:"failed"`
	Outcomes   []BulkOutcome     `json:"outcomes,omitempty"`
}

// BatchStatusResponse is the polling payload for an uploaded batch
type BatchStatusResponse struct {
	BatchID     int64       `json:"batch_id"`
	BatchNumber string      `json:"batch_number"`
	BatchType   BatchType   `json:"batch_type"`
	TotalCases  int         `json:"total_cases"`
	Successful  int         `json:"successful"`
	Failed      int         `json:"failed"`
	Status      BatchStatus `json:"status"`
	UploadedBy  string      `json:"uploaded_by"`
	CreatedAt   time.Time   `json:"created_at"`
}

// UpsertAgentRequest syncs an agent directory record
type UpsertAgentRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Geography string `json:"geography"`
	State     string `json:"state,omitempty"`
	City      string `json:"city,omitempty"`
	Capacity  int    `json:"capacity"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// UpsertCaseRequest syncs a case directory record
type UpsertCaseRequest struct {
	ExternalCaseID    string `json:"external_case_id"`
	LoanAccountNumber string `json:"loan_account_number,omitempty"`
	CustomerName      string `json:"customer_name,omitempty"`
	Geography         string `json:"geography"`
	State             string `json:"state,omitempty"`
	City              string `json:"city,omitempty"`
	Bucket            string `json:"bucket,omitempty"`
}

// ErrorTypeCount is one slice of the error-type distribution
type ErrorTypeCount struct {
	ErrorType ErrorType `json:"error_type"`
	Count     int       `json:"count"`
}

// TopErrorReason is one recurring error message with its share of the total
type TopErrorReason struct {
	Message    string  `json:"message"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// FieldErrorBreakdown is the failure count for a single input field
type FieldErrorBreakdown struct {
	FieldName     string `json:"field_name"`
	Count         int    `json:"count"`
	CommonMessage string `json:"common_message"`
}

// BatchFailureAnalysis aggregates one batch's errors for operational review
type BatchFailureAnalysis struct {
	BatchID         int64                 `json:"batch_id"`
	TotalErrors     int                   `json:"total_errors"`
	ByErrorType     []ErrorTypeCount      `json:"by_error_type"`
	TopReasons      []TopErrorReason      `json:"top_reasons"`
	FieldBreakdowns []FieldErrorBreakdown `json:"field_breakdowns"`
}

// DailyErrorCount is one day of the error trend
type DailyErrorCount struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Errors int    `json:"errors"`
}

// FailureSummary is the date-range failure overview
type FailureSummary struct {
	From              time.Time         `json:"from"`
	To                time.Time         `json:"to"`
	BatchesProcessed  int               `json:"batches_processed"`
	BatchesWithErrors int               `json:"batches_with_errors"`
	TotalErrors       int               `json:"total_errors"`
	ByErrorType       []ErrorTypeCount  `json:"by_error_type"`
	DailyTrend        []DailyErrorCount `json:"daily_trend"`
}
