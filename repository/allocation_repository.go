package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"caseflow/models"

	"github.com/go-sql-driver/mysql"
)

// AllocationRepository owns all writes to case_allocations, allocation_history
// and the agent load counters. Every mutation runs in a single transaction so
// the one-active-owner invariant, the ledger and the counters move together.
type AllocationRepository struct {
	db *sql.DB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *sql.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// AllocateParams carries everything one allocation needs
type AllocateParams struct {
	CaseID           int64
	AgentID          int64
	SecondaryAgentID *int64
	AllocationType   models.AllocationType
	Percentage       int
	Reason           string
	Actor            string
	RuleID           *int64
	BatchID          *int64
}

const allocationColumns = `
	allocation_id, case_id, external_case_id, primary_agent_id, secondary_agent_id,
	allocation_type, workload_percentage, geography, status, allocated_by,
	allocated_at, deallocated_at, rule_id, batch_id`

func scanAllocation(row interface{ Scan(...interface{}) error }) (*models.CaseAllocation, error) {
	var a models.CaseAllocation
	err := row.Scan(
		&a.AllocationID, &a.CaseID, &a.ExternalCaseID, &a.PrimaryAgentID, &a.SecondaryAgentID,
		&a.AllocationType, &a.WorkloadPercentage, &a.Geography, &a.Status, &a.AllocatedBy,
		&a.AllocatedAt, &a.DeallocatedAt, &a.RuleID, &a.BatchID,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActiveAllocation returns the current ALLOCATED row for a case, or nil.
func (r *AllocationRepository) GetActiveAllocation(caseID int64) (*models.CaseAllocation, error) {
	query := `SELECT ` + allocationColumns + `
		FROM case_allocations WHERE case_id = ? AND status = 'ALLOCATED'`
	a, err := scanAllocation(r.db.QueryRow(query, caseID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active allocation: %w", err)
	}
	return a, nil
}

// Allocate assigns a case to an agent atomically. If the case is already
// ALLOCATED to the same agent the call is a no-op returning the existing row.
// If it is allocated elsewhere, the prior row flips to DEALLOCATED and a single
// REALLOCATE ledger entry is written instead of a DEALLOCATE/ALLOCATE pair.
// Agent load counters move inside the same transaction.
func (r *AllocationRepository) Allocate(p AllocateParams) (alloc *models.CaseAllocation, reallocated bool, noop bool, err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Case must exist; lock it so concurrent allocations on the same case serialize here.
	var externalCaseID, geography string
	err = tx.QueryRow(
		`SELECT external_case_id, geography FROM cases WHERE case_id = ? FOR UPDATE`,
		p.CaseID,
	).Scan(&externalCaseID, &geography)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("case %d: %w", p.CaseID, ErrCaseNotFound)
		return nil, false, false, err
	}
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to lock case: %w", err)
	}

	// Current owner, if any.
	current, err := scanAllocation(tx.QueryRow(
		`SELECT `+allocationColumns+` FROM case_allocations
		 WHERE case_id = ? AND status = 'ALLOCATED' FOR UPDATE`, p.CaseID))
	if err != nil && err != sql.ErrNoRows {
		return nil, false, false, fmt.Errorf("failed to read current allocation: %w", err)
	}
	hadOwner := err == nil
	err = nil

	if hadOwner && current.PrimaryAgentID == p.AgentID {
		// Already owned by the target agent: no state change, no ledger entry.
		if err = tx.Commit(); err != nil {
			return nil, false, false, fmt.Errorf("failed to commit: %w", err)
		}
		return current, false, true, nil
	}

	// Target agent must be active and have headroom; lock to keep the counter honest.
	var capacity, currentLoad int
	var isActive bool
	err = tx.QueryRow(
		`SELECT capacity, current_case_count, is_active FROM agents WHERE agent_id = ? FOR UPDATE`,
		p.AgentID,
	).Scan(&capacity, &currentLoad, &isActive)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("agent %d: %w", p.AgentID, ErrAgentNotFound)
		return nil, false, false, err
	}
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to lock agent: %w", err)
	}
	if !isActive {
		err = fmt.Errorf("agent %d: %w", p.AgentID, ErrAgentInactive)
		return nil, false, false, err
	}
	if currentLoad >= capacity {
		err = fmt.Errorf("agent %d at %d/%d: %w", p.AgentID, currentLoad, capacity, ErrCapacityExceeded)
		return nil, false, false, err
	}

	if hadOwner {
		if _, err = tx.Exec(
			`UPDATE case_allocations
			 SET status = 'DEALLOCATED', active_flag = NULL, deallocated_at = NOW()
			 WHERE allocation_id = ?`, current.AllocationID); err != nil {
			return nil, false, false, fmt.Errorf("failed to deallocate prior owner: %w", err)
		}
		if _, err = tx.Exec(
			`UPDATE agents SET current_case_count = current_case_count - 1, updated_at = NOW()
			 WHERE agent_id = ? AND current_case_count > 0`, current.PrimaryAgentID); err != nil {
			return nil, false, false, fmt.Errorf("failed to decrement prior agent load: %w", err)
		}
	}

	allocType := p.AllocationType
	if allocType == "" {
		allocType = models.AllocationTypePrimary
	}
	percentage := p.Percentage
	if percentage == 0 {
		percentage = 100
	}

	var secondary sql.NullInt64
	if p.SecondaryAgentID != nil {
		secondary = sql.NullInt64{Int64: *p.SecondaryAgentID, Valid: true}
	}
	var ruleID, batchID sql.NullInt64
	if p.RuleID != nil {
		ruleID = sql.NullInt64{Int64: *p.RuleID, Valid: true}
	}
	if p.BatchID != nil {
		batchID = sql.NullInt64{Int64: *p.BatchID, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO case_allocations (
			case_id, external_case_id, primary_agent_id, secondary_agent_id,
			allocation_type, workload_percentage, geography, status, active_flag,
			allocated_by, rule_id, batch_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, 'ALLOCATED', 1, ?, ?, ?)`,
		p.CaseID, externalCaseID, p.AgentID, secondary,
		allocType, percentage, geography, p.Actor, ruleID, batchID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			err = fmt.Errorf("case %d: %w", p.CaseID, ErrConflict)
		} else {
			err = fmt.Errorf("failed to insert allocation: %w", err)
		}
		return nil, false, false, err
	}
	allocationID, err := result.LastInsertId()
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to get allocation ID: %w", err)
	}

	if _, err = tx.Exec(
		`UPDATE agents SET current_case_count = current_case_count + 1, updated_at = NOW()
		 WHERE agent_id = ?`, p.AgentID); err != nil {
		return nil, false, false, fmt.Errorf("failed to increment agent load: %w", err)
	}
	if _, err = tx.Exec(
		`UPDATE cases SET is_allocated = TRUE, updated_at = NOW() WHERE case_id = ?`,
		p.CaseID); err != nil {
		return nil, false, false, fmt.Errorf("failed to flag case allocated: %w", err)
	}

	action := models.ActionAllocate
	var prevOwner sql.NullInt64
	if hadOwner {
		action = models.ActionReallocate
		prevOwner = sql.NullInt64{Int64: current.PrimaryAgentID, Valid: true}
	}
	if err = insertHistory(tx, p.CaseID, action, prevOwner,
		sql.NullInt64{Int64: p.AgentID, Valid: true}, p.Reason, p.Actor, batchID); err != nil {
		return nil, false, false, err
	}
	if err = insertAudit(tx, "case_allocation", allocationID, string(action), p.Actor, map[string]interface{}{
		"case_id":        p.CaseID,
		"agent_id":       p.AgentID,
		"previous_owner": prevOwner.Int64,
		"reason":         p.Reason,
	}); err != nil {
		return nil, false, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, false, fmt.Errorf("failed to commit allocation: %w", err)
	}

	alloc = &models.CaseAllocation{
		AllocationID:       allocationID,
		CaseID:             p.CaseID,
		ExternalCaseID:     externalCaseID,
		PrimaryAgentID:     p.AgentID,
		SecondaryAgentID:   secondary,
		AllocationType:     allocType,
		WorkloadPercentage: percentage,
		Geography:          geography,
		Status:             models.AllocationStatusAllocated,
		AllocatedBy:        p.Actor,
		RuleID:             ruleID,
		BatchID:            batchID,
	}
	return alloc, hadOwner, false, nil
}

// Deallocate removes the active allocation of a case, decrements the prior
// owner's load and writes the DEALLOCATE ledger entry, all in one transaction.
func (r *AllocationRepository) Deallocate(caseID int64, reason, actor string, batchID *int64) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	current, err := scanAllocation(tx.QueryRow(
		`SELECT `+allocationColumns+` FROM case_allocations
		 WHERE case_id = ? AND status = 'ALLOCATED' FOR UPDATE`, caseID))
	if err == sql.ErrNoRows {
		err = fmt.Errorf("case %d: %w", caseID, ErrNotAllocated)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read current allocation: %w", err)
	}

	if _, err = tx.Exec(
		`UPDATE case_allocations
		 SET status = 'DEALLOCATED', active_flag = NULL, deallocated_at = NOW()
		 WHERE allocation_id = ?`, current.AllocationID); err != nil {
		return fmt.Errorf("failed to deallocate: %w", err)
	}
	if _, err = tx.Exec(
		`UPDATE agents SET current_case_count = current_case_count - 1, updated_at = NOW()
		 WHERE agent_id = ? AND current_case_count > 0`, current.PrimaryAgentID); err != nil {
		return fmt.Errorf("failed to decrement agent load: %w", err)
	}
	if _, err = tx.Exec(
		`UPDATE cases SET is_allocated = FALSE, updated_at = NOW() WHERE case_id = ?`,
		caseID); err != nil {
		return fmt.Errorf("failed to flag case unallocated: %w", err)
	}

	var nullBatch sql.NullInt64
	if batchID != nil {
		nullBatch = sql.NullInt64{Int64: *batchID, Valid: true}
	}
	if err = insertHistory(tx, caseID, models.ActionDeallocate,
		sql.NullInt64{Int64: current.PrimaryAgentID, Valid: true},
		sql.NullInt64{}, reason, actor, nullBatch); err != nil {
		return err
	}
	if err = insertAudit(tx, "case_allocation", current.AllocationID, string(models.ActionDeallocate), actor, map[string]interface{}{
		"case_id":        caseID,
		"previous_owner": current.PrimaryAgentID,
		"reason":         reason,
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deallocation: %w", err)
	}
	return nil
}

func insertHistory(tx *sql.Tx, caseID int64, action models.HistoryAction,
	prevOwner, newOwner sql.NullInt64, reason, actor string, batchID sql.NullInt64) error {
	var nullReason sql.NullString
	if reason != "" {
		nullReason = sql.NullString{String: reason, Valid: true}
	}
	_, err := tx.Exec(
		`INSERT INTO allocation_history (
			case_id, action, previous_owner_id, new_owner_id, owner_type, reason, actor, batch_id
		 ) VALUES (?, ?, ?, ?, 'AGENT', ?, ?, ?)`,
		caseID, action, prevOwner, newOwner, nullReason, actor, batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to write allocation history: %w", err)
	}
	return nil
}

func insertAudit(tx *sql.Tx, entityType string, entityID int64, action, actor string, metadata map[string]interface{}) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO audit_log (entity_type, entity_id, action, actor, metadata)
		 VALUES (?, ?, ?, ?, ?)`,
		entityType, entityID, action, actor, string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// GetHistory retrieves the ownership ledger for a case (newest first).
func (r *AllocationRepository) GetHistory(caseID int64) ([]models.AllocationHistory, error) {
	query := `
		SELECT history_id, case_id, action, previous_owner_id, new_owner_id,
		       owner_type, reason, actor, batch_id, created_at
		FROM allocation_history
		WHERE case_id = ?
		ORDER BY created_at DESC, history_id DESC
	`
	rows, err := r.db.Query(query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation history: %w", err)
	}
	defer rows.Close()

	var history []models.AllocationHistory
	for rows.Next() {
		var h models.AllocationHistory
		if err := rows.Scan(
			&h.HistoryID, &h.CaseID, &h.Action, &h.PreviousOwnerID, &h.NewOwnerID,
			&h.OwnerType, &h.Reason, &h.Actor, &h.BatchID, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan allocation history: %w", err)
		}
		history = append(history, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation history: %w", err)
	}
	return history, nil
}

// ListActiveCaseIDsByAgent returns the case ids currently owned by an agent.
func (r *AllocationRepository) ListActiveCaseIDsByAgent(agentID int64) ([]int64, error) {
	rows, err := r.db.Query(
		`SELECT case_id FROM case_allocations
		 WHERE primary_agent_id = ? AND status = 'ALLOCATED'
		 ORDER BY allocated_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent cases: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListActiveCaseIDsByFilter returns the case ids of active allocations whose
// case attributes match every filter criterion.
func (r *AllocationRepository) ListActiveCaseIDsByFilter(filters []models.FilterCriterion) ([]int64, error) {
	where := []string{"ca.status = 'ALLOCATED'"}
	var args []interface{}
	for i := range filters {
		frag, fragArgs := filters[i].SQL()
		where = append(where, frag)
		args = append(args, fragArgs...)
	}
	query := fmt.Sprintf(`
		SELECT ca.case_id
		FROM case_allocations ca
		JOIN cases c ON c.case_id = ca.case_id
		WHERE %s
		ORDER BY ca.allocated_at ASC`, strings.Join(where, " AND "))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filtered cases: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan case id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case ids: %w", err)
	}
	return ids, nil
}

// GetWorkloads computes the derived per-agent workload view. Active counts come
// from case_allocations at query time, never from a cached snapshot.
func (r *AllocationRepository) GetWorkloads(agentID *int64, geography string) ([]models.AgentWorkload, error) {
	where := []string{"1=1"}
	var args []interface{}
	if agentID != nil {
		where = append(where, "a.agent_id = ?")
		args = append(args, *agentID)
	}
	if geography != "" {
		where = append(where, "a.geography = ?")
		args = append(args, geography)
	}
	query := fmt.Sprintf(`
		SELECT a.agent_id, a.name, a.geography, a.capacity,
		       COALESCE(COUNT(ca.allocation_id), 0) AS active_allocations
		FROM agents a
		LEFT JOIN case_allocations ca
		       ON ca.primary_agent_id = a.agent_id AND ca.status = 'ALLOCATED'
		WHERE %s
		GROUP BY a.agent_id, a.name, a.geography, a.capacity
		ORDER BY a.agent_id ASC`, strings.Join(where, " AND "))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workloads: %w", err)
	}
	defer rows.Close()

	var workloads []models.AgentWorkload
	for rows.Next() {
		var w models.AgentWorkload
		if err := rows.Scan(&w.AgentID, &w.AgentName, &w.Geography, &w.Capacity, &w.ActiveAllocations); err != nil {
			return nil, fmt.Errorf("failed to scan workload: %w", err)
		}
		w.AvailableCapacity = w.Capacity - w.ActiveAllocations
		if w.AvailableCapacity < 0 {
			w.AvailableCapacity = 0
		}
		if w.Capacity > 0 {
			w.UtilizationPercent = float64(w.ActiveAllocations) / float64(w.Capacity) * 100
		}
		workloads = append(workloads, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workloads: %w", err)
	}
	return workloads, nil
}

// ListActiveAllocationsByBatch returns the allocations a batch produced, for export.
func (r *AllocationRepository) ListActiveAllocationsByBatch(batchID int64) ([]models.CaseAllocation, error) {
	query := `SELECT ` + allocationColumns + `
		FROM case_allocations WHERE batch_id = ? AND status = 'ALLOCATED'
		ORDER BY allocation_id ASC`
	rows, err := r.db.Query(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch allocations: %w", err)
	}
	defer rows.Close()

	var allocations []models.CaseAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return allocations, nil
}
