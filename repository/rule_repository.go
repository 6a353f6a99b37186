package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"caseflow/models"
)

// RuleRepository handles database operations for allocation rules
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
	rule_id, name, rule_type, states, cities, max_cases, status, priority,
	created_by, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*models.AllocationRule, error) {
	var rule models.AllocationRule
	var states, cities sql.NullString
	err := row.Scan(
		&rule.RuleID, &rule.Name, &rule.RuleType, &states, &cities, &rule.MaxCases,
		&rule.Status, &rule.Priority, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if states.Valid && states.String != "" {
		if err := json.Unmarshal([]byte(states.String), &rule.States); err != nil {
			return nil, fmt.Errorf("failed to decode rule states: %w", err)
		}
	}
	if cities.Valid && cities.String != "" {
		if err := json.Unmarshal([]byte(cities.String), &rule.Cities); err != nil {
			return nil, fmt.Errorf("failed to decode rule cities: %w", err)
		}
	}
	return &rule, nil
}

func encodeList(list []string) (sql.NullString, error) {
	if len(list) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode list: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateRule creates a new allocation rule
func (r *RuleRepository) CreateRule(rule *models.AllocationRule) error {
	states, err := encodeList(rule.States)
	if err != nil {
		return err
	}
	cities, err := encodeList(rule.Cities)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(
		`INSERT INTO allocation_rules (name, rule_type, states, cities, max_cases, status, priority, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.RuleType, states, cities, rule.MaxCases, rule.Status, rule.Priority, rule.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	ruleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.RuleID = ruleID
	return nil
}

// GetRuleByID retrieves a rule by its ID
func (r *RuleRepository) GetRuleByID(ruleID int64) (*models.AllocationRule, error) {
	rule, err := scanRule(r.db.QueryRow(
		`SELECT `+ruleColumns+` FROM allocation_rules WHERE rule_id = ?`, ruleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %d: %w", ruleID, ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules returns all rules, highest priority first
func (r *RuleRepository) ListRules() ([]models.AllocationRule, error) {
	rows, err := r.db.Query(
		`SELECT ` + ruleColumns + ` FROM allocation_rules ORDER BY priority DESC, rule_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AllocationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// UpdateRule updates a rule's fields
func (r *RuleRepository) UpdateRule(rule *models.AllocationRule) error {
	states, err := encodeList(rule.States)
	if err != nil {
		return err
	}
	cities, err := encodeList(rule.Cities)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(
		`UPDATE allocation_rules
		 SET name = ?, rule_type = ?, states = ?, cities = ?, max_cases = ?,
		     status = ?, priority = ?, updated_at = NOW()
		 WHERE rule_id = ?`,
		rule.Name, rule.RuleType, states, cities, rule.MaxCases,
		rule.Status, rule.Priority, rule.RuleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.RuleID, ErrRuleNotFound)
	}
	return nil
}

// DeactivateRule sets a rule INACTIVE. Rules are never hard-deleted so
// allocations keep a resolvable originating rule id.
func (r *RuleRepository) DeactivateRule(ruleID int64) error {
	result, err := r.db.Exec(
		`UPDATE allocation_rules SET status = 'INACTIVE', updated_at = NOW() WHERE rule_id = ?`,
		ruleID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", ruleID, ErrRuleNotFound)
	}
	return nil
}
