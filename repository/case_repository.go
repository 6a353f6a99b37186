package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"caseflow/models"
)

// CaseRepository is the read-mostly directory view of delinquent-loan cases.
// is_allocated is never written here; only allocation transactions move it.
type CaseRepository struct {
	db *sql.DB
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `
	case_id, external_case_id, loan_account_number, customer_name, geography,
	state, city, bucket, mobile_number, alternate_mobile, email, alternate_email,
	address, pincode, is_allocated, created_at, updated_at`

func scanCase(row interface{ Scan(...interface{}) error }) (*models.Case, error) {
	var c models.Case
	err := row.Scan(
		&c.CaseID, &c.ExternalCaseID, &c.LoanAccountNumber, &c.CustomerName, &c.Geography,
		&c.State, &c.City, &c.Bucket, &c.MobileNumber, &c.AlternateMobile, &c.Email,
		&c.AlternateEmail, &c.Address, &c.Pincode, &c.IsAllocated, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCaseByID retrieves a case by its ID
func (r *CaseRepository) GetCaseByID(caseID int64) (*models.Case, error) {
	c, err := scanCase(r.db.QueryRow(
		`SELECT `+caseColumns+` FROM cases WHERE case_id = ?`, caseID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("case %d: %w", caseID, ErrCaseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// ListUnallocatedByGeography returns unallocated cases whose state or city is
// in the filter lists. limit 0 means unbounded.
func (r *CaseRepository) ListUnallocatedByGeography(states, cities []string, limit int) ([]models.Case, error) {
	where := []string{"is_allocated = FALSE"}
	var args []interface{}

	var geo []string
	if len(states) > 0 {
		geo = append(geo, "state IN ("+placeholders(len(states))+")")
		for _, s := range states {
			args = append(args, s)
		}
	}
	if len(cities) > 0 {
		geo = append(geo, "city IN ("+placeholders(len(cities))+")")
		for _, c := range cities {
			args = append(args, c)
		}
	}
	if len(geo) > 0 {
		where = append(where, "("+strings.Join(geo, " OR ")+")")
	}

	query := `SELECT ` + caseColumns + ` FROM cases WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY case_id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return r.listCases(query, args...)
}

// ListUnallocated returns all unallocated cases. limit 0 means unbounded.
func (r *CaseRepository) ListUnallocated(limit int) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases
		WHERE is_allocated = FALSE ORDER BY case_id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return r.listCases(query)
}

func (r *CaseRepository) listCases(query string, args ...interface{}) ([]models.Case, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}
	return cases, nil
}

// ContactUpdate carries the contact fields a contact-update row may change.
// Empty strings mean "leave unchanged".
type ContactUpdate struct {
	CustomerName    string
	MobileNumber    string
	AlternateMobile string
	Email           string
	AlternateEmail  string
	Address         string
	City            string
	State           string
	Pincode         string
}

// UpdateContact applies a contact update to a case, touching only the fields
// the row actually carried.
func (r *CaseRepository) UpdateContact(caseID int64, u *ContactUpdate) error {
	set := []string{"updated_at = NOW()"}
	var args []interface{}
	add := func(col, val string) {
		if val != "" {
			set = append(set, col+" = ?")
			args = append(args, val)
		}
	}
	add("customer_name", u.CustomerName)
	add("mobile_number", u.MobileNumber)
	add("alternate_mobile", u.AlternateMobile)
	add("email", u.Email)
	add("alternate_email", u.AlternateEmail)
	add("address", u.Address)
	add("city", u.City)
	add("state", u.State)
	add("pincode", u.Pincode)

	if len(set) == 1 {
		return nil // nothing to change
	}
	args = append(args, caseID)
	result, err := r.db.Exec(
		`UPDATE cases SET `+strings.Join(set, ", ")+` WHERE case_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update case contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("case %d: %w", caseID, ErrCaseNotFound)
	}
	return nil
}

// UpsertCase inserts or updates a directory record (directory sync only).
func (r *CaseRepository) UpsertCase(caseID int64, req *models.UpsertCaseRequest) (*models.Case, error) {
	_, err := r.db.Exec(
		`INSERT INTO cases (case_id, external_case_id, loan_account_number, customer_name,
		                    geography, state, city, bucket)
		 VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))
		 ON DUPLICATE KEY UPDATE
		     external_case_id = VALUES(external_case_id),
		     loan_account_number = VALUES(loan_account_number),
		     customer_name = VALUES(customer_name), geography = VALUES(geography),
		     state = VALUES(state), city = VALUES(city), bucket = VALUES(bucket),
		     updated_at = NOW()`,
		caseID, req.ExternalCaseID, req.LoanAccountNumber, req.CustomerName,
		req.Geography, req.State, req.City, req.Bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert case: %w", err)
	}
	return r.GetCaseByID(caseID)
}
