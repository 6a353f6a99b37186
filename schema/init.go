// Package schema: safe database initialization. Creates only missing tables, never drops or overwrites.

package schema

import (
	"database/sql"
	"log"
)

// InitializeDatabase ensures all tables exist. Checks INFORMATION_SCHEMA.TABLES
// and creates only missing tables, in dependency order: agents and cases first,
// then allocation state, then batch and job tracking. Does not drop or recreate
// tables; does not remove data.
func InitializeDatabase(db *sql.DB) {
	tables := []struct {
		name   string
		create func(*sql.DB)
	}{
		{"agents", createAgentsTable},
		{"cases", createCasesTable},
		{"case_allocations", createCaseAllocationsTable},
		{"allocation_rules", createAllocationRulesTable},
		{"allocation_history", createAllocationHistoryTable},
		{"allocation_batches", createAllocationBatchesTable},
		{"batch_errors", createBatchErrorsTable},
		{"reallocation_jobs", createReallocationJobsTable},
		{"audit_log", createAuditLogTable},
	}

	for _, t := range tables {
		exists, err := tableExists(db, t.name)
		if err != nil {
			log.Fatalf("[SCHEMA] Failed to check if table %s exists: %v", t.name, err)
		}
		if exists {
			log.Printf("[SCHEMA] %s table exists", t.name)
			continue
		}
		t.create(db)
		log.Printf("[SCHEMA] created %s table", t.name)
	}
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`,
		name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func mustExec(db *sql.DB, table, q string) {
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", table, err)
	}
}

func createAgentsTable(db *sql.DB) {
	mustExec(db, "agents", `
CREATE TABLE IF NOT EXISTS agents (
    agent_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    name VARCHAR(255) NOT NULL COMMENT 'Agent display name',
    email VARCHAR(255) NULL,
    geography VARCHAR(100) NOT NULL COMMENT 'Primary geography code',
    state VARCHAR(100) NULL,
    city VARCHAR(100) NULL,
    capacity INT NOT NULL DEFAULT 0 COMMENT 'Maximum concurrent cases',
    current_case_count INT NOT NULL DEFAULT 0 COMMENT 'Active allocations; written only inside allocation transactions',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL,
    INDEX idx_geography (geography),
    INDEX idx_active (is_active)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createCasesTable(db *sql.DB) {
	mustExec(db, "cases", `
CREATE TABLE IF NOT EXISTS cases (
    case_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    external_case_id VARCHAR(100) UNIQUE NOT NULL COMMENT 'Upstream loan-system identifier',
    loan_account_number VARCHAR(100) NULL,
    customer_name VARCHAR(255) NULL,
    geography VARCHAR(100) NOT NULL,
    state VARCHAR(100) NULL,
    city VARCHAR(100) NULL,
    bucket VARCHAR(50) NULL COMMENT 'Delinquency bucket',
    mobile_number VARCHAR(20) NULL,
    alternate_mobile VARCHAR(20) NULL,
    email VARCHAR(255) NULL,
    alternate_email VARCHAR(255) NULL,
    address TEXT NULL,
    pincode VARCHAR(10) NULL,
    is_allocated BOOLEAN NOT NULL DEFAULT FALSE COMMENT 'Denormalized flag; written only inside allocation transactions',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL,
    INDEX idx_external_case (external_case_id),
    INDEX idx_geography (geography),
    INDEX idx_allocated (is_allocated)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createCaseAllocationsTable(db *sql.DB) {
	// active_flag is 1 while ALLOCATED and NULL after deallocation, so the
	// unique key admits at most one active row per case while keeping every
	// deallocated row for audit continuity.
	mustExec(db, "case_allocations", `
CREATE TABLE IF NOT EXISTS case_allocations (
    allocation_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    case_id BIGINT NOT NULL,
    external_case_id VARCHAR(100) NOT NULL,
    primary_agent_id BIGINT NOT NULL,
    secondary_agent_id BIGINT NULL,
    allocation_type ENUM('PRIMARY', 'SPLIT') NOT NULL DEFAULT 'PRIMARY',
    workload_percentage INT NOT NULL DEFAULT 100,
    geography VARCHAR(100) NOT NULL,
    status ENUM('ALLOCATED', 'DEALLOCATED') NOT NULL DEFAULT 'ALLOCATED',
    active_flag TINYINT NULL DEFAULT 1 COMMENT '1 while ALLOCATED, NULL after deallocation',
    allocated_by VARCHAR(255) NOT NULL,
    allocated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deallocated_at TIMESTAMP NULL,
    rule_id BIGINT NULL,
    batch_id BIGINT NULL,
    UNIQUE KEY uq_active_case (case_id, active_flag),
    FOREIGN KEY (case_id) REFERENCES cases(case_id) ON DELETE RESTRICT,
    FOREIGN KEY (primary_agent_id) REFERENCES agents(agent_id) ON DELETE RESTRICT,
    INDEX idx_case_id (case_id),
    INDEX idx_agent_status (primary_agent_id, status),
    INDEX idx_batch (batch_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createAllocationRulesTable(db *sql.DB) {
	mustExec(db, "allocation_rules", `
CREATE TABLE IF NOT EXISTS allocation_rules (
    rule_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    name VARCHAR(255) NOT NULL,
    rule_type ENUM('GEOGRAPHY', 'CAPACITY_BASED') NOT NULL,
    states TEXT NULL COMMENT 'JSON array of state codes',
    cities TEXT NULL COMMENT 'JSON array of city codes',
    max_cases INT NOT NULL DEFAULT 0 COMMENT '0 = unbounded',
    status ENUM('DRAFT', 'ACTIVE', 'INACTIVE') NOT NULL DEFAULT 'DRAFT',
    priority INT NOT NULL DEFAULT 0,
    created_by VARCHAR(255) NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL,
    INDEX idx_status (status),
    INDEX idx_type (rule_type)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createAllocationHistoryTable(db *sql.DB) {
	mustExec(db, "allocation_history", `
CREATE TABLE IF NOT EXISTS allocation_history (
    history_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    case_id BIGINT NOT NULL,
    action ENUM('ALLOCATE', 'REALLOCATE', 'DEALLOCATE') NOT NULL,
    previous_owner_id BIGINT NULL,
    new_owner_id BIGINT NULL,
    owner_type ENUM('USER', 'AGENT', 'AGENCY') NOT NULL DEFAULT 'AGENT',
    reason TEXT NULL,
    actor VARCHAR(255) NOT NULL,
    batch_id BIGINT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_case_id (case_id),
    INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createAllocationBatchesTable(db *sql.DB) {
	mustExec(db, "allocation_batches", `
CREATE TABLE IF NOT EXISTS allocation_batches (
    batch_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    batch_number VARCHAR(50) UNIQUE NOT NULL COMMENT 'Public-facing batch number',
    batch_type ENUM('allocation', 'reallocation', 'contact_update') NOT NULL,
    file_name VARCHAR(255) NOT NULL,
    file_path VARCHAR(500) NOT NULL,
    total_cases INT NOT NULL DEFAULT 0,
    successful_allocations INT NOT NULL DEFAULT 0,
    failed_allocations INT NOT NULL DEFAULT 0,
    status ENUM('UPLOADED', 'PROCESSING', 'COMPLETED', 'COMPLETED_WITH_ERRORS', 'FAILED') NOT NULL DEFAULT 'UPLOADED',
    uploaded_by VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    processing_started_at TIMESTAMP NULL,
    completed_at TIMESTAMP NULL,
    INDEX idx_status (status),
    INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createBatchErrorsTable(db *sql.DB) {
	mustExec(db, "batch_errors", `
CREATE TABLE IF NOT EXISTS batch_errors (
    error_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    batch_id BIGINT NOT NULL,
    row_number INT NOT NULL,
    case_id BIGINT NULL,
    error_type ENUM('VALIDATION', 'BUSINESS_RULE', 'DATA_INTEGRITY', 'SYSTEM', 'PROCESSING') NOT NULL,
    field_name VARCHAR(100) NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (batch_id) REFERENCES allocation_batches(batch_id) ON DELETE RESTRICT,
    INDEX idx_batch (batch_id),
    INDEX idx_type (error_type)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createReallocationJobsTable(db *sql.DB) {
	mustExec(db, "reallocation_jobs", `
CREATE TABLE IF NOT EXISTS reallocation_jobs (
    job_id VARCHAR(50) PRIMARY KEY,
    from_agent_id BIGINT NULL COMMENT 'NULL for filter-driven jobs',
    to_agent_id BIGINT NOT NULL,
    filter_json TEXT NULL COMMENT 'Filter criteria for filter-driven jobs',
    reason TEXT NOT NULL,
    estimated_cases INT NOT NULL DEFAULT 0,
    moved_cases INT NOT NULL DEFAULT 0,
    failed_cases INT NOT NULL DEFAULT 0,
    status ENUM('PENDING', 'RUNNING', 'COMPLETED', 'FAILED') NOT NULL DEFAULT 'PENDING',
    requested_by VARCHAR(255) NOT NULL,
    error_message TEXT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP NULL,
    INDEX idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}

func createAuditLogTable(db *sql.DB) {
	mustExec(db, "audit_log", `
CREATE TABLE IF NOT EXISTS audit_log (
    audit_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    entity_type VARCHAR(100) NOT NULL,
    entity_id BIGINT NOT NULL,
    action VARCHAR(100) NOT NULL,
    actor VARCHAR(255) NOT NULL,
    old_values TEXT NULL,
    new_values TEXT NULL,
    metadata TEXT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_entity (entity_type, entity_id),
    INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`)
}
