package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"caseflow/models"
)

// AgentRepository is the read-mostly directory view of collection agents.
// current_case_count is never written here; only allocation transactions move it.
type AgentRepository struct {
	db *sql.DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = `
	agent_id, name, email, geography, state, city, capacity,
	current_case_count, is_active, created_at, updated_at`

func scanAgent(row interface{ Scan(...interface{}) error }) (*models.Agent, error) {
	var a models.Agent
	err := row.Scan(
		&a.AgentID, &a.Name, &a.Email, &a.Geography, &a.State, &a.City,
		&a.Capacity, &a.CurrentCaseCount, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAgentByID retrieves an agent by its ID
func (r *AgentRepository) GetAgentByID(agentID int64) (*models.Agent, error) {
	a, err := scanAgent(r.db.QueryRow(
		`SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, agentID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %d: %w", agentID, ErrAgentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

// ListActiveAgentsByGeography returns active agents whose state or city falls
// in the given filter lists and who still have capacity headroom.
func (r *AgentRepository) ListActiveAgentsByGeography(states, cities []string) ([]models.Agent, error) {
	where := []string{"is_active = TRUE", "capacity - current_case_count > 0"}
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

	query := `SELECT ` + agentColumns + ` FROM agents WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY agent_id ASC`
	return r.listAgents(query, args...)
}

// ListActiveAgentsByCapacity returns all active agents with headroom, ranked
// by available capacity descending.
func (r *AgentRepository) ListActiveAgentsByCapacity() ([]models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents
		WHERE is_active = TRUE AND capacity - current_case_count > 0
		ORDER BY capacity - current_case_count DESC, agent_id ASC`
	return r.listAgents(query)
}

func (r *AgentRepository) listAgents(query string, args ...interface{}) ([]models.Agent, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return agents, nil
}

// UpsertAgent inserts or updates a directory record (directory sync only).
// Capacity and flags come from the upstream user service; the load counter is
// left untouched on update.
func (r *AgentRepository) UpsertAgent(agentID int64, req *models.UpsertAgentRequest) (*models.Agent, error) {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	_, err := r.db.Exec(
		`INSERT INTO agents (agent_id, name, email, geography, state, city, capacity, is_active)
		 VALUES (?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)
		 ON DUPLICATE KEY UPDATE
		     name = VALUES(name), email = VALUES(email), geography = VALUES(geography),
		     state = VALUES(state), city = VALUES(city), capacity = VALUES(capacity),
		     is_active = VALUES(is_active), updated_at = NOW()`,
		agentID, req.Name, req.Email, req.Geography, req.State, req.City, req.Capacity, isActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert agent: %w", err)
	}
	return r.GetAgentByID(agentID)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
