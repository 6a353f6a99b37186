package service

import (
	"fmt"
	"log"
	"strconv"

	"caseflow/models"
	"caseflow/repository"
)

// RuleService manages allocation rules and runs them against the unallocated
// case pool, either as a read-only simulation or an actual application.
type RuleService struct {
	rules      RuleStore
	cases      CaseDirectory
	agents     AgentDirectory
	allocation *AllocationService
}

// NewRuleService creates a new rule service
func NewRuleService(rules RuleStore, cases CaseDirectory, agents AgentDirectory, allocation *AllocationService) *RuleService {
	return &RuleService{
		rules:      rules,
		cases:      cases,
		agents:     agents,
		allocation: allocation,
	}
}

func validateRule(rule *models.AllocationRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidRequest)
	}
	// max_cases 0 means unbounded, for capacity rules too.
	if rule.MaxCases < 0 {
		return fmt.Errorf("%w: max_cases must not be negative", ErrInvalidRequest)
	}
	switch rule.RuleType {
	case models.RuleTypeGeography:
		if len(rule.States) == 0 && len(rule.Cities) == 0 {
			return ErrRuleNoCriteria
		}
	case models.RuleTypeCapacityBased:
	default:
		return fmt.Errorf("%w: unknown rule_type %q", ErrInvalidRequest, rule.RuleType)
	}
	switch rule.Status {
	case models.RuleStatusDraft, models.RuleStatusActive, models.RuleStatusInactive:
	default:
		return fmt.Errorf("%w: unknown rule status %q", ErrInvalidRequest, rule.Status)
	}
	return nil
}

// CreateRule validates and persists a new rule. Rules default to DRAFT.
func (s *RuleService) CreateRule(req *models.CreateRuleRequest, actor string) (*models.AllocationRule, error) {
	rule := &models.AllocationRule{
		Name:     req.Name,
		RuleType: req.RuleType,
		States:   req.States,
		Cities:   req.Cities,
		MaxCases: req.MaxCases,
		Status:   req.Status,
		Priority: req.Priority,
	}
	if rule.Status == "" {
		rule.Status = models.RuleStatusDraft
	}
	rule.CreatedBy.String = actor
	rule.CreatedBy.Valid = actor != ""
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.CreateRule(rule); err != nil {
		return nil, err
	}
	log.Printf("[RULE] Created rule %d (%s, type=%s, status=%s)", rule.RuleID, rule.Name, rule.RuleType, rule.Status)
	return rule, nil
}

// GetRule returns one rule by id.
func (s *RuleService) GetRule(ruleID int64) (*models.AllocationRule, error) {
	return s.rules.GetRuleByID(ruleID)
}

// ListRules returns all rules ordered by priority.
func (s *RuleService) ListRules() ([]models.AllocationRule, error) {
	return s.rules.ListRules()
}

// UpdateRule replaces the mutable fields of an existing rule.
func (s *RuleService) UpdateRule(ruleID int64, req *models.CreateRuleRequest) (*models.AllocationRule, error) {
	rule, err := s.rules.GetRuleByID(ruleID)
	if err != nil {
		return nil, err
	}
	rule.Name = req.Name
	rule.RuleType = req.RuleType
	rule.States = req.States
	rule.Cities = req.Cities
	rule.MaxCases = req.MaxCases
	rule.Priority = req.Priority
	if req.Status != "" {
		rule.Status = req.Status
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.UpdateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeactivateRule soft-deletes a rule. Previously applied allocations keep
// their rule_id reference, so rules are never removed from the table.
func (s *RuleService) DeactivateRule(ruleID int64) error {
	return s.rules.DeactivateRule(ruleID)
}

// evaluate matches the unallocated case pool and eligible agents for a rule.
func (s *RuleService) evaluate(rule *models.AllocationRule, maxCases int) ([]int64, []models.EligibleAgent, error) {
	limit := rule.MaxCases
	if maxCases > 0 && (limit == 0 || maxCases < limit) {
		limit = maxCases
	}

	var matched []models.Case
	var agents []models.Agent
	var err error
	switch rule.RuleType {
	case models.RuleTypeGeography:
		matched, err = s.cases.ListUnallocatedByGeography(rule.States, rule.Cities, limit)
		if err != nil {
			return nil, nil, err
		}
		agents, err = s.agents.ListActiveAgentsByGeography(rule.States, rule.Cities)
	case models.RuleTypeCapacityBased:
		matched, err = s.cases.ListUnallocated(limit)
		if err != nil {
			return nil, nil, err
		}
		agents, err = s.agents.ListActiveAgentsByCapacity()
	default:
		return nil, nil, fmt.Errorf("%w: unknown rule_type %q", ErrInvalidRequest, rule.RuleType)
	}
	if err != nil {
		return nil, nil, err
	}

	caseIDs := make([]int64, 0, len(matched))
	for _, c := range matched {
		caseIDs = append(caseIDs, c.CaseID)
	}
	eligible := make([]models.EligibleAgent, 0, len(agents))
	for _, a := range agents {
		eligible = append(eligible, models.EligibleAgent{
			AgentID:           a.AgentID,
			Name:              a.Name,
			Geography:         a.Geography,
			AvailableCapacity: a.AvailableCapacity(),
		})
	}
	return caseIDs, eligible, nil
}

// plan picks the distribution strategy for a rule. Explicit percentages from
// the request override the rule's default strategy.
func plan(rule *models.AllocationRule, caseIDs []int64, eligible []models.EligibleAgent, req *models.ApplyRuleRequest) (PlanResult, error) {
	if req != nil && len(req.AgentIDs) > 0 {
		byID := make(map[int64]models.EligibleAgent, len(eligible))
		for _, a := range eligible {
			byID[a.AgentID] = a
		}
		chosen := make([]models.EligibleAgent, 0, len(req.AgentIDs))
		for _, id := range req.AgentIDs {
			a, ok := byID[id]
			if !ok {
				return PlanResult{}, fmt.Errorf("%w: agent %d is not eligible under rule %d", ErrInvalidRequest, id, rule.RuleID)
			}
			chosen = append(chosen, a)
		}
		if len(req.Percentages) > 0 {
			return PlanPercentageSplit(caseIDs, chosen, req.Percentages)
		}
		return PlanEvenSplit(caseIDs, chosen), nil
	}

	switch rule.RuleType {
	case models.RuleTypeCapacityBased:
		return PlanCapacityFill(caseIDs, eligible), nil
	default:
		return PlanEvenSplit(caseIDs, eligible), nil
	}
}

// Simulate previews a rule application without touching allocations.
// A rule matching zero cases or zero agents yields an empty distribution,
// not an error.
func (s *RuleService) Simulate(ruleID int64, req *models.ApplyRuleRequest) (*models.SimulationResult, error) {
	rule, err := s.rules.GetRuleByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule.Status != models.RuleStatusActive {
		return nil, fmt.Errorf("rule %d: %w", ruleID, ErrRuleNotActive)
	}

	maxCases := 0
	if req != nil {
		maxCases = req.MaxCases
	}
	caseIDs, eligible, err := s.evaluate(rule, maxCases)
	if err != nil {
		return nil, err
	}
	if req != nil && len(req.CaseIDs) > 0 {
		caseIDs = intersect(caseIDs, req.CaseIDs)
	}

	result, err := plan(rule, caseIDs, eligible, req)
	if err != nil {
		return nil, err
	}
	return &models.SimulationResult{
		RuleID:         ruleID,
		MatchedCaseIDs: caseIDs,
		EligibleAgents: eligible,
		Distribution:   result.Assignments,
		Unassigned:     result.Unassigned,
	}, nil
}

// Apply runs a rule against the live pool. DryRun returns the simulation
// without applying; otherwise each planned assignment goes through the
// allocation orchestrator independently.
func (s *RuleService) Apply(ruleID int64, req *models.ApplyRuleRequest, actor string) (*models.ApplyRuleResponse, error) {
	sim, err := s.Simulate(ruleID, req)
	if err != nil {
		return nil, err
	}
	if req != nil && req.DryRun {
		return &models.ApplyRuleResponse{RuleID: ruleID, DryRun: true, Simulation: sim}, nil
	}

	resp := &models.ApplyRuleResponse{RuleID: ruleID}
	for _, assignment := range sim.Distribution {
		outcome := models.BulkOutcome{CaseID: assignment.CaseID, Success: true}
		_, _, _, err := s.allocation.applyAllocation(repository.AllocateParams{
			CaseID:  assignment.CaseID,
			AgentID: assignment.AgentID,
			Reason:  "rule " + strconv.FormatInt(ruleID, 10),
			Actor:   actor,
			RuleID:  &ruleID,
		})
		if err != nil {
			outcome.Success = false
			outcome.Message = err.Error()
			resp.Failed++
		} else {
			resp.Applied++
		}
		resp.Outcomes = append(resp.Outcomes, outcome)
	}
	log.Printf("[RULE] Applied rule %d: %d allocated, %d failed, %d unassigned",
		ruleID, resp.Applied, resp.Failed, len(sim.Unassigned))
	return resp, nil
}

func intersect(matched, requested []int64) []int64 {
	want := make(map[int64]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	out := make([]int64, 0, len(requested))
	for _, id := range matched {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}
