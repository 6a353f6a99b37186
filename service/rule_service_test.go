package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/models"
	"caseflow/repository"
)

func newRuleFixture() (*fakeStore, *RuleService) {
	store := newFakeStore()
	store.addAgent(1, "Asha", "SOUTH", "KA", 10, true)
	store.addAgent(2, "Ravi", "SOUTH", "KA", 10, true)
	store.addAgent(3, "Meena", "NORTH", "DL", 10, true)
	for i := int64(101); i <= 106; i++ {
		store.addCase(i, "SOUTH", "KA")
	}
	store.addCase(201, "NORTH", "DL")
	allocation := NewAllocationService(store, store, store)
	return store, NewRuleService(store, store, store, allocation)
}

func activeGeographyRule(t *testing.T, svc *RuleService, states []string) *models.AllocationRule {
	t.Helper()
	rule, err := svc.CreateRule(&models.CreateRuleRequest{
		Name:     "south pool",
		RuleType: models.RuleTypeGeography,
		States:   states,
		Status:   models.RuleStatusActive,
	}, "ops:priya")
	require.NoError(t, err)
	return rule
}

func TestCreateRuleValidation(t *testing.T) {
	_, svc := newRuleFixture()

	tests := map[string]struct {
		req     *models.CreateRuleRequest
		wantErr error
	}{
		"missing name": {
			req:     &models.CreateRuleRequest{RuleType: models.RuleTypeGeography, States: []string{"KA"}},
			wantErr: ErrInvalidRequest,
		},
		"geography without criteria": {
			req:     &models.CreateRuleRequest{Name: "empty", RuleType: models.RuleTypeGeography},
			wantErr: ErrRuleNoCriteria,
		},
		"negative max cases": {
			req:     &models.CreateRuleRequest{Name: "fill", RuleType: models.RuleTypeCapacityBased, MaxCases: -1},
			wantErr: ErrInvalidRequest,
		},
		"unknown type": {
			req:     &models.CreateRuleRequest{Name: "odd", RuleType: "RANDOM"},
			wantErr: ErrInvalidRequest,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateRule(tc.req, "system")
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreateCapacityRuleWithoutMaxIsUnbounded(t *testing.T) {
	store := newFakeStore()
	store.addAgent(1, "Asha", "SOUTH", "KA", 3, true)
	store.addAgent(2, "Ravi", "SOUTH", "KA", 8, true)
	for i := int64(101); i <= 109; i++ {
		store.addCase(i, "SOUTH", "KA")
	}
	allocation := NewAllocationService(store, store, store)
	svc := NewRuleService(store, store, store, allocation)

	// max_cases 0 means no cap, not an invalid rule.
	rule, err := svc.CreateRule(&models.CreateRuleRequest{
		Name:     "fill by headroom",
		RuleType: models.RuleTypeCapacityBased,
		Status:   models.RuleStatusActive,
	}, "system")
	require.NoError(t, err)

	resp, err := svc.Apply(rule.RuleID, nil, "system")
	require.NoError(t, err)
	assert.Equal(t, 9, resp.Applied)
}

func TestCreateRuleDefaultsToDraft(t *testing.T) {
	_, svc := newRuleFixture()
	rule, err := svc.CreateRule(&models.CreateRuleRequest{
		Name:     "south pool",
		RuleType: models.RuleTypeGeography,
		States:   []string{"KA"},
	}, "ops:priya")
	require.NoError(t, err)
	assert.Equal(t, models.RuleStatusDraft, rule.Status)
	assert.Equal(t, "ops:priya", rule.CreatedBy.String)
}

func TestSimulateRequiresActiveRule(t *testing.T) {
	_, svc := newRuleFixture()
	rule, err := svc.CreateRule(&models.CreateRuleRequest{
		Name:     "draft rule",
		RuleType: models.RuleTypeGeography,
		States:   []string{"KA"},
	}, "system")
	require.NoError(t, err)

	_, err = svc.Simulate(rule.RuleID, nil)
	assert.ErrorIs(t, err, ErrRuleNotActive)

	_, err = svc.Simulate(9999, nil)
	assert.ErrorIs(t, err, repository.ErrRuleNotFound)
}

func TestSimulateGeographyRuleDoesNotAllocate(t *testing.T) {
	store, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	result, err := svc.Simulate(rule.RuleID, nil)
	require.NoError(t, err)
	assert.Len(t, result.MatchedCaseIDs, 6)
	assert.Len(t, result.EligibleAgents, 2)
	assert.Len(t, result.Distribution, 6)
	assert.Empty(t, result.Unassigned)

	// Read-only: nothing was actually allocated.
	assert.Empty(t, store.allocations)
	assert.Equal(t, 0, store.agents[1].CurrentCaseCount)
}

func TestSimulateWithNoEligibleAgents(t *testing.T) {
	_, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"MH"})

	result, err := svc.Simulate(rule.RuleID, nil)
	require.NoError(t, err)
	assert.Empty(t, result.MatchedCaseIDs)
	assert.Empty(t, result.EligibleAgents)
	assert.Empty(t, result.Distribution)
}

func TestApplyGeographyRuleAllocates(t *testing.T) {
	store, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	resp, err := svc.Apply(rule.RuleID, &models.ApplyRuleRequest{}, "ops:priya")
	require.NoError(t, err)
	assert.Equal(t, 6, resp.Applied)
	assert.Equal(t, 0, resp.Failed)

	// Even split across the two KA agents.
	assert.Equal(t, 3, store.agents[1].CurrentCaseCount)
	assert.Equal(t, 3, store.agents[2].CurrentCaseCount)
	assert.Equal(t, 0, store.agents[3].CurrentCaseCount)

	// Allocations reference the rule that made them.
	alloc := store.allocations[101]
	require.NotNil(t, alloc)
	assert.True(t, alloc.RuleID.Valid)
	assert.Equal(t, rule.RuleID, alloc.RuleID.Int64)
}

func TestApplyDryRunReturnsSimulationOnly(t *testing.T) {
	store, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	resp, err := svc.Apply(rule.RuleID, &models.ApplyRuleRequest{DryRun: true}, "system")
	require.NoError(t, err)
	assert.True(t, resp.DryRun)
	require.NotNil(t, resp.Simulation)
	assert.Len(t, resp.Simulation.Distribution, 6)
	assert.Equal(t, 0, resp.Applied)
	assert.Empty(t, store.allocations)
}

func TestApplyWithPercentages(t *testing.T) {
	store, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	resp, err := svc.Apply(rule.RuleID, &models.ApplyRuleRequest{
		AgentIDs:    []int64{1, 2},
		Percentages: []int{50, 50},
	}, "system")
	require.NoError(t, err)
	assert.Equal(t, 6, resp.Applied)
	assert.Equal(t, 3, store.agents[1].CurrentCaseCount)
	assert.Equal(t, 3, store.agents[2].CurrentCaseCount)
}

func TestApplyRejectsIneligibleExplicitAgent(t *testing.T) {
	_, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	// Agent 3 works NORTH and is not eligible under a KA rule.
	_, err := svc.Apply(rule.RuleID, &models.ApplyRuleRequest{
		AgentIDs:    []int64{1, 3},
		Percentages: []int{50, 50},
	}, "system")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestApplyHonorsCaseSubsetAndMaxCases(t *testing.T) {
	store, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	resp, err := svc.Apply(rule.RuleID, &models.ApplyRuleRequest{
		CaseIDs: []int64{101, 103},
	}, "system")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Applied)
	assert.Len(t, store.allocations, 2)

	// MaxCases caps the matched pool.
	_, svc2 := newRuleFixture()
	rule2 := activeGeographyRule(t, svc2, []string{"KA"})
	resp2, err := svc2.Apply(rule2.RuleID, &models.ApplyRuleRequest{MaxCases: 4}, "system")
	require.NoError(t, err)
	assert.Equal(t, 4, resp2.Applied)
}

func TestApplyCapacityBasedRule(t *testing.T) {
	store := newFakeStore()
	store.addAgent(1, "Asha", "SOUTH", "KA", 3, true)
	store.addAgent(2, "Ravi", "SOUTH", "KA", 8, true)
	for i := int64(101); i <= 109; i++ {
		store.addCase(i, "SOUTH", "KA")
	}
	allocation := NewAllocationService(store, store, store)
	svc := NewRuleService(store, store, store, allocation)

	rule, err := svc.CreateRule(&models.CreateRuleRequest{
		Name:     "fill by headroom",
		RuleType: models.RuleTypeCapacityBased,
		MaxCases: 9,
		Status:   models.RuleStatusActive,
	}, "system")
	require.NoError(t, err)

	resp, err := svc.Apply(rule.RuleID, nil, "system")
	require.NoError(t, err)
	assert.Equal(t, 9, resp.Applied)
	// Highest headroom fills first.
	assert.Equal(t, 8, store.agents[2].CurrentCaseCount)
	assert.Equal(t, 1, store.agents[1].CurrentCaseCount)
}

func TestDeactivateRuleIsSoft(t *testing.T) {
	_, svc := newRuleFixture()
	rule := activeGeographyRule(t, svc, []string{"KA"})

	require.NoError(t, svc.DeactivateRule(rule.RuleID))

	got, err := svc.GetRule(rule.RuleID)
	require.NoError(t, err)
	assert.Equal(t, models.RuleStatusInactive, got.Status)

	_, err = svc.Simulate(rule.RuleID, nil)
	assert.ErrorIs(t, err, ErrRuleNotActive)
}
