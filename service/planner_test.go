package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/models"
)

func agentsWithCapacity(capacities ...int) []models.EligibleAgent {
	agents := make([]models.EligibleAgent, len(capacities))
	for i, c := range capacities {
		agents[i] = models.EligibleAgent{
			AgentID:           int64(i + 1),
			AvailableCapacity: c,
		}
	}
	return agents
}

func caseIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(100 + i)
	}
	return ids
}

func countByAgent(assignments []models.Assignment) map[int64]int {
	counts := make(map[int64]int)
	for _, a := range assignments {
		counts[a.AgentID]++
	}
	return counts
}

func TestPlanEvenSplitDistributesRoundRobin(t *testing.T) {
	result := PlanEvenSplit(caseIDs(9), agentsWithCapacity(10, 10, 10))
	assert.Empty(t, result.Unassigned)
	counts := countByAgent(result.Assignments)
	assert.Equal(t, 3, counts[1])
	assert.Equal(t, 3, counts[2])
	assert.Equal(t, 3, counts[3])
}

func TestPlanEvenSplitSkipsFullAgents(t *testing.T) {
	result := PlanEvenSplit(caseIDs(6), agentsWithCapacity(1, 10, 1))
	assert.Empty(t, result.Unassigned)
	counts := countByAgent(result.Assignments)
	assert.Equal(t, 1, counts[1])
	assert.Equal(t, 4, counts[2])
	assert.Equal(t, 1, counts[3])
}

func TestPlanEvenSplitLeavesOverflowUnassigned(t *testing.T) {
	result := PlanEvenSplit(caseIDs(5), agentsWithCapacity(1, 2))
	assert.Len(t, result.Assignments, 3)
	assert.Len(t, result.Unassigned, 2)
}

func TestPlanEvenSplitNoAgents(t *testing.T) {
	result := PlanEvenSplit(caseIDs(3), nil)
	assert.Empty(t, result.Assignments)
	assert.Len(t, result.Unassigned, 3)
}

func TestPlanPercentageSplitExact(t *testing.T) {
	result, err := PlanPercentageSplit(caseIDs(10), agentsWithCapacity(10, 10, 10), []int{30, 30, 40})
	require.NoError(t, err)
	assert.Empty(t, result.Unassigned)
	counts := countByAgent(result.Assignments)
	assert.Equal(t, 3, counts[1])
	assert.Equal(t, 3, counts[2])
	assert.Equal(t, 4, counts[3])
}

func TestPlanPercentageSplitRoundingRemainderGoesFirst(t *testing.T) {
	// 10 cases at 33/33/34: rounded shares 3+3+3, the leftover case lands on
	// the first agent.
	result, err := PlanPercentageSplit(caseIDs(10), agentsWithCapacity(10, 10, 10), []int{33, 33, 34})
	require.NoError(t, err)
	assert.Empty(t, result.Unassigned)
	counts := countByAgent(result.Assignments)
	assert.Equal(t, 10, counts[1]+counts[2]+counts[3])
	assert.GreaterOrEqual(t, counts[1], 3)
}

func TestPlanPercentageSplitValidation(t *testing.T) {
	tests := map[string]struct {
		percentages []int
	}{
		"sum below 100":   {percentages: []int{50, 40}},
		"sum above 100":   {percentages: []int{60, 50}},
		"negative share":  {percentages: []int{110, -10}},
		"length mismatch": {percentages: []int{100}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := PlanPercentageSplit(caseIDs(4), agentsWithCapacity(10, 10), tc.percentages)
			assert.Error(t, err)
		})
	}
}

func TestPlanPercentageSplitCappedByCapacity(t *testing.T) {
	result, err := PlanPercentageSplit(caseIDs(10), agentsWithCapacity(2, 10), []int{50, 50})
	require.NoError(t, err)
	counts := countByAgent(result.Assignments)
	assert.Equal(t, 2, counts[1])
	assert.Equal(t, 5, counts[2])
	assert.Len(t, result.Unassigned, 3)
}

func TestPlanCapacityFillPrefersHeadroom(t *testing.T) {
	result := PlanCapacityFill(caseIDs(7), agentsWithCapacity(2, 5, 3))
	assert.Empty(t, result.Unassigned)
	counts := countByAgent(result.Assignments)
	// Filled in descending headroom order: agent 2 first, then 3, then 1.
	assert.Equal(t, 5, counts[2])
	assert.Equal(t, 2, counts[3])
	assert.Equal(t, 0, counts[1])
}

func TestPlanCapacityFillLeavesLeftoversUnassigned(t *testing.T) {
	result := PlanCapacityFill(caseIDs(7), agentsWithCapacity(5))
	assert.Len(t, result.Assignments, 5)
	assert.Len(t, result.Unassigned, 2)
}
