package service

import (
	"fmt"
	"math"
	"sort"

	"caseflow/models"
)

// PlanResult is a computed case→agent distribution. Cases that no agent had
// headroom for are reported in Unassigned, never silently dropped.
type PlanResult struct {
	Assignments []models.Assignment
	Unassigned  []int64
}

// PlanEvenSplit distributes cases round-robin across the agents until each
// agent reaches its available capacity or the cases run out.
func PlanEvenSplit(caseIDs []int64, agents []models.EligibleAgent) PlanResult {
	var result PlanResult
	if len(agents) == 0 {
		result.Unassigned = append(result.Unassigned, caseIDs...)
		return result
	}

	remaining := make([]int, len(agents))
	for i, a := range agents {
		remaining[i] = a.AvailableCapacity
	}

	next := 0
	for _, caseID := range caseIDs {
		assigned := false
		// One full cycle over the agents starting from the round-robin cursor.
		for probe := 0; probe < len(agents); probe++ {
			idx := (next + probe) % len(agents)
			if remaining[idx] > 0 {
				result.Assignments = append(result.Assignments, models.Assignment{
					CaseID:  caseID,
					AgentID: agents[idx].AgentID,
				})
				remaining[idx]--
				next = (idx + 1) % len(agents)
				assigned = true
				break
			}
		}
		if !assigned {
			result.Unassigned = append(result.Unassigned, caseID)
		}
	}
	return result
}

// PlanPercentageSplit distributes cases by caller-supplied percentages, which
// must sum to 100. Per-agent targets are rounded; the rounding remainder is
// applied to the first agent so every case is distributed exactly once.
// Targets are still capped by available capacity; capped-off cases are
// reported unassigned.
func PlanPercentageSplit(caseIDs []int64, agents []models.EligibleAgent, percentages []int) (PlanResult, error) {
	var result PlanResult
	if len(agents) != len(percentages) {
		return result, fmt.Errorf("got %d agents but %d percentages", len(agents), len(percentages))
	}
	if len(agents) == 0 {
		return result, fmt.Errorf("percentage split requires at least one agent")
	}
	sum := 0
	for _, p := range percentages {
		if p < 0 {
			return result, fmt.Errorf("percentage must not be negative, got %d", p)
		}
		sum += p
	}
	if sum != 100 {
		return result, fmt.Errorf("percentages must sum to 100, got %d", sum)
	}

	total := len(caseIDs)
	targets := make([]int, len(agents))
	allocatedShares := 0
	for i, p := range percentages {
		targets[i] = int(math.Round(float64(total) * float64(p) / 100))
		allocatedShares += targets[i]
	}
	// Rounding drift lands on the first agent so the shares sum to the total.
	targets[0] += total - allocatedShares
	if targets[0] < 0 {
		targets[0] = 0
	}

	cursor := 0
	for i, agent := range agents {
		take := targets[i]
		if take > agent.AvailableCapacity {
			take = agent.AvailableCapacity
		}
		for n := 0; n < take && cursor < total; n++ {
			result.Assignments = append(result.Assignments, models.Assignment{
				CaseID:  caseIDs[cursor],
				AgentID: agent.AgentID,
			})
			cursor++
		}
	}
	result.Unassigned = append(result.Unassigned, caseIDs[cursor:]...)
	return result, nil
}

// PlanCapacityFill sorts agents by available capacity descending and fills
// each to capacity before moving to the next. Leftover cases once every agent
// is full are reported unassigned.
func PlanCapacityFill(caseIDs []int64, agents []models.EligibleAgent) PlanResult {
	var result PlanResult

	ranked := make([]models.EligibleAgent, len(agents))
	copy(ranked, agents)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AvailableCapacity > ranked[j].AvailableCapacity
	})

	cursor := 0
	for _, agent := range ranked {
		for n := 0; n < agent.AvailableCapacity && cursor < len(caseIDs); n++ {
			result.Assignments = append(result.Assignments, models.Assignment{
				CaseID:  caseIDs[cursor],
				AgentID: agent.AgentID,
			})
			cursor++
		}
	}
	result.Unassigned = append(result.Unassigned, caseIDs[cursor:]...)
	return result
}
