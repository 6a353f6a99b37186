package service

import (
	"fmt"
	"sort"
	"time"

	"caseflow/models"
	"caseflow/repository"
)

// fakeStore is an in-memory stand-in for all repository interfaces, enforcing
// the same invariants the MySQL layer does so orchestration tests exercise
// real decision paths.
type fakeStore struct {
	agents      map[int64]*models.Agent
	cases       map[int64]*models.Case
	allocations map[int64]*models.CaseAllocation // active only, keyed by case id
	history     map[int64][]models.AllocationHistory
	rules       map[int64]*models.AllocationRule
	batches     map[int64]*models.AllocationBatch
	batchErrors map[int64][]models.BatchError
	jobs        map[string]*models.ReallocationJob

	nextAllocationID int64
	nextRuleID       int64
	nextBatchID      int64
	seq              int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agents:      make(map[int64]*models.Agent),
		cases:       make(map[int64]*models.Case),
		allocations: make(map[int64]*models.CaseAllocation),
		history:     make(map[int64][]models.AllocationHistory),
		rules:       make(map[int64]*models.AllocationRule),
		batches:     make(map[int64]*models.AllocationBatch),
		batchErrors: make(map[int64][]models.BatchError),
		jobs:        make(map[string]*models.ReallocationJob),
	}
}

func (f *fakeStore) addAgent(id int64, name, geography, state string, capacity int, active bool) {
	a := &models.Agent{
		AgentID:   id,
		Name:      name,
		Geography: geography,
		Capacity:  capacity,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
	a.State.String = state
	a.State.Valid = state != ""
	f.agents[id] = a
}

func (f *fakeStore) addCase(id int64, geography, state string) {
	c := &models.Case{
		CaseID:         id,
		ExternalCaseID: fmt.Sprintf("EXT-%d", id),
		Geography:      geography,
		CreatedAt:      time.Now(),
	}
	c.State.String = state
	c.State.Valid = state != ""
	f.cases[id] = c
}

// AllocationStore

func (f *fakeStore) GetActiveAllocation(caseID int64) (*models.CaseAllocation, error) {
	alloc, ok := f.allocations[caseID]
	if !ok {
		return nil, nil
	}
	copied := *alloc
	return &copied, nil
}

func (f *fakeStore) Allocate(p repository.AllocateParams) (*models.CaseAllocation, bool, bool, error) {
	c, ok := f.cases[p.CaseID]
	if !ok {
		return nil, false, false, fmt.Errorf("case %d: %w", p.CaseID, repository.ErrCaseNotFound)
	}

	current := f.allocations[p.CaseID]
	if current != nil && current.PrimaryAgentID == p.AgentID {
		copied := *current
		return &copied, false, true, nil
	}

	agent, ok := f.agents[p.AgentID]
	if !ok {
		return nil, false, false, fmt.Errorf("agent %d: %w", p.AgentID, repository.ErrAgentNotFound)
	}
	if !agent.IsActive {
		return nil, false, false, fmt.Errorf("agent %d: %w", p.AgentID, repository.ErrAgentInactive)
	}
	if agent.CurrentCaseCount >= agent.Capacity {
		return nil, false, false, fmt.Errorf("agent %d: %w", p.AgentID, repository.ErrCapacityExceeded)
	}

	reallocated := current != nil
	entry := models.AllocationHistory{
		CaseID:    p.CaseID,
		Action:    models.ActionAllocate,
		OwnerType: models.OwnerTypeAgent,
		Actor:     p.Actor,
		CreatedAt: time.Now(),
	}
	entry.NewOwnerID.Int64 = p.AgentID
	entry.NewOwnerID.Valid = true
	if reallocated {
		if prev, ok := f.agents[current.PrimaryAgentID]; ok {
			prev.CurrentCaseCount--
		}
		entry.Action = models.ActionReallocate
		entry.PreviousOwnerID.Int64 = current.PrimaryAgentID
		entry.PreviousOwnerID.Valid = true
	}

	allocationType := p.AllocationType
	if allocationType == "" {
		allocationType = models.AllocationTypePrimary
	}
	percentage := p.Percentage
	if percentage == 0 {
		percentage = 100
	}
	f.nextAllocationID++
	alloc := &models.CaseAllocation{
		AllocationID:       f.nextAllocationID,
		CaseID:             p.CaseID,
		ExternalCaseID:     c.ExternalCaseID,
		PrimaryAgentID:     p.AgentID,
		AllocationType:     allocationType,
		WorkloadPercentage: percentage,
		Geography:          c.Geography,
		Status:             models.AllocationStatusAllocated,
		AllocatedBy:        p.Actor,
		AllocatedAt:        time.Now(),
	}
	if p.BatchID != nil {
		alloc.BatchID.Int64 = *p.BatchID
		alloc.BatchID.Valid = true
	}
	if p.RuleID != nil {
		alloc.RuleID.Int64 = *p.RuleID
		alloc.RuleID.Valid = true
	}
	f.allocations[p.CaseID] = alloc
	agent.CurrentCaseCount++
	c.IsAllocated = true
	f.history[p.CaseID] = append(f.history[p.CaseID], entry)

	copied := *alloc
	return &copied, reallocated, false, nil
}

func (f *fakeStore) Deallocate(caseID int64, reason, actor string, batchID *int64) error {
	if _, ok := f.cases[caseID]; !ok {
		return fmt.Errorf("case %d: %w", caseID, repository.ErrCaseNotFound)
	}
	current, ok := f.allocations[caseID]
	if !ok {
		return fmt.Errorf("case %d: %w", caseID, repository.ErrNotAllocated)
	}
	if agent, ok := f.agents[current.PrimaryAgentID]; ok {
		agent.CurrentCaseCount--
	}
	delete(f.allocations, caseID)
	f.cases[caseID].IsAllocated = false

	entry := models.AllocationHistory{
		CaseID:    caseID,
		Action:    models.ActionDeallocate,
		OwnerType: models.OwnerTypeAgent,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
	entry.PreviousOwnerID.Int64 = current.PrimaryAgentID
	entry.PreviousOwnerID.Valid = true
	f.history[caseID] = append(f.history[caseID], entry)
	return nil
}

func (f *fakeStore) GetHistory(caseID int64) ([]models.AllocationHistory, error) {
	entries := f.history[caseID]
	out := make([]models.AllocationHistory, len(entries))
	for i := range entries {
		out[len(entries)-1-i] = entries[i] // newest first
	}
	return out, nil
}

func (f *fakeStore) ListActiveCaseIDsByAgent(agentID int64) ([]int64, error) {
	var ids []int64
	for caseID, alloc := range f.allocations {
		if alloc.PrimaryAgentID == agentID {
			ids = append(ids, caseID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) ListActiveCaseIDsByFilter(filters []models.FilterCriterion) ([]int64, error) {
	var ids []int64
	for caseID := range f.allocations {
		c := f.cases[caseID]
		match := true
		for _, filter := range filters {
			if filter.Field == "geography" && c.Geography != filter.TextValue {
				match = false
			}
		}
		if match {
			ids = append(ids, caseID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) GetWorkloads(agentID *int64, geography string) ([]models.AgentWorkload, error) {
	var out []models.AgentWorkload
	for _, a := range f.agents {
		if agentID != nil && a.AgentID != *agentID {
			continue
		}
		if geography != "" && a.Geography != geography {
			continue
		}
		w := models.AgentWorkload{
			AgentID:           a.AgentID,
			AgentName:         a.Name,
			Geography:         a.Geography,
			Capacity:          a.Capacity,
			ActiveAllocations: a.CurrentCaseCount,
			AvailableCapacity: a.AvailableCapacity(),
		}
		if a.Capacity > 0 {
			w.UtilizationPercent = float64(a.CurrentCaseCount) * 100 / float64(a.Capacity)
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (f *fakeStore) ListActiveAllocationsByBatch(batchID int64) ([]models.CaseAllocation, error) {
	var out []models.CaseAllocation
	for _, alloc := range f.allocations {
		if alloc.BatchID.Valid && alloc.BatchID.Int64 == batchID {
			out = append(out, *alloc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out, nil
}

// AgentDirectory

func (f *fakeStore) GetAgentByID(agentID int64) (*models.Agent, error) {
	agent, ok := f.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %d: %w", agentID, repository.ErrAgentNotFound)
	}
	copied := *agent
	return &copied, nil
}

func (f *fakeStore) ListActiveAgentsByGeography(states, cities []string) ([]models.Agent, error) {
	match := func(a *models.Agent) bool {
		for _, s := range states {
			if a.State.Valid && a.State.String == s {
				return true
			}
		}
		for _, c := range cities {
			if a.City.Valid && a.City.String == c {
				return true
			}
		}
		return false
	}
	var out []models.Agent
	for _, a := range f.agents {
		if a.IsActive && a.AvailableCapacity() > 0 && match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (f *fakeStore) ListActiveAgentsByCapacity() ([]models.Agent, error) {
	var out []models.Agent
	for _, a := range f.agents {
		if a.IsActive && a.AvailableCapacity() > 0 {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvailableCapacity() != out[j].AvailableCapacity() {
			return out[i].AvailableCapacity() > out[j].AvailableCapacity()
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out, nil
}

// CaseDirectory

func (f *fakeStore) GetCaseByID(caseID int64) (*models.Case, error) {
	c, ok := f.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("case %d: %w", caseID, repository.ErrCaseNotFound)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) ListUnallocatedByGeography(states, cities []string, limit int) ([]models.Case, error) {
	match := func(c *models.Case) bool {
		for _, s := range states {
			if c.State.Valid && c.State.String == s {
				return true
			}
		}
		for _, city := range cities {
			if c.City.Valid && c.City.String == city {
				return true
			}
		}
		return false
	}
	var out []models.Case
	for _, c := range f.cases {
		if !c.IsAllocated && match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListUnallocated(limit int) ([]models.Case, error) {
	var out []models.Case
	for _, c := range f.cases {
		if !c.IsAllocated {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateContact(caseID int64, u *repository.ContactUpdate) error {
	c, ok := f.cases[caseID]
	if !ok {
		return fmt.Errorf("case %d: %w", caseID, repository.ErrCaseNotFound)
	}
	set := func(dst *string, valid *bool, v string) {
		if v != "" {
			*dst = v
			*valid = true
		}
	}
	set(&c.CustomerName.String, &c.CustomerName.Valid, u.CustomerName)
	set(&c.MobileNumber.String, &c.MobileNumber.Valid, u.MobileNumber)
	set(&c.AlternateMobile.String, &c.AlternateMobile.Valid, u.AlternateMobile)
	set(&c.Email.String, &c.Email.Valid, u.Email)
	set(&c.AlternateEmail.String, &c.AlternateEmail.Valid, u.AlternateEmail)
	set(&c.Address.String, &c.Address.Valid, u.Address)
	set(&c.City.String, &c.City.Valid, u.City)
	set(&c.State.String, &c.State.Valid, u.State)
	set(&c.Pincode.String, &c.Pincode.Valid, u.Pincode)
	return nil
}

// RuleStore

func (f *fakeStore) CreateRule(rule *models.AllocationRule) error {
	f.nextRuleID++
	rule.RuleID = f.nextRuleID
	rule.CreatedAt = time.Now()
	copied := *rule
	f.rules[rule.RuleID] = &copied
	return nil
}

func (f *fakeStore) GetRuleByID(ruleID int64) (*models.AllocationRule, error) {
	rule, ok := f.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %d: %w", ruleID, repository.ErrRuleNotFound)
	}
	copied := *rule
	return &copied, nil
}

func (f *fakeStore) ListRules() ([]models.AllocationRule, error) {
	var out []models.AllocationRule
	for _, rule := range f.rules {
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out, nil
}

func (f *fakeStore) UpdateRule(rule *models.AllocationRule) error {
	if _, ok := f.rules[rule.RuleID]; !ok {
		return fmt.Errorf("rule %d: %w", rule.RuleID, repository.ErrRuleNotFound)
	}
	copied := *rule
	f.rules[rule.RuleID] = &copied
	return nil
}

func (f *fakeStore) DeactivateRule(ruleID int64) error {
	rule, ok := f.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %d: %w", ruleID, repository.ErrRuleNotFound)
	}
	rule.Status = models.RuleStatusInactive
	return nil
}

// BatchStore

func (f *fakeStore) GenerateBatchNumber() string {
	f.seq++
	return fmt.Sprintf("BATCH-TEST-%04d", f.seq)
}

func (f *fakeStore) GenerateJobID() string {
	f.seq++
	return fmt.Sprintf("JOB-TEST-%04d", f.seq)
}

func (f *fakeStore) CreateBatch(batch *models.AllocationBatch) error {
	f.nextBatchID++
	batch.BatchID = f.nextBatchID
	batch.CreatedAt = time.Now()
	copied := *batch
	f.batches[batch.BatchID] = &copied
	return nil
}

func (f *fakeStore) GetBatchByID(batchID int64) (*models.AllocationBatch, error) {
	batch, ok := f.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %d: %w", batchID, repository.ErrBatchNotFound)
	}
	copied := *batch
	return &copied, nil
}

func (f *fakeStore) ClaimNextUploadedBatch() (*models.AllocationBatch, error) {
	var ids []int64
	for id, batch := range f.batches {
		if batch.Status == models.BatchStatusUploaded {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	batch := f.batches[ids[0]]
	batch.Status = models.BatchStatusProcessing
	batch.ProcessingStartedAt.Time = time.Now()
	batch.ProcessingStartedAt.Valid = true
	copied := *batch
	return &copied, nil
}

func (f *fakeStore) UpdateBatchTotals(batchID int64, total, successful, failed int) error {
	batch, ok := f.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %d: %w", batchID, repository.ErrBatchNotFound)
	}
	batch.TotalCases = total
	batch.SuccessfulAllocations = successful
	batch.FailedAllocations = failed
	return nil
}

func (f *fakeStore) FinalizeBatch(batchID int64, status models.BatchStatus, total, successful, failed int) error {
	batch, ok := f.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %d: %w", batchID, repository.ErrBatchNotFound)
	}
	if batch.Status.IsTerminal() {
		return fmt.Errorf("batch %d already terminal (%s)", batchID, batch.Status)
	}
	batch.Status = status
	batch.TotalCases = total
	batch.SuccessfulAllocations = successful
	batch.FailedAllocations = failed
	batch.CompletedAt.Time = time.Now()
	batch.CompletedAt.Valid = true
	return nil
}

func (f *fakeStore) ListStaleProcessingBatches(olderThan time.Duration) ([]models.AllocationBatch, error) {
	cutoff := time.Now().Add(-olderThan)
	var out []models.AllocationBatch
	for _, batch := range f.batches {
		if batch.Status == models.BatchStatusProcessing &&
			batch.ProcessingStartedAt.Valid && batch.ProcessingStartedAt.Time.Before(cutoff) {
			out = append(out, *batch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })
	return out, nil
}

func (f *fakeStore) InsertBatchError(e *models.BatchError) error {
	e.CreatedAt = time.Now()
	f.batchErrors[e.BatchID] = append(f.batchErrors[e.BatchID], *e)
	return nil
}

func (f *fakeStore) ListErrorsByBatch(batchID int64) ([]models.BatchError, error) {
	errs := append([]models.BatchError(nil), f.batchErrors[batchID]...)
	sort.Slice(errs, func(i, j int) bool { return errs[i].RowNumber < errs[j].RowNumber })
	return errs, nil
}

func (f *fakeStore) GetRangeCounts(from, to time.Time) (*repository.RangeCounts, error) {
	counts := &repository.RangeCounts{
		ByErrorType: make(map[models.ErrorType]int),
		DailyErrors: make(map[string]int),
	}
	for _, batch := range f.batches {
		if !batch.Status.IsTerminal() || batch.CreatedAt.Before(from) || batch.CreatedAt.After(to) {
			continue
		}
		counts.BatchesProcessed++
		if len(f.batchErrors[batch.BatchID]) > 0 {
			counts.BatchesWithErrors++
		}
		for _, e := range f.batchErrors[batch.BatchID] {
			counts.TotalErrors++
			counts.ByErrorType[e.ErrorType]++
			counts.DailyErrors[e.CreatedAt.Format("2006-01-02")]++
		}
	}
	return counts, nil
}

func (f *fakeStore) CreateJob(job *models.ReallocationJob) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	job.CreatedAt = time.Now()
	copied := *job
	f.jobs[job.JobID] = &copied
	return nil
}

func (f *fakeStore) GetJobByID(jobID string) (*models.ReallocationJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, repository.ErrJobNotFound)
	}
	copied := *job
	return &copied, nil
}

func (f *fakeStore) ClaimNextPendingJob() (*models.ReallocationJob, error) {
	var ids []string
	for id, job := range f.jobs {
		if job.Status == models.JobStatusPending {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	job := f.jobs[ids[0]]
	job.Status = models.JobStatusRunning
	copied := *job
	return &copied, nil
}

func (f *fakeStore) CompleteJob(jobID string, moved, failed int, status models.JobStatus, errorMessage string) error {
	job, ok := f.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, repository.ErrJobNotFound)
	}
	job.MovedCases = moved
	job.FailedCases = failed
	job.Status = status
	job.ErrorMessage.String = errorMessage
	job.ErrorMessage.Valid = errorMessage != ""
	job.CompletedAt.Time = time.Now()
	job.CompletedAt.Valid = true
	return nil
}
