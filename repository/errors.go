package repository

import "errors"

// Sentinel errors surfaced by repositories. Services and handlers classify
// failures with errors.Is instead of matching message strings.
var (
	ErrCaseNotFound     = errors.New("case not found")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrAgentInactive    = errors.New("agent is not active")
	ErrCapacityExceeded = errors.New("agent capacity exceeded")
	ErrNotAllocated     = errors.New("case has no active allocation")
	ErrRuleNotFound     = errors.New("rule not found")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrConflict         = errors.New("concurrent allocation conflict")
)
