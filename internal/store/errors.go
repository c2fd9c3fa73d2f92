package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrRunAlreadyActive is returned when a running overnight run already exists.
// The singleton is enforced by a partial unique index, so two concurrent starts
// cannot both succeed.
var ErrRunAlreadyActive = errors.New("an overnight run is already active")

// ProtectedAgentError is returned when a caller tries to disable the orchestrator profile.
type ProtectedAgentError struct {
	AgentID string
}

func (e *ProtectedAgentError) Error() string {
	return fmt.Sprintf("agent %q is the orchestrator and cannot be disabled", e.AgentID)
}

// IllegalTransitionError is returned when a suggestion status change is not in the
// allowed-transition table.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal suggestion transition %s -> %s", e.From, e.To)
}
