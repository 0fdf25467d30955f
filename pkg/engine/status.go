package engine

import (
	"fmt"
)

// RunStatus represents the overall status of an apply run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every host completed its run list.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates no host completed its run list.
	RunStatusFailed RunStatus = "failed"

	// RunStatusPartial indicates some hosts completed and some failed.
	RunStatusPartial RunStatus = "partial"

	// RunStatusAborted indicates the run stopped after a host failure
	// before reaching every host.
	RunStatusAborted RunStatus = "aborted"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed ||
		s == RunStatusPartial || s == RunStatusAborted
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed,
		RunStatusPartial, RunStatusAborted:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// ItemStatus represents the outcome of one work item on one host.
type ItemStatus string

const (
	// ItemStatusCompleted indicates every lifecycle phase finished.
	ItemStatusCompleted ItemStatus = "completed"

	// ItemStatusFailed indicates a phase returned an error.
	ItemStatusFailed ItemStatus = "failed"

	// ItemStatusSkipped indicates an earlier item on the same host failed.
	ItemStatusSkipped ItemStatus = "skipped"
)

// IsSuccess returns true if the item ran to completion.
func (s ItemStatus) IsSuccess() bool {
	return s == ItemStatusCompleted
}

// Validate checks if the item status is valid.
func (s ItemStatus) Validate() error {
	switch s {
	case ItemStatusCompleted, ItemStatusFailed, ItemStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid item status: %s", s)
	}
}

// HostStatus represents the outcome of a host's run list.
type HostStatus string

const (
	// HostStatusSucceeded indicates every work item completed.
	HostStatusSucceeded HostStatus = "succeeded"

	// HostStatusFailed indicates the host stopped at a failing work item
	// or could not be reached.
	HostStatusFailed HostStatus = "failed"
)

// Phase names a step of the recipe lifecycle.
type Phase string

const (
	// PhasePreMessage looks up the text shown before applying.
	PhasePreMessage Phase = "pre_message"

	// PhasePreChecks runs the recipe's pre-apply checks.
	PhasePreChecks Phase = "pre_apply_checks"

	// PhaseApply performs the recipe's changes.
	PhaseApply Phase = "apply"

	// PhasePostMessage looks up the text shown after applying.
	PhasePostMessage Phase = "post_message"

	// PhaseCleanup runs the recipe's one-time cleanup action.
	PhaseCleanup Phase = "cleanup"
)

// Phases returns the lifecycle phases in execution order.
func Phases() []Phase {
	return []Phase{PhasePreMessage, PhasePreChecks, PhaseApply, PhasePostMessage}
}
