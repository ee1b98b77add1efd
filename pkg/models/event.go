package models

import "time"

// EventKind identifies one of the seven pipeline events the Event Bus
// routes between stages (spec §4.3).
type EventKind string

const (
	EventDevelopmentCompleted  EventKind = "DEVELOPMENT_COMPLETED"
	EventReviewCompleted       EventKind = "REVIEW_COMPLETED"
	EventMergeReady            EventKind = "MERGE_READY"
	EventMergeConflictDetected EventKind = "MERGE_CONFLICT_DETECTED"
	EventMergeCompleted        EventKind = "MERGE_COMPLETED"
	EventTaskFailed            EventKind = "TASK_FAILED"
	EventDependencyResolved    EventKind = "DEPENDENCY_RESOLVED"
)

// Valid returns true if k is one of the seven defined event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventDevelopmentCompleted, EventReviewCompleted, EventMergeReady,
		EventMergeConflictDetected, EventMergeCompleted, EventTaskFailed, EventDependencyResolved:
		return true
	default:
		return false
	}
}

// FailurePhase names the stage a terminal failure occurred in.
type FailurePhase string

const (
	PhaseDevelopment FailurePhase = "development"
	PhaseReview      FailurePhase = "review"
	PhaseMerge       FailurePhase = "merge"
)

// PipelineEvent is a discriminated record carrying a kind-specific
// payload. Only the fields relevant to Kind are populated; the rest are
// zero values. This mirrors the teacher's flat OrchestratorEvent struct
// (a big union of optional fields) rather than a Go sum type, since the
// Event Bus's listeners are registered per-kind and always know which
// fields apply.
type PipelineEvent struct {
	Kind      EventKind
	TaskID    string
	Timestamp time.Time

	// Task is the task payload, present on every event except
	// DEPENDENCY_RESOLVED.
	Task *Task

	// EngineerResult is present on DEVELOPMENT_COMPLETED, REVIEW_COMPLETED,
	// MERGE_READY, and MERGE_CONFLICT_DETECTED.
	EngineerResult *EngineerResult
	// EngineerID identifies which cached engineer session produced
	// EngineerResult.
	EngineerID string

	// ReviewResult is present on REVIEW_COMPLETED.
	ReviewResult *ReviewResult
	// ReviewHistory is the full review history, present on MERGE_READY and
	// MERGE_CONFLICT_DETECTED.
	ReviewHistory []ReviewResult
	// NeedsRevision is present on REVIEW_COMPLETED; true iff the verdict
	// is CHANGES_REQUESTED.
	NeedsRevision bool

	// Success is present on MERGE_COMPLETED; Error carries the failure
	// message on TASK_FAILED.
	Success bool
	Error   string

	// Phase is present on TASK_FAILED.
	Phase FailurePhase

	// MergedTaskID and NewlyReadyTasks are present on DEPENDENCY_RESOLVED.
	MergedTaskID    string
	NewlyReadyTasks []string
}
