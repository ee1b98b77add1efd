// Package models defines the data types that flow through the pipeline:
// tasks, the dependency DAG's node payload, engineer/review results, and
// pipeline events.
package models

import "time"

// TaskType tags what kind of change a task represents.
type TaskType string

const (
	TaskTypeFeature            TaskType = "feature"
	TaskTypeBugfix             TaskType = "bugfix"
	TaskTypeRefactor           TaskType = "refactor"
	TaskTypeTest               TaskType = "test"
	TaskTypeDocs               TaskType = "docs"
	TaskTypeConflictResolution TaskType = "conflict-resolution"
)

// Valid returns true if t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeFeature, TaskTypeBugfix, TaskTypeRefactor, TaskTypeTest, TaskTypeDocs, TaskTypeConflictResolution:
		return true
	default:
		return false
	}
}

// Priority is a numeric scheduling priority. Higher runs first; the
// development queue is a max-priority queue with FIFO tie-break.
type Priority int

const (
	PriorityLow    Priority = -50
	PriorityMedium Priority = 0
	PriorityHigh   Priority = 50
)

// TaskStatus is the task's lifecycle state, as held by the Dependency
// Manager.
type TaskStatus string

const (
	TaskStatusWaiting   TaskStatus = "waiting"
	TaskStatusReady     TaskStatus = "ready"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusDeveloped TaskStatus = "developed"
	TaskStatusReviewing TaskStatus = "reviewing"
	TaskStatusMerging   TaskStatus = "merging"
	TaskStatusMerged    TaskStatus = "merged"
	TaskStatusFailed    TaskStatus = "failed"
)

// Valid returns true if s is a known lifecycle state.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusWaiting, TaskStatusReady, TaskStatusRunning, TaskStatusDeveloped,
		TaskStatusReviewing, TaskStatusMerging, TaskStatusMerged, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a state the Dependency Manager will never
// transition out of.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusMerged || s == TaskStatusFailed
}

// ConflictResolutionInfo links a synthetic conflict-resolution task back
// to the original task it was generated for.
type ConflictResolutionInfo struct {
	// OriginalTaskID is the task this resolution task stands in for.
	OriginalTaskID string `json:"original_task_id"`
	// PriorEngineerResult is the engineer result from before the conflict.
	PriorEngineerResult *EngineerResult `json:"prior_engineer_result,omitempty"`
	// PriorReviews is the full review history accumulated before the conflict.
	PriorReviews []ReviewResult `json:"prior_reviews,omitempty"`
	// OriginatingEngineerID is the engineer session that produced the
	// pre-conflict work. Resolution always gets a fresh session, so this
	// is kept for audit only.
	OriginatingEngineerID string `json:"originating_engineer_id,omitempty"`
}

// Task is a single unit of work moving through the pipeline. A Task is
// created once by the planner and owned by the Pipeline Manager for its
// entire journey.
type Task struct {
	// ID is stable across requeues and revisions.
	ID          string   `json:"id"`
	Type        TaskType `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`

	// DependsOn lists task IDs that must be merged before this task runs.
	DependsOn []string `json:"depends_on,omitempty"`

	// Status is the current lifecycle state, owned by the Dependency Manager.
	Status TaskStatus `json:"status"`

	// BranchName and WorktreePath are set exactly once by the Worktree
	// Manager's acquire(); acquire itself never mutates the task, callers
	// assign these fields from the returned pair.
	BranchName   string `json:"branch_name,omitempty"`
	WorktreePath string `json:"worktree_path,omitempty"`

	// ConflictResolution is non-nil iff Type == TaskTypeConflictResolution.
	ConflictResolution *ConflictResolutionInfo `json:"conflict_resolution,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// RetryCount tracks development retries for this task's current attempt.
	RetryCount int `json:"retry_count,omitempty"`
	// ReviewRetryCount tracks review-requested-changes cycles.
	ReviewRetryCount int `json:"review_retry_count,omitempty"`
}

// IsConflictResolution reports whether t was synthesized to resolve a
// merge conflict.
func (t *Task) IsConflictResolution() bool {
	return t.Type == TaskTypeConflictResolution && t.ConflictResolution != nil
}

// EngineerResult is the outcome of one Agent Executor invocation by the
// Development Stage.
type EngineerResult struct {
	TaskID       string        `json:"task_id"`
	ExecutorID   string        `json:"executor_id"`
	Success      bool          `json:"success"`
	Transcript   string        `json:"transcript,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	ChangedFiles []string      `json:"changed_files,omitempty"`
	// NeedsReReview is set when this result came from a conflict
	// resolution task, so the Review Workflow cannot short-circuit it.
	NeedsReReview bool `json:"needs_re_review,omitempty"`

	// TokensUsed and Cost are ambient telemetry, not core pipeline state.
	TokensUsed int64   `json:"tokens_used,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
}

// Verdict is the TechLead's review outcome.
type Verdict string

const (
	VerdictApproved         Verdict = "APPROVED"
	VerdictChangesRequested Verdict = "CHANGES_REQUESTED"
	VerdictCommented        Verdict = "COMMENTED"
	VerdictError            Verdict = "ERROR"
)

// Valid returns true if v is a known verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictApproved, VerdictChangesRequested, VerdictCommented, VerdictError:
		return true
	default:
		return false
	}
}

// ReviewResult is the outcome of one Review Workflow pass.
type ReviewResult struct {
	TaskID     string        `json:"task_id"`
	Verdict    Verdict       `json:"verdict"`
	Comments   []string      `json:"comments,omitempty"`
	ReviewerID string        `json:"reviewer_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}
