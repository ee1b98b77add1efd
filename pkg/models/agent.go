package models

import "time"

// EngineerSessionStatus is the lifecycle of a cached engineer instance.
type EngineerSessionStatus string

const (
	// EngineerSessionPending indicates the session has not started.
	EngineerSessionPending EngineerSessionStatus = "pending"
	// EngineerSessionRunning indicates the session is actively working.
	EngineerSessionRunning EngineerSessionStatus = "running"
	// EngineerSessionDone indicates the session completed its work.
	EngineerSessionDone EngineerSessionStatus = "done"
	// EngineerSessionFailed indicates the session encountered an error.
	EngineerSessionFailed EngineerSessionStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s EngineerSessionStatus) Valid() bool {
	switch s {
	case EngineerSessionPending, EngineerSessionRunning, EngineerSessionDone, EngineerSessionFailed:
		return true
	default:
		return false
	}
}

// EngineerSession is a cached, resumable agent-executor session bound to a
// single task. Spec §3 requires engineer instances to be cached per task
// so a stateful agent session survives development -> review -> revision
// cycles, and discarded on terminal merge success or terminal failure. The
// pipeline does not store this type: its Development Stage caches a task
// ID -> resume-handle string map. A Task never embeds its session directly.
type EngineerSession struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// TaskID is the ID of the task this session is bound to.
	TaskID string `json:"task_id"`
	// Status is the current state of the session.
	Status EngineerSessionStatus `json:"status"`
	// WorktreePath is the path to the session's git worktree.
	WorktreePath string `json:"worktree_path,omitempty"`
	// PID is the process ID backing this session, if subprocess-based.
	PID int `json:"pid,omitempty"`
	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// ResumeHandle is the opaque prior-session handle the Agent Executor
	// returned, threaded into the next invocation so context survives a
	// revision cycle. Left empty for conflict-resolution tasks, which
	// always get a fresh session per spec §4.4.
	ResumeHandle string `json:"resume_handle,omitempty"`

	// TokensUsed and Cost are cumulative ambient telemetry for this session.
	TokensUsed int64   `json:"tokens_used"`
	Cost       float64 `json:"cost"`
}
