package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kugutsu/pipeline/internal/agent"
	"github.com/kugutsu/pipeline/pkg/models"
)

// Config configures a Workflow.
type Config struct {
	// MaxRetries bounds how many CHANGES_REQUESTED cycles a task may go
	// through before the Pipeline Manager treats it as terminal (spec §9:
	// standardized on 5, exposed here rather than hardcoded).
	MaxRetries int
	// DefaultVerdict is the fallback the keyword pass returns when neither
	// an explicit header nor a keyword matched (spec §9 Open Questions:
	// preserved as APPROVED by default, but configurable).
	DefaultVerdict models.Verdict
	// MaxTurns bounds the TechLead's Agent Executor invocation.
	MaxTurns int
	// ToolAllowList restricts what the TechLead role may invoke; reviews
	// are typically read-only.
	ToolAllowList []string
}

// DefaultMaxRetries is spec §9's standardized review-retry cap.
const DefaultMaxRetries = 5

// Workflow runs one TechLead review attempt per task (spec §4.5). It is
// stateless across tasks: every Run call instantiates a fresh,
// short-lived reviewer invocation.
type Workflow struct {
	executor agent.Executor
	cfg      Config
}

// New creates a Workflow. A zero-value MaxRetries defaults to
// DefaultMaxRetries, and a zero-value DefaultVerdict defaults to
// APPROVED.
func New(executor agent.Executor, cfg Config) *Workflow {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.DefaultVerdict == "" {
		cfg.DefaultVerdict = models.VerdictApproved
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	return &Workflow{executor: executor, cfg: cfg}
}

// Run executes one review attempt for task against engineerResult and
// returns the parsed verdict.
func (w *Workflow) Run(ctx context.Context, task *models.Task, engineerResult *models.EngineerResult) models.ReviewResult {
	started := time.Now()
	prompt := buildReviewPrompt(task, engineerResult)

	messages, results := w.executor.Execute(ctx, prompt, agent.Options{
		WorkingDirectory: task.WorktreePath,
		MaxTurns:         w.cfg.MaxTurns,
		ToolAllowList:     w.cfg.ToolAllowList,
	})

	var transcript string
	for m := range messages {
		if m.Kind == agent.MessageAssistantText {
			transcript += m.Text
		}
	}
	result := <-results

	if !result.Success {
		errMsg := "techlead review failed"
		if result.Error != nil {
			errMsg = result.Error.Error()
		}
		return models.ReviewResult{
			TaskID:    task.ID,
			Verdict:   models.VerdictError,
			Error:     errMsg,
			Timestamp: started,
			Duration:  time.Since(started),
		}
	}

	verdict := ParseVerdict(transcript, w.cfg.DefaultVerdict)
	return models.ReviewResult{
		TaskID:     task.ID,
		Verdict:    verdict,
		Comments:   extractComments(transcript),
		ReviewerID: "techlead",
		Timestamp:  started,
		Duration:   time.Since(started),
	}
}

// ExceedsRetryLimit reports whether task has already gone through the
// maximum number of review-requested revision cycles.
func (w *Workflow) ExceedsRetryLimit(task *models.Task) bool {
	return task.ReviewRetryCount >= w.cfg.MaxRetries
}

func buildReviewPrompt(task *models.Task, result *models.EngineerResult) string {
	return fmt.Sprintf(`You are the TechLead reviewing a completed task.

TASK: %s
%s

ENGINEER TRANSCRIPT:
%s

CHANGED FILES:
%v

State your verdict on its own line as:
レビュー結果: APPROVED
レビュー結果: CHANGES_REQUESTED
レビュー結果: COMMENTED

If CHANGES_REQUESTED, list each requested change on its own line prefixed "COMMENT:".`,
		task.Title, task.Description, result.Transcript, result.ChangedFiles)
}

func extractComments(transcript string) []string {
	var comments []string
	for _, line := range strings.Split(transcript, "\n") {
		const prefix = "COMMENT:"
		if strings.HasPrefix(line, prefix) {
			comments = append(comments, strings.TrimSpace(strings.TrimPrefix(line, prefix)))
		}
	}
	return comments
}
