package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kugutsu/pipeline/internal/depgraph"
	"github.com/kugutsu/pipeline/internal/eventbus"
	"github.com/kugutsu/pipeline/internal/gitrunner"
	"github.com/kugutsu/pipeline/internal/mergecoord"
	"github.com/kugutsu/pipeline/internal/review"
	"github.com/kugutsu/pipeline/internal/worktree"
	"github.com/kugutsu/pipeline/pkg/models"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	DevStage     *DevStage
	ReviewStage  *ReviewStage
	MergeCoord   *mergecoord.Coordinator
	Review       *review.Workflow
	Graph        *depgraph.Graph
	Worktrees    *worktree.Manager
	Bus          *eventbus.Bus
	Completion   *CompletionReporter
	NewGitRunner func(workdir string) gitrunner.Runner
}

// Manager is the Pipeline Manager (spec §4.7): it holds the three stage
// queues, the Worktree Manager, the Dependency Manager, and the Event
// Bus, and wires the event table that drives a task from development
// through review to merge.
type Manager struct {
	dev         *DevStage
	reviewStage *ReviewStage
	merge       *mergecoord.Coordinator
	review      *review.Workflow
	graph       *depgraph.Graph
	worktrees   *worktree.Manager
	bus         *eventbus.Bus
	completion  *CompletionReporter
	newGit      func(string) gitrunner.Runner

	mu              sync.Mutex
	reviewHistories map[string][]models.ReviewResult
}

// New creates a Manager, registers its event listeners, and admits
// every initially-ready task to the Development Stage.
func New(cfg ManagerConfig) *Manager {
	if cfg.NewGitRunner == nil {
		cfg.NewGitRunner = func(dir string) gitrunner.Runner { return gitrunner.NewRunner(dir) }
	}
	if cfg.Completion == nil {
		cfg.Completion = NewCompletionReporter()
	}
	m := &Manager{
		dev:             cfg.DevStage,
		reviewStage:     cfg.ReviewStage,
		merge:           cfg.MergeCoord,
		review:          cfg.Review,
		graph:           cfg.Graph,
		worktrees:       cfg.Worktrees,
		bus:             cfg.Bus,
		completion:      cfg.Completion,
		newGit:          cfg.NewGitRunner,
		reviewHistories: make(map[string][]models.ReviewResult),
	}
	m.registerListeners()
	for _, task := range m.graph.ReadyTasks() {
		m.admitToDevelopment(task)
	}
	return m
}

func (m *Manager) registerListeners() {
	m.bus.Subscribe(models.EventDevelopmentCompleted, m.onDevelopmentCompleted)
	m.bus.Subscribe(models.EventReviewCompleted, m.onReviewCompleted)
	m.bus.Subscribe(models.EventMergeReady, m.onMergeReady)
	m.bus.Subscribe(models.EventMergeCompleted, m.onMergeCompleted)
	m.bus.Subscribe(models.EventTaskFailed, m.onTaskFailed)
}

// Completion returns the Manager's Completion Reporter.
func (m *Manager) Completion() *CompletionReporter { return m.completion }

// WaitForCompletion blocks until every loaded task has reached a
// terminal state (merged or failed).
func (m *Manager) WaitForCompletion() {
	const pollInterval = 50 * time.Millisecond
	for !m.graph.AllTerminal() {
		time.Sleep(pollInterval)
	}
}

// Close stops every stage's worker pool and the merge coordinator.
func (m *Manager) Close() {
	m.dev.Close()
	m.reviewStage.Close()
	m.merge.Close()
}

func (m *Manager) admitToDevelopment(task *models.Task) {
	if err := m.graph.MarkRunning(task.ID); err != nil {
		return
	}
	m.dev.Enqueue(task)
}

func (m *Manager) historyFor(taskID string) []models.ReviewResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ReviewResult(nil), m.reviewHistories[taskID]...)
}

func (m *Manager) onDevelopmentCompleted(e models.PipelineEvent) error {
	if err := m.graph.MarkDeveloped(e.TaskID); err != nil {
		return err
	}
	if err := m.graph.MarkReviewing(e.TaskID); err != nil {
		return err
	}
	m.reviewStage.Enqueue(ReviewItem{Task: e.Task, EngineerResult: e.EngineerResult})
	return nil
}

func (m *Manager) onReviewCompleted(e models.PipelineEvent) error {
	m.mu.Lock()
	m.reviewHistories[e.TaskID] = append(m.reviewHistories[e.TaskID], *e.ReviewResult)
	m.mu.Unlock()

	if e.NeedsRevision {
		if m.review.ExceedsRetryLimit(e.Task) {
			m.bus.Emit(models.PipelineEvent{
				Kind: models.EventTaskFailed, TaskID: e.TaskID, Timestamp: time.Now(),
				Task: e.Task, Phase: models.PhaseReview, Error: "review retry limit exceeded",
			})
			return nil
		}
		e.Task.ReviewRetryCount++
		e.Task.Title = "[修正] " + e.Task.Title
		for _, c := range e.ReviewResult.Comments {
			e.Task.Description += "\n\nReview comment: " + c
		}

		if err := m.graph.MarkRunning(e.TaskID); err != nil {
			return err
		}
		m.dev.Enqueue(e.Task)
		return nil
	}

	m.bus.Emit(models.PipelineEvent{
		Kind: models.EventMergeReady, TaskID: e.TaskID, Timestamp: time.Now(),
		Task: e.Task, EngineerResult: e.EngineerResult, ReviewHistory: m.historyFor(e.TaskID),
	})
	return nil
}

func (m *Manager) onMergeReady(e models.PipelineEvent) error {
	if err := m.graph.MarkMerging(e.TaskID); err != nil {
		return err
	}

	worktreeGit := m.newGit(e.Task.WorktreePath)
	outcome := m.merge.Merge(context.Background(), &mergecoord.Request{
		Task:          e.Task,
		WorktreeGit:   worktreeGit,
		FeatureBranch: e.Task.BranchName,
	})

	switch {
	case outcome.Conflict:
		m.spawnConflictResolution(e, outcome)
	case outcome.Success:
		m.bus.Emit(models.PipelineEvent{
			Kind: models.EventMergeCompleted, TaskID: e.TaskID, Timestamp: time.Now(),
			Task: e.Task, Success: true,
		})
	default:
		errMsg := "merge failed"
		if outcome.Error != nil {
			errMsg = outcome.Error.Error()
		}
		m.bus.Emit(models.PipelineEvent{
			Kind: models.EventTaskFailed, TaskID: e.TaskID, Timestamp: time.Now(),
			Task: e.Task, Phase: models.PhaseMerge, Error: errMsg,
		})
	}
	return nil
}

// spawnConflictResolution synthesizes a fresh conflict-resolution task
// for the conflicted task, aliased back to it so MarkMerged promotes
// the original task's dependents once the resolution task merges (spec
// §9's conflict-resolution design note). It reuses the original task's
// worktree and branch directly rather than acquiring a new one, since
// the conflict lives in that same working tree.
func (m *Manager) spawnConflictResolution(e models.PipelineEvent, outcome mergecoord.Outcome) {
	resolution := &models.Task{
		ID:           uuid.NewString(),
		Type:         models.TaskTypeConflictResolution,
		Title:        fmt.Sprintf("[conflict-resolution] %s", e.Task.Title),
		Description:  fmt.Sprintf("Resolve merge conflicts in: %v", outcome.Conflicted),
		Priority:     models.PriorityHigh,
		WorktreePath: e.Task.WorktreePath,
		BranchName:   e.Task.BranchName,
		CreatedAt:    time.Now(),
		ConflictResolution: &models.ConflictResolutionInfo{
			OriginalTaskID:        e.TaskID,
			PriorEngineerResult:   e.EngineerResult,
			PriorReviews:          e.ReviewHistory,
			OriginatingEngineerID: e.EngineerID,
		},
	}
	m.graph.Add(resolution)
	m.admitToDevelopment(resolution)

	m.bus.Emit(models.PipelineEvent{
		Kind: models.EventMergeConflictDetected, TaskID: e.TaskID, Timestamp: time.Now(),
		Task: e.Task, EngineerResult: e.EngineerResult, ReviewHistory: e.ReviewHistory,
	})
}

func (m *Manager) onMergeCompleted(e models.PipelineEvent) error {
	if !e.Success {
		return nil
	}
	promoted := m.graph.MarkMerged(e.TaskID)
	for _, id := range promoted {
		if task := m.graph.Task(id); task != nil {
			m.admitToDevelopment(task)
		}
	}
	if len(promoted) > 0 {
		m.bus.Emit(models.PipelineEvent{
			Kind: models.EventDependencyResolved, TaskID: e.TaskID, Timestamp: time.Now(),
			MergedTaskID: e.TaskID, NewlyReadyTasks: promoted,
		})
	}

	releaseKey := e.TaskID
	if e.Task.IsConflictResolution() {
		releaseKey = e.Task.ConflictResolution.OriginalTaskID
	}
	m.worktrees.Release(releaseKey)
	m.dev.DiscardSession(e.TaskID)
	if releaseKey != e.TaskID {
		m.dev.DiscardSession(releaseKey)
	}
	m.completion.RecordMerged(e.TaskID)
	return nil
}

func (m *Manager) onTaskFailed(e models.PipelineEvent) error {
	affected := m.graph.MarkFailed(e.TaskID)
	m.completion.RecordFailed(e.TaskID, e.Error, affected)

	// A merge-phase failure leaves the base branch in a state worth
	// investigating before the worktree is torn down; every other
	// failure phase releases immediately.
	if e.Phase != models.PhaseMerge {
		m.worktrees.Release(e.TaskID)
	}
	m.dev.DiscardSession(e.TaskID)
	return nil
}
