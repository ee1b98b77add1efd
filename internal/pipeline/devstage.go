package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kugutsu/pipeline/internal/agent"
	"github.com/kugutsu/pipeline/internal/eventbus"
	"github.com/kugutsu/pipeline/internal/gitrunner"
	"github.com/kugutsu/pipeline/internal/worktree"
	"github.com/kugutsu/pipeline/pkg/models"
)

// DefaultMaxDevelopmentRetries is spec §4.4's default retry bound for a
// failed development attempt before it becomes a terminal TASK_FAILED.
const DefaultMaxDevelopmentRetries = 3

// DevStageConfig configures a DevStage.
type DevStageConfig struct {
	Worktrees      *worktree.Manager
	Executor       agent.Executor
	Bus            *eventbus.Bus
	Concurrency    int
	MaxTurns       int
	ToolAllowList  []string
	MaxRetries     int
	NewGitRunner   func(workdir string) gitrunner.Runner
}

// DevStage is the Development Stage (spec §4.4): a bounded worker pool
// that drains a priority Queue, invoking the Agent Executor once per
// dequeued task.
type DevStage struct {
	queue    *Queue
	worktree *worktree.Manager
	executor agent.Executor
	bus      *eventbus.Bus
	maxTurns int
	tools    []string
	maxRetry int
	newGit   func(string) gitrunner.Runner

	mu       sync.Mutex
	sessions map[string]string // task ID -> cached Agent Executor session handle

	concurrency int
	wg          sync.WaitGroup
}

// NewDevStage creates a DevStage and starts its worker pool.
func NewDevStage(cfg DevStageConfig) *DevStage {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxDevelopmentRetries
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	if cfg.NewGitRunner == nil {
		cfg.NewGitRunner = func(dir string) gitrunner.Runner { return gitrunner.NewRunner(dir) }
	}
	s := &DevStage{
		queue:       NewQueue(),
		worktree:    cfg.Worktrees,
		executor:    cfg.Executor,
		bus:         cfg.Bus,
		maxTurns:    cfg.MaxTurns,
		tools:       cfg.ToolAllowList,
		maxRetry:    cfg.MaxRetries,
		newGit:      cfg.NewGitRunner,
		sessions:    make(map[string]string),
		concurrency: cfg.Concurrency,
	}
	for i := 0; i < cfg.Concurrency; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Enqueue admits task to the Development Stage.
func (s *DevStage) Enqueue(task *models.Task) {
	s.queue.Enqueue(task)
}

// Close stops accepting new work and waits for in-flight workers to drain.
func (s *DevStage) Close() {
	s.queue.Close()
	s.wg.Wait()
}

// QueueDepth returns the number of tasks currently waiting.
func (s *DevStage) QueueDepth() int {
	return s.queue.Len()
}

func (s *DevStage) worker() {
	defer s.wg.Done()
	for {
		task, ok := s.queue.Dequeue()
		if !ok {
			return
		}
		s.process(task)
	}
}

func (s *DevStage) process(task *models.Task) {
	ctx := context.Background()

	if task.WorktreePath == "" {
		path, branch, err := s.worktree.Acquire(task.ID)
		if err != nil {
			s.fail(task, fmt.Errorf("acquire worktree: %w", err))
			return
		}
		task.WorktreePath = path
		task.BranchName = branch
	}

	sessionHandle := s.sessionFor(task)

	prompt := buildDevelopmentPrompt(task)
	started := time.Now()

	messages, results := s.executor.Execute(ctx, prompt, agent.Options{
		WorkingDirectory: task.WorktreePath,
		MaxTurns:         s.maxTurns,
		ToolAllowList:    s.tools,
		ResumeHandle:     sessionHandle,
	})

	var transcript string
	for m := range messages {
		if m.Kind == agent.MessageAssistantText {
			transcript += m.Text
		}
	}
	result := <-results

	if !result.Success {
		if task.RetryCount < s.maxRetry {
			task.RetryCount++
			s.queue.Enqueue(task)
			return
		}
		errMsg := "development failed"
		if result.Error != nil {
			errMsg = result.Error.Error()
		}
		s.bus.Emit(models.PipelineEvent{
			Kind: models.EventTaskFailed, TaskID: task.ID, Timestamp: time.Now(),
			Task: task, Phase: models.PhaseDevelopment, Error: errMsg,
		})
		return
	}

	if result.SessionHandle != "" {
		s.saveSession(task.ID, result.SessionHandle)
	}

	changedFiles, err := s.newGit(task.WorktreePath).ChangedFiles()
	if err != nil {
		changedFiles = nil
	}

	engineerResult := &models.EngineerResult{
		TaskID:        task.ID,
		ExecutorID:    sessionOrTaskID(sessionHandle, task.ID),
		Success:       true,
		Transcript:    transcript,
		Duration:      time.Since(started),
		ChangedFiles:  changedFiles,
		NeedsReReview: task.IsConflictResolution(),
		TokensUsed:    int64(result.InputTokens + result.OutputTokens),
	}

	s.bus.Emit(models.PipelineEvent{
		Kind: models.EventDevelopmentCompleted, TaskID: task.ID, Timestamp: time.Now(),
		Task: task, EngineerResult: engineerResult, EngineerID: engineerResult.ExecutorID,
	})
}

func (s *DevStage) fail(task *models.Task, err error) {
	s.bus.Emit(models.PipelineEvent{
		Kind: models.EventTaskFailed, TaskID: task.ID, Timestamp: time.Now(),
		Task: task, Phase: models.PhaseDevelopment, Error: err.Error(),
	})
}

// sessionFor returns the cached session handle for task, or empty for a
// fresh session — always empty for conflict-resolution tasks so no
// stale context leaks (spec §4.4 step 2).
func (s *DevStage) sessionFor(task *models.Task) string {
	if task.IsConflictResolution() {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[task.ID]
}

func (s *DevStage) saveSession(taskID, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[taskID] = handle
}

// DiscardSession evicts taskID's cached Agent Executor session handle.
// Called on a task's terminal merge success or terminal failure (spec
// §3) so the cache never grows past the number of non-terminal tasks.
func (s *DevStage) DiscardSession(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, taskID)
}

func sessionOrTaskID(handle, taskID string) string {
	if handle != "" {
		return handle
	}
	return taskID
}

func buildDevelopmentPrompt(task *models.Task) string {
	return fmt.Sprintf("TASK: %s\n\n%s", task.Title, task.Description)
}
