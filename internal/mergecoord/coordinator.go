// Package mergecoord implements the Merge Coordinator (spec §4.6): a
// single-writer mutex around the base branch, a FIFO wait queue for
// contending merges, and the exact six-step merge algorithm.
package mergecoord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kugutsu/pipeline/internal/gitrunner"
	"github.com/kugutsu/pipeline/pkg/models"
)

// Request is one pending merge attempt.
type Request struct {
	Task         *models.Task
	WorktreeGit  gitrunner.Runner // git runner rooted at the task's worktree
	FeatureBranch string

	resultCh chan Outcome
}

// Outcome is the terminal result of one merge attempt.
type Outcome struct {
	Success   bool
	Conflict  bool
	Error     error
	Conflicted []string // populated when Conflict is true
	// CriticalConflicts is the subset of Conflicted matching a known
	// package-manager/root-config file pattern, for log context only.
	CriticalConflicts []string
}

// Config configures a Coordinator.
type Config struct {
	BaseGit    gitrunner.Runner // git runner rooted at the base repository
	BaseBranch string
	HasRemote  bool
	Logger     *slog.Logger
}

// Coordinator serializes merges against the base branch: a single
// worker goroutine drains a buffered request channel, giving the queue
// a FIFO, starvation-free ordering with the "channel as mutex" idiom
// (spec §4.6's "async mutex with a FIFO wait queue").
type Coordinator struct {
	baseGit    gitrunner.Runner
	baseBranch string
	hasRemote  bool
	log        *slog.Logger

	requests chan *Request
	done     chan struct{}
}

// New creates a Coordinator and starts its single merge worker.
func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Coordinator{
		baseGit:    cfg.BaseGit,
		baseBranch: cfg.BaseBranch,
		hasRemote:  cfg.HasRemote,
		log:        cfg.Logger,
		requests:   make(chan *Request, 64),
		done:       make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close stops accepting new requests and waits for the worker to drain.
func (c *Coordinator) Close() {
	close(c.requests)
	<-c.done
}

// Merge enqueues a merge attempt and blocks until it completes. Multiple
// goroutines may call Merge concurrently; they are served strictly FIFO.
func (c *Coordinator) Merge(ctx context.Context, req *Request) Outcome {
	req.resultCh = make(chan Outcome, 1)
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return Outcome{Success: false, Error: ctx.Err()}
	}

	select {
	case outcome := <-req.resultCh:
		return outcome
	case <-ctx.Done():
		return Outcome{Success: false, Error: ctx.Err()}
	}
}

func (c *Coordinator) worker() {
	defer close(c.done)
	for req := range c.requests {
		req.resultCh <- c.attempt(req)
	}
}

// attempt runs the exact six-step algorithm of spec §4.6 while holding
// the single-writer slot (guaranteed by being the only worker goroutine).
func (c *Coordinator) attempt(req *Request) Outcome {
	// Step 2: refresh the base branch.
	if err := c.baseGit.CheckoutBranch(c.baseBranch); err != nil {
		return Outcome{Success: false, Error: fmt.Errorf("checkout base branch: %w", err)}
	}
	if c.hasRemote {
		if has, err := c.baseGit.HasRemote("origin"); err == nil && has {
			if err := c.baseGit.PullFFOnly(c.baseBranch); err != nil {
				c.log.Warn("pull origin failed, continuing with local base", "error", err)
			}
		}
	}

	// Step 3: merge base into the task's worktree first. This validates
	// the merge and surfaces conflicts on the feature side, never
	// dirtying the base branch.
	if err := req.WorktreeGit.Merge(c.baseBranch); err != nil {
		has, conflictErr := req.WorktreeGit.HasConflicts()
		if conflictErr != nil {
			_ = req.WorktreeGit.MergeAbort()
			return Outcome{Success: false, Error: fmt.Errorf("check conflicts: %w", conflictErr)}
		}
		if has {
			// Step 4: conflict. Abort the worktree merge; the mutex is
			// never held during resolution because this worker moves on
			// to the next queued request immediately.
			files, _ := req.WorktreeGit.ConflictedFiles()
			if abortErr := req.WorktreeGit.MergeAbort(); abortErr != nil {
				c.log.Warn("merge abort after conflict failed", "task_id", req.Task.ID, "error", abortErr)
			}
			critical := criticalOverlap(files)
			if len(critical) > 0 {
				c.log.Warn("merge conflict touches critical files", "task_id", req.Task.ID, "files", critical)
			}
			return Outcome{Success: false, Conflict: true, Conflicted: files, CriticalConflicts: critical}
		}
		return Outcome{Success: false, Error: fmt.Errorf("merge base into worktree: %w", err)}
	}

	// Step 5: checkout base in the base repository and merge the feature
	// branch with --no-ff.
	if err := c.baseGit.CheckoutBranch(c.baseBranch); err != nil {
		return Outcome{Success: false, Error: fmt.Errorf("checkout base before merging feature: %w", err)}
	}
	if err := c.baseGit.MergeNoFF(req.FeatureBranch); err != nil {
		_ = c.baseGit.MergeAbort()
		_ = req.WorktreeGit.MergeAbort()
		return Outcome{Success: false, Error: fmt.Errorf("merge feature into base: %w", err)}
	}

	// Step 6: success.
	return Outcome{Success: true}
}
