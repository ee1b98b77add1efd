// Package worktree implements the Worktree Manager (spec §4.1):
// idempotent per-task Git worktree and branch lifecycle with mutual
// exclusion on concurrent acquisition of the same task's worktree.
package worktree

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kugutsu/pipeline/internal/gitrunner"
)

// Worktree describes one task's worktree as reported by `git worktree
// list --porcelain`.
type Worktree struct {
	Path       string
	BranchName string
}

// Manager creates, reuses, and removes per-task worktrees under a single
// root directory, against one base repository.
type Manager struct {
	baseDir    string // root directory under which task worktrees are created
	repoPath   string // path to the base repository
	baseBranch string // branch new task branches are cut from
	git        gitrunner.Runner
	log        *slog.Logger

	// group collapses concurrent Acquire calls for the same task ID into
	// one in-flight git invocation, while leaving different task IDs free
	// to run in parallel — the per-key-only serialization spec §4.1
	// requires, replacing the teacher's single global sync.Mutex (which
	// would have serialized every acquire, not just same-key ones).
	group singleflight.Group

	// mu is taken only by List, around its git worktree listing; Exists
	// and the per-key acquire path do not take it (group serializes
	// same-key acquires).
	mu sync.Mutex
}

// Config configures a new Manager.
type Config struct {
	BaseDir    string // root directory for task worktrees
	RepoPath   string // path to the base repository
	BaseBranch string // branch to cut new task branches from (e.g. "main")
	Git        gitrunner.Runner
	Logger     *slog.Logger
}

// New creates a Manager, ensuring BaseDir exists.
func New(cfg Config) (*Manager, error) {
	if cfg.Git == nil {
		cfg.Git = gitrunner.NewRunner(cfg.RepoPath)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create worktree base directory: %w", err)
	}
	return &Manager{
		baseDir:    cfg.BaseDir,
		repoPath:   cfg.RepoPath,
		baseBranch: cfg.BaseBranch,
		git:        cfg.Git,
		log:        cfg.Logger,
	}, nil
}

// branchFor derives the deterministic branch name for a task per spec
// §4.1: feature/task-<taskId>.
func branchFor(taskID string) string {
	return "feature/task-" + taskID
}

// pathFor derives the deterministic worktree path for a task per spec
// §4.1: <root>/task-<taskId>.
func (m *Manager) pathFor(taskID string) string {
	return m.baseDir + "/task-" + taskID
}

// Acquire returns the (path, branch) pair for taskID, creating or
// reusing the worktree and branch as needed. Concurrent Acquire calls for
// the same taskID are serialized; different task IDs proceed in
// parallel. Idempotent: a second call for the same taskID returns the
// same pair and creates nothing new.
func (m *Manager) Acquire(taskID string) (string, string, error) {
	type result struct {
		path, branch string
	}
	v, err, _ := m.group.Do(taskID, func() (interface{}, error) {
		path, branch, err := m.acquireOnce(taskID)
		if err != nil {
			return nil, err
		}
		return result{path: path, branch: branch}, nil
	})
	if err != nil {
		return "", "", err
	}
	r := v.(result)
	return r.path, r.branch, nil
}

func (m *Manager) acquireOnce(taskID string) (string, string, error) {
	branch := branchFor(taskID)
	path := m.pathFor(taskID)

	existing, err := m.listLocked()
	if err != nil {
		return "", "", err
	}
	for _, wt := range existing {
		if wt.Path == path {
			m.log.Debug("worktree reused verbatim", "task_id", taskID, "path", path)
			return path, branch, nil
		}
	}

	branchExists, err := m.git.BranchExists(branch)
	if err != nil {
		return "", "", fmt.Errorf("check branch exists for task %s: %w", taskID, err)
	}
	if branchExists {
		m.log.Debug("checking out existing branch into new worktree", "task_id", taskID, "branch", branch)
		if err := m.git.WorktreeAdd(path, branch); err != nil {
			return "", "", fmt.Errorf("add worktree for existing branch %s: %w", branch, err)
		}
		return path, branch, nil
	}

	m.log.Debug("creating new branch and worktree", "task_id", taskID, "branch", branch, "base", m.baseBranch)
	if err := m.git.WorktreeAddNewBranch(path, branch, m.baseBranch); err != nil {
		return "", "", fmt.Errorf("create worktree for task %s: %w", taskID, err)
	}
	return path, branch, nil
}

// Release removes the worktree for taskID, force. Best-effort: it never
// returns an error to the caller because it runs on cleanup paths that
// must not cascade (spec §4.1).
func (m *Manager) Release(taskID string) {
	path := m.pathFor(taskID)
	if err := m.git.WorktreeRemove(path); err != nil {
		m.log.Warn("worktree release failed (best-effort, ignored)", "task_id", taskID, "path", path, "error", err)
	}
}

// Exists reports whether a worktree currently exists for taskID.
func (m *Manager) Exists(taskID string) (bool, error) {
	path := m.pathFor(taskID)
	existing, err := m.listLocked()
	if err != nil {
		return false, err
	}
	for _, wt := range existing {
		if wt.Path == path {
			return true, nil
		}
	}
	return false, nil
}

// List returns every worktree git currently tracks for the base
// repository.
func (m *Manager) List() ([]Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

func (m *Manager) listLocked() ([]Worktree, error) {
	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return parseWorktreeList(output), nil
}

// parseWorktreeList parses `git worktree list --porcelain` output.
func parseWorktreeList(output string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if current != nil {
				worktrees = append(worktrees, *current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(line, "worktree ") {
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			branchRef := strings.TrimPrefix(line, "branch ")
			current.BranchName = strings.TrimPrefix(branchRef, "refs/heads/")
		}
	}
	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}
