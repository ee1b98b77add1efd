package gitrunner

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner implements Runner using exec.Command against a system git
// binary.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.run(args...)
	return err
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(args ...string) (string, error) {
	return r.run(args...)
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("branch", "--show-current")
}

// CreateAndCheckoutBranch creates and switches to a new branch.
func (r *ExecRunner) CreateAndCheckoutBranch(name string) error {
	return r.runSilent("checkout", "-b", name)
}

// CheckoutBranch switches to the specified branch.
func (r *ExecRunner) CheckoutBranch(name string) error {
	return r.runSilent("checkout", name)
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-d", name)
}

// Status returns the output of git status --porcelain.
func (r *ExecRunner) Status() (string, error) {
	return r.run("status", "--porcelain")
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// conflictPrefixes is spec's exact three-prefix conflict definition
// (§4.6/§6) — deliberately narrower than the teacher's 7-prefix set.
var conflictPrefixes = []string{"UU", "AA", "DD"}

// HasConflicts returns true iff git status --porcelain contains a
// UU/AA/DD entry.
func (r *ExecRunner) HasConflicts() (bool, error) {
	files, err := r.ConflictedFiles()
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// ConflictedFiles returns the paths reported with a UU/AA/DD prefix.
func (r *ExecRunner) ConflictedFiles() ([]string, error) {
	status, err := r.Status()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(status, "\n") {
		if len(line) < 3 {
			continue
		}
		prefix := line[:2]
		for _, p := range conflictPrefixes {
			if prefix == p {
				files = append(files, strings.TrimSpace(line[2:]))
				break
			}
		}
	}
	return files, nil
}

// ChangedFiles returns every path reported by git status --porcelain.
func (r *ExecRunner) ChangedFiles() ([]string, error) {
	status, err := r.Status()
	if err != nil {
		return nil, err
	}
	if status == "" {
		return nil, nil
	}
	var files []string
	for _, line := range strings.Split(status, "\n") {
		if len(line) < 3 {
			continue
		}
		files = append(files, strings.TrimSpace(line[2:]))
	}
	return files, nil
}

// Merge merges the specified branch into the current branch.
func (r *ExecRunner) Merge(branch string) error {
	return r.runSilent("merge", branch)
}

// MergeNoFF merges the specified branch creating a merge commit.
func (r *ExecRunner) MergeNoFF(branch string) error {
	return r.runSilent("merge", "--no-ff", branch)
}

// MergeAbort aborts an in-progress merge.
func (r *ExecRunner) MergeAbort() error {
	return r.runSilent("merge", "--abort")
}

// WorktreeAdd checks out an existing branch into a new worktree.
func (r *ExecRunner) WorktreeAdd(path, branch string) error {
	return r.runSilent("worktree", "add", path, branch)
}

// WorktreeAddNewBranch creates a new worktree with a new branch off
// baseBranch.
func (r *ExecRunner) WorktreeAddNewBranch(path, branch, baseBranch string) error {
	return r.runSilent("worktree", "add", "-b", branch, path, baseBranch)
}

// WorktreeRemove force-removes the worktree at the given path.
func (r *ExecRunner) WorktreeRemove(path string) error {
	return r.runSilent("worktree", "remove", "--force", path)
}

// WorktreeListPorcelain returns the raw porcelain output for detailed
// parsing.
func (r *ExecRunner) WorktreeListPorcelain() (string, error) {
	return r.run("worktree", "list", "--porcelain")
}

// HasRemote returns true iff a remote with the given name is configured.
func (r *ExecRunner) HasRemote(name string) (bool, error) {
	out, err := r.run("remote")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// PullFFOnly pulls the given branch from origin with fast-forward only.
func (r *ExecRunner) PullFFOnly(branch string) error {
	return r.runSilent("pull", "--ff-only", "origin", branch)
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
