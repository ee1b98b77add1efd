// Package gitrunner provides the git command-line abstraction the
// Worktree Manager and Merge Coordinator shell out through. The exact
// verb list matches spec §6: worktree add/remove/list, rev-parse
// --verify, checkout, pull --ff-only, merge, merge --no-ff, merge
// --abort, status --porcelain, branch --show-current, branch -d, remote.
package gitrunner

// BranchOperations covers branch creation, lookup, and deletion.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch
	// (git branch --show-current).
	CurrentBranch() (string, error)
	// CreateAndCheckoutBranch creates and switches to a new branch
	// (git checkout -b).
	CreateAndCheckoutBranch(name string) error
	// CheckoutBranch switches to the specified branch (git checkout <br>).
	CheckoutBranch(name string) error
	// BranchExists returns true if the branch exists
	// (git rev-parse --verify refs/heads/<name>).
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (git branch -d).
	DeleteBranch(name string) error
}

// StatusOperations covers git status --porcelain and conflict detection.
type StatusOperations interface {
	// Status returns the output of git status --porcelain.
	Status() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// HasConflicts returns true iff any line of git status --porcelain
	// begins with UU, AA, or DD — the exact three-prefix definition spec
	// §4.6/§6 requires. This is deliberately narrower than a generic
	// "any unmerged path" check: AU/UA/DU/UD (add/delete-vs-modify
	// conflicts) are not treated as conflicts by this definition.
	HasConflicts() (bool, error)
	// ConflictedFiles returns the paths reported with a UU/AA/DD prefix
	// by git status --porcelain.
	ConflictedFiles() ([]string, error)
	// ChangedFiles returns the paths reported by git status --porcelain,
	// used by the Development Stage to record an engineer result's
	// changed-file list (spec §4.4 step 4).
	ChangedFiles() ([]string, error)
}

// MergeOperations covers merge, merge --no-ff, and merge --abort.
type MergeOperations interface {
	// Merge merges the specified branch into the current branch
	// (git merge <br>).
	Merge(branch string) error
	// MergeNoFF merges the specified branch creating a merge commit
	// (git merge --no-ff <br>).
	MergeNoFF(branch string) error
	// MergeAbort aborts an in-progress merge (git merge --abort).
	MergeAbort() error
}

// WorktreeOperations covers worktree add/remove/list.
type WorktreeOperations interface {
	// WorktreeAdd checks out an existing branch into a new worktree
	// (git worktree add <path> <src>).
	WorktreeAdd(path, branch string) error
	// WorktreeAddNewBranch creates a new worktree with a new branch
	// (git worktree add -b <br> <path> <src>).
	WorktreeAddNewBranch(path, branch, baseBranch string) error
	// WorktreeRemove force-removes the worktree at the given path
	// (git worktree remove --force <path>).
	WorktreeRemove(path string) error
	// WorktreeListPorcelain returns the raw porcelain output
	// (git worktree list --porcelain) for detailed parsing.
	WorktreeListPorcelain() (string, error)
}

// RemoteOperations covers the remote-aware base-branch refresh in spec
// §4.6 step 2.
type RemoteOperations interface {
	// HasRemote returns true iff a remote with the given name is
	// configured (git remote).
	HasRemote(name string) (bool, error)
	// PullFFOnly pulls from origin with fast-forward only
	// (git pull --ff-only origin <br>).
	PullFFOnly(branch string) error
}

// Runner is the complete git command surface consumed by the Worktree
// Manager and Merge Coordinator.
type Runner interface {
	BranchOperations
	StatusOperations
	MergeOperations
	WorktreeOperations
	RemoteOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
