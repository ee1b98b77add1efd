package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kugutsu/pipeline/internal/gitrunner"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-m", "initial commit")
	return dir
}

func newManager(t *testing.T, repoDir string) *Manager {
	t.Helper()
	m, err := New(Config{
		BaseDir:    filepath.Join(repoDir, ".worktrees"),
		RepoPath:   repoDir,
		BaseBranch: "main",
		Git:        gitrunner.NewRunner(repoDir),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestAcquire_CreatesNewBranchAndWorktree(t *testing.T) {
	repoDir := initRepo(t)
	m := newManager(t, repoDir)

	path, branch, err := m.Acquire("42")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if branch != "feature/task-42" {
		t.Errorf("branch = %q, want feature/task-42", branch)
	}
	wantPath := filepath.Join(repoDir, ".worktrees", "task-42")
	if path != wantPath {
		t.Errorf("path = %q, want %q", path, wantPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected worktree directory to exist: %v", err)
	}
}

func TestAcquire_IsIdempotent(t *testing.T) {
	repoDir := initRepo(t)
	m := newManager(t, repoDir)

	path1, branch1, err := m.Acquire("7")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	path2, branch2, err := m.Acquire("7")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if path1 != path2 || branch1 != branch2 {
		t.Fatalf("Acquire not idempotent: (%q,%q) != (%q,%q)", path1, branch1, path2, branch2)
	}
}

func TestAcquire_ConcurrentSameTask_Serialized(t *testing.T) {
	repoDir := initRepo(t)
	m := newManager(t, repoDir)

	const n = 10
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], _, errs[i] = m.Acquire("99")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: Acquire: %v", i, err)
		}
	}
	for i := 1; i < n; i++ {
		if paths[i] != paths[0] {
			t.Fatalf("goroutine %d got path %q, want %q", i, paths[i], paths[0])
		}
	}
}

func TestExists_And_Release(t *testing.T) {
	repoDir := initRepo(t)
	m := newManager(t, repoDir)

	exists, err := m.Exists("5")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected no worktree before Acquire")
	}

	if _, _, err := m.Acquire("5"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	exists, err = m.Exists("5")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("expected worktree to exist after Acquire")
	}

	m.Release("5")

	exists, err = m.Exists("5")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected worktree to be gone after Release")
	}
}

func TestList_ReturnsAllAcquired(t *testing.T) {
	repoDir := initRepo(t)
	m := newManager(t, repoDir)

	if _, _, err := m.Acquire("1"); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if _, _, err := m.Acquire("2"); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}

	worktrees, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// The base repository itself is always listed, plus the two task worktrees.
	if len(worktrees) < 3 {
		t.Fatalf("List returned %d entries, want at least 3", len(worktrees))
	}
	var sawBranch1, sawBranch2 bool
	for _, wt := range worktrees {
		switch wt.BranchName {
		case "feature/task-1":
			sawBranch1 = true
		case "feature/task-2":
			sawBranch2 = true
		}
	}
	if !sawBranch1 || !sawBranch2 {
		t.Fatalf("List = %+v, want entries for both task branches", worktrees)
	}
}

func TestParseWorktreeList(t *testing.T) {
	output := "worktree /repo\nHEAD abcdef\nbranch refs/heads/main\n\n" +
		"worktree /repo/.worktrees/task-1\nHEAD 123456\nbranch refs/heads/feature/task-1\n\n"

	worktrees := parseWorktreeList(output)
	if len(worktrees) != 2 {
		t.Fatalf("got %d worktrees, want 2", len(worktrees))
	}
	if worktrees[1].Path != "/repo/.worktrees/task-1" {
		t.Errorf("path = %q", worktrees[1].Path)
	}
	if worktrees[1].BranchName != "feature/task-1" {
		t.Errorf("branch = %q, want feature/task-1", worktrees[1].BranchName)
	}
}
