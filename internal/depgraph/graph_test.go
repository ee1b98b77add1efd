package depgraph

import (
	"errors"
	"testing"

	"github.com/kugutsu/pipeline/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Title: id, DependsOn: deps}
}

func TestLoad_InitialStates(t *testing.T) {
	g := New(nil)
	a := task("a")
	b := task("b", "a")
	if err := g.Load([]*models.Task{a, b}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s, _ := g.Status("a"); s != models.TaskStatusReady {
		t.Errorf("a status = %s, want ready", s)
	}
	if s, _ := g.Status("b"); s != models.TaskStatusWaiting {
		t.Errorf("b status = %s, want waiting", s)
	}
}

func TestLoad_RejectsCycle(t *testing.T) {
	g := New(nil)
	a := task("a", "b")
	b := task("b", "a")
	err := g.Load([]*models.Task{a, b})
	if err == nil {
		t.Fatal("expected cycle rejection")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Paths) == 0 {
		t.Fatal("expected at least one reported cycle path")
	}
}

func TestMarkMerged_PromotesReadyDependents(t *testing.T) {
	g := New(nil)
	a := task("a")
	b := task("b", "a")
	c := task("c", "a", "b")
	if err := g.Load([]*models.Task{a, b, c}); err != nil {
		t.Fatal(err)
	}

	if err := g.MarkRunning("a"); err != nil {
		t.Fatal(err)
	}
	if err := g.MarkDeveloped("a"); err != nil {
		t.Fatal(err)
	}
	if err := g.MarkReviewing("a"); err != nil {
		t.Fatal(err)
	}
	if err := g.MarkMerging("a"); err != nil {
		t.Fatal(err)
	}

	promoted := g.MarkMerged("a")
	if len(promoted) != 1 || promoted[0] != "b" {
		t.Fatalf("promoted = %v, want [b] (c still depends on b)", promoted)
	}
	if s, _ := g.Status("c"); s != models.TaskStatusWaiting {
		t.Fatalf("c status = %s, want waiting until b merges too", s)
	}

	for _, fn := range []func(string) error{g.MarkRunning, g.MarkDeveloped, g.MarkReviewing, g.MarkMerging} {
		if err := fn("b"); err != nil {
			t.Fatal(err)
		}
	}
	promoted = g.MarkMerged("b")
	if len(promoted) != 1 || promoted[0] != "c" {
		t.Fatalf("promoted = %v, want [c]", promoted)
	}
}

func TestIllegalTransition_IsProgrammingError(t *testing.T) {
	g := New(nil)
	a := task("a")
	if err := g.Load([]*models.Task{a}); err != nil {
		t.Fatal(err)
	}

	err := g.MarkDeveloped("a") // a is `ready`, not `running`
	var illegal *ErrIllegalTransition
	if !errors.As(err, &illegal) {
		t.Fatalf("expected *ErrIllegalTransition, got %v", err)
	}
}

func TestMarkFailed_ReturnsTransitiveDependentsWithoutFailingThem(t *testing.T) {
	g := New(nil)
	a := task("a")
	b := task("b", "a")
	c := task("c", "b")
	if err := g.Load([]*models.Task{a, b, c}); err != nil {
		t.Fatal(err)
	}

	affected := g.MarkFailed("a")
	if len(affected) != 2 {
		t.Fatalf("affected = %v, want [b c] in some order", affected)
	}
	if s, _ := g.Status("b"); s != models.TaskStatusWaiting {
		t.Fatalf("b status = %s, want waiting (not auto-failed)", s)
	}
	if s, _ := g.Status("c"); s != models.TaskStatusWaiting {
		t.Fatalf("c status = %s, want waiting (not auto-failed)", s)
	}
}

func TestMarkMerged_ConflictResolutionAliasesOriginal(t *testing.T) {
	g := New(nil)
	a := task("a")
	b := task("b", "a")
	if err := g.Load([]*models.Task{a, b}); err != nil {
		t.Fatal(err)
	}

	resolution := &models.Task{
		ID:                 "a-resolve-1",
		Title:              "[修正] a",
		Type:               models.TaskTypeConflictResolution,
		ConflictResolution: &models.ConflictResolutionInfo{OriginalTaskID: "a"},
	}
	g.Add(resolution)

	promoted := g.MarkMerged("a-resolve-1")
	if len(promoted) != 1 || promoted[0] != "b" {
		t.Fatalf("promoted = %v, want [b] once the resolution task's alias merges", promoted)
	}
	if s, _ := g.Status("a"); s != models.TaskStatusMerged {
		t.Fatalf("original task a status = %s, want merged via alias", s)
	}
}

func TestDependencyStatus(t *testing.T) {
	g := New(nil)
	a := task("a")
	b := task("b")
	c := task("c", "a", "b")
	if err := g.Load([]*models.Task{a, b, c}); err != nil {
		t.Fatal(err)
	}
	g.MarkFailed("a")

	status := g.DependencyStatus("c")
	if len(status.Failed) != 1 || status.Failed[0] != "a" {
		t.Fatalf("Failed = %v, want [a]", status.Failed)
	}
	if len(status.Blocking) != 1 || status.Blocking[0] != "b" {
		t.Fatalf("Blocking = %v, want [b]", status.Blocking)
	}
}
