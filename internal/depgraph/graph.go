// Package depgraph implements the Dependency Manager (spec §4.2): the
// task DAG plus each task's lifecycle state, readiness propagation on
// merge, and failure-cascade computation.
package depgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kugutsu/pipeline/pkg/models"
)

// ErrCycleDetected indicates load() rejected a task set containing a
// circular dependency. Use Cycles() on the returned *CycleError for the
// offending paths.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrIllegalTransition indicates a markX call was made from a state other
// than its single legal predecessor. Per spec §4.2 this is "a programming
// error, not a runtime failure" — callers are expected to treat it as a
// bug, not retry it.
type ErrIllegalTransition struct {
	TaskID string
	From   models.TaskStatus
	Want   models.TaskStatus
	To     models.TaskStatus
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("task %s: illegal transition to %s: current state is %s, want %s",
		e.TaskID, e.To, e.From, e.Want)
}

// CycleError is returned by Load when the task set is not acyclic. Paths
// holds every minimal cycle found, each expressed as a sequence of task
// IDs beginning and ending with the same ID.
type CycleError struct {
	Paths [][]string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %d cycle(s) found: %v", ErrCycleDetected, len(e.Paths), e.Paths)
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// DependencyStatus is the diagnostic view returned by DependencyStatus.
type DependencyStatus struct {
	Blocking   []string // dependencies not yet merged
	InProgress []string // dependencies currently running/developed/reviewing/merging
	Failed     []string // dependencies that failed
}

// legalPredecessor maps each strict-transition target state to the state
// it is entered from on the forward path; MarkRunning also re-enters
// `running` from `reviewing` for a revision.
var legalPredecessor = map[models.TaskStatus]models.TaskStatus{
	models.TaskStatusRunning:   models.TaskStatusReady,
	models.TaskStatusDeveloped: models.TaskStatusRunning,
	models.TaskStatusReviewing: models.TaskStatusDeveloped,
	models.TaskStatusMerging:   models.TaskStatusReviewing,
}

// Graph holds the task DAG and each task's lifecycle state, guarded by a
// single RWMutex (spec §5: "the task DAG is mutated only by the Pipeline
// Manager on event receipt ... which removes the need for locking around
// DAG state" — this implementation still takes the lock defensively,
// since nothing prevents a future caller from being multi-threaded, but
// the Pipeline Manager's own usage is single-threaded by construction).
type Graph struct {
	mu sync.RWMutex

	tasks      map[string]*models.Task
	deps       map[string][]string // taskID -> IDs it depends on
	dependents map[string][]string // taskID -> IDs that depend on it
	status     map[string]models.TaskStatus

	// resolutionAlias maps a conflict-resolution task's ID to the
	// original task ID it stands in for, so MarkMerged can alias the two
	// per spec §9's conflict-resolution design note.
	resolutionAlias map[string]string

	log *slog.Logger
}

// New creates an empty dependency graph. A nil logger defaults to
// slog.Default().
func New(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		tasks:           make(map[string]*models.Task),
		deps:            make(map[string][]string),
		dependents:      make(map[string][]string),
		status:          make(map[string]models.TaskStatus),
		resolutionAlias: make(map[string]string),
		log:             logger,
	}
}

// Load builds the forward and inverse edge sets from tasks and assigns
// initial lifecycle states: a task with zero dependencies enters `ready`,
// all others enter `waiting`. Rejects the whole set if it contains a
// cycle, returning a *CycleError naming every minimal cycle found.
func (g *Graph) Load(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range tasks {
		g.tasks[t.ID] = t
		g.deps[t.ID] = append([]string(nil), t.DependsOn...)
		if t.IsConflictResolution() {
			g.resolutionAlias[t.ID] = t.ConflictResolution.OriginalTaskID
		}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			g.dependents[dep] = append(g.dependents[dep], t.ID)
		}
	}

	if cycles := g.findCycles(); len(cycles) > 0 {
		g.log.Warn("dependency graph rejected: cycle detected", "cycles", cycles)
		return &CycleError{Paths: cycles}
	}

	for _, t := range tasks {
		if len(t.DependsOn) == 0 {
			g.status[t.ID] = models.TaskStatusReady
			t.Status = models.TaskStatusReady
		} else {
			g.status[t.ID] = models.TaskStatusWaiting
			t.Status = models.TaskStatusWaiting
		}
	}
	g.log.Debug("dependency graph loaded", "tasks", len(tasks))
	return nil
}

// ReadyTasks returns every task currently in the `ready` state.
func (g *Graph) ReadyTasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.Task
	for id, s := range g.status {
		if s == models.TaskStatusReady {
			ready = append(ready, g.tasks[id])
		}
	}
	return ready
}

func (g *Graph) transition(taskID string, want, to models.TaskStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.status[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	if current != want {
		return &ErrIllegalTransition{TaskID: taskID, From: current, Want: want, To: to}
	}
	g.status[taskID] = to
	if t := g.tasks[taskID]; t != nil {
		t.Status = to
	}
	return nil
}

// MarkRunning transitions taskID from `ready` to `running`, or from
// `reviewing` back to `running` when a review sends the task back for
// revision.
func (g *Graph) MarkRunning(taskID string) error {
	if s, ok := g.Status(taskID); ok && s == models.TaskStatusReviewing {
		return g.transition(taskID, models.TaskStatusReviewing, models.TaskStatusRunning)
	}
	return g.transition(taskID, models.TaskStatusReady, models.TaskStatusRunning)
}

// MarkDeveloped transitions taskID from `running` to `developed`.
func (g *Graph) MarkDeveloped(taskID string) error {
	return g.transition(taskID, models.TaskStatusRunning, models.TaskStatusDeveloped)
}

// MarkReviewing transitions taskID from `developed` to `reviewing`.
func (g *Graph) MarkReviewing(taskID string) error {
	return g.transition(taskID, models.TaskStatusDeveloped, models.TaskStatusReviewing)
}

// MarkMerging transitions taskID from `reviewing` to `merging`.
func (g *Graph) MarkMerging(taskID string) error {
	return g.transition(taskID, models.TaskStatusReviewing, models.TaskStatusMerging)
}

// MarkMerged moves taskID to `merged`, then promotes every dependent
// whose dependencies are now all merged from `waiting` to `ready`.
// Returns the promoted set (possibly empty).
//
// If taskID is a conflict-resolution task's ID, its aliased original task
// is also marked merged (idempotently) before readiness propagation, so
// dependents of the *original* task see the alias — per spec §9's
// conflict-resolution design note.
func (g *Graph) MarkMerged(taskID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.markMergedLocked(taskID)
	if original, ok := g.resolutionAlias[taskID]; ok {
		g.markMergedLocked(original)
		taskID = original
	}

	var promoted []string
	for _, depID := range g.dependents[taskID] {
		if g.status[depID] != models.TaskStatusWaiting {
			continue
		}
		if g.allDependenciesMerged(depID) {
			g.status[depID] = models.TaskStatusReady
			if t := g.tasks[depID]; t != nil {
				t.Status = models.TaskStatusReady
			}
			promoted = append(promoted, depID)
		}
	}
	return promoted
}

func (g *Graph) markMergedLocked(taskID string) {
	g.status[taskID] = models.TaskStatusMerged
	if t := g.tasks[taskID]; t != nil {
		t.Status = models.TaskStatusMerged
	}
}

func (g *Graph) allDependenciesMerged(taskID string) bool {
	for _, dep := range g.deps[taskID] {
		if g.status[dep] != models.TaskStatusMerged {
			return false
		}
	}
	return true
}

// MarkFailed moves taskID to `failed` and returns the transitive set of
// dependents that are now unreachable. It does not mark those dependents
// failed — spec §4.2 leaves that policy decision to the caller (the
// Pipeline Manager).
func (g *Graph) MarkFailed(taskID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.status[taskID] = models.TaskStatusFailed
	if t := g.tasks[taskID]; t != nil {
		t.Status = models.TaskStatusFailed
	}

	seen := make(map[string]bool)
	var affected []string
	var walk func(id string)
	walk = func(id string) {
		for _, depID := range g.dependents[id] {
			if seen[depID] {
				continue
			}
			seen[depID] = true
			affected = append(affected, depID)
			walk(depID)
		}
	}
	walk(taskID)
	return affected
}

// DependencyStatus reports, for taskID, which of its dependencies are
// still blocking (not merged), which are in progress, and which failed.
func (g *Graph) DependencyStatus(taskID string) DependencyStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result DependencyStatus
	for _, dep := range g.deps[taskID] {
		switch g.status[dep] {
		case models.TaskStatusMerged:
			// satisfied, not reported
		case models.TaskStatusFailed:
			result.Failed = append(result.Failed, dep)
		case models.TaskStatusRunning, models.TaskStatusDeveloped, models.TaskStatusReviewing, models.TaskStatusMerging:
			result.InProgress = append(result.InProgress, dep)
		default:
			result.Blocking = append(result.Blocking, dep)
		}
	}
	return result
}

// Task returns the task for a given ID, or nil if not found.
func (g *Graph) Task(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tasks[taskID]
}

// Status returns taskID's current lifecycle state.
func (g *Graph) Status(taskID string) (models.TaskStatus, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.status[taskID]
	return s, ok
}

// Tasks returns every loaded task, sorted by ID for deterministic
// snapshotting.
func (g *Graph) Tasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*models.Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllTerminal reports whether every loaded task is in `merged` or
// `failed` — used by the Pipeline Manager's waitForCompletion.
func (g *Graph) AllTerminal() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, s := range g.status {
		if !s.Terminal() {
			return false
		}
	}
	return true
}

// Add registers a single additional task (e.g. a synthesized
// conflict-resolution task) after Load has already run, wiring its edges
// and setting its initial state the same way Load would.
func (g *Graph) Add(t *models.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tasks[t.ID] = t
	g.deps[t.ID] = append([]string(nil), t.DependsOn...)
	for _, dep := range t.DependsOn {
		g.dependents[dep] = append(g.dependents[dep], t.ID)
	}
	if t.IsConflictResolution() {
		g.resolutionAlias[t.ID] = t.ConflictResolution.OriginalTaskID
	}

	if g.allDependenciesMerged(t.ID) {
		g.status[t.ID] = models.TaskStatusReady
		t.Status = models.TaskStatusReady
	} else {
		g.status[t.ID] = models.TaskStatusWaiting
		t.Status = models.TaskStatusWaiting
	}
}

// findCycles returns the cycle paths found by a recursion-stack DFS
// (white/gray/black coloring), one path per back edge, accumulating them
// instead of stopping at the first. A cycle that closes only through an
// already-finished (black) node is not reported as a separate path.
func (g *Graph) findCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.tasks))
	for id := range g.tasks {
		color[id] = white
	}

	var cycles [][]string
	var stack []string
	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			switch color[dep] {
			case gray:
				// Found a back edge: dep is still on the stack.
				// The cycle is the stack suffix from dep's position, plus dep again.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle := append([]string(nil), stack[start:]...)
				cycle = append(cycle, dep)
				cycles = append(cycles, cycle)
			case white:
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for id := range g.tasks {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}
