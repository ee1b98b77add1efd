// Package state writes the `.kugutsu/` pipeline-snapshot file spec §6
// describes as a convention for external tooling, not a protocol the
// orchestrator itself depends on: the snapshot is overwritten on every
// pipeline event and never read back.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kugutsu/pipeline/internal/depgraph"
	"github.com/kugutsu/pipeline/internal/eventbus"
	"github.com/kugutsu/pipeline/pkg/models"
)

// taskSnapshot is one task's externally-visible state.
type taskSnapshot struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Type       models.TaskType   `json:"type"`
	Status     models.TaskStatus `json:"status"`
	DependsOn  []string          `json:"depends_on,omitempty"`
	BranchName string            `json:"branch_name,omitempty"`
}

// snapshot is the top-level `.kugutsu/state.json` document.
type snapshot struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Tasks     []taskSnapshot `json:"tasks"`
}

// Snapshotter renders a Graph's current state to a JSON file under dir
// every time it is triggered.
type Snapshotter struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotter returns a Snapshotter that writes dir/state.json.
func NewSnapshotter(dir string) *Snapshotter {
	return &Snapshotter{path: filepath.Join(dir, "state.json")}
}

// Watch subscribes to every pipeline event kind and rewrites the
// snapshot file on each one, so external tools (not the orchestrator)
// can tail the pipeline's progress.
func (s *Snapshotter) Watch(bus *eventbus.Bus, graph *depgraph.Graph) {
	kinds := []models.EventKind{
		models.EventDevelopmentCompleted,
		models.EventReviewCompleted,
		models.EventMergeReady,
		models.EventMergeConflictDetected,
		models.EventMergeCompleted,
		models.EventTaskFailed,
		models.EventDependencyResolved,
	}
	for _, kind := range kinds {
		bus.Subscribe(kind, func(models.PipelineEvent) error {
			return s.Write(graph)
		})
	}
}

// Write renders graph's current state to the snapshot file, creating
// its parent directory if needed. Best-effort: a write failure is
// returned to the caller but never blocks the pipeline.
func (s *Snapshotter) Write(graph *depgraph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := graph.Tasks()
	snap := snapshot{UpdatedAt: time.Now(), Tasks: make([]taskSnapshot, 0, len(tasks))}
	for _, t := range tasks {
		status, _ := graph.Status(t.ID)
		snap.Tasks = append(snap.Tasks, taskSnapshot{
			ID:         t.ID,
			Title:      t.Title,
			Type:       t.Type,
			Status:     status,
			DependsOn:  t.DependsOn,
			BranchName: t.BranchName,
		})
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
