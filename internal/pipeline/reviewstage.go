package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kugutsu/pipeline/internal/eventbus"
	"github.com/kugutsu/pipeline/internal/review"
	"github.com/kugutsu/pipeline/pkg/models"
)

// ReviewItem is one pending review attempt.
type ReviewItem struct {
	Task           *models.Task
	EngineerResult *models.EngineerResult
}

// ReviewStage runs one TechLead review attempt per queued item (spec
// §4.5), emitting REVIEW_COMPLETED for the Pipeline Manager to act on.
type ReviewStage struct {
	workflow  *review.Workflow
	bus       *eventbus.Bus
	escalator *review.Escalator

	mu        sync.Mutex
	pending   []ReviewItem
	cond      *sync.Cond
	closed    bool
	escalated map[string]bool

	wg sync.WaitGroup
}

// NewReviewStage creates a ReviewStage and starts its worker pool.
func NewReviewStage(workflow *review.Workflow, bus *eventbus.Bus, concurrency int) *ReviewStage {
	if concurrency <= 0 {
		concurrency = 1
	}
	s := &ReviewStage{workflow: workflow, bus: bus, escalated: make(map[string]bool)}
	s.cond = sync.NewCond(&s.mu)
	for i := 0; i < concurrency; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Enqueue admits an item to the Review Workflow.
func (s *ReviewStage) Enqueue(item ReviewItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, item)
	s.cond.Signal()
}

// Close stops accepting new work and waits for in-flight workers to drain.
func (s *ReviewStage) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// SetEscalator installs e as the protected-path escalation check; nil
// disables escalation. Must be called before Enqueue is used.
func (s *ReviewStage) SetEscalator(e *review.Escalator) {
	s.escalator = e
}

// QueueDepth returns the number of items currently waiting.
func (s *ReviewStage) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ReviewStage) dequeue() (ReviewItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 {
		if s.closed {
			return ReviewItem{}, false
		}
		s.cond.Wait()
	}
	item := s.pending[0]
	s.pending = s.pending[1:]
	return item, true
}

// shouldEscalate reports whether taskID's changedFiles first trip the
// escalator's protected-path check, marking taskID as escalated so a
// later revision of the same task is never escalated twice.
func (s *ReviewStage) shouldEscalate(taskID string, changedFiles []string) (string, bool) {
	if s.escalator == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.escalated[taskID] {
		return "", false
	}
	touches, pattern := s.escalator.Touches(changedFiles)
	if !touches {
		return "", false
	}
	s.escalated[taskID] = true
	return pattern, true
}

func (s *ReviewStage) worker() {
	defer s.wg.Done()
	for {
		item, ok := s.dequeue()
		if !ok {
			return
		}
		s.process(item)
	}
}

func (s *ReviewStage) process(item ReviewItem) {
	result := s.workflow.Run(context.Background(), item.Task, item.EngineerResult)

	if result.Verdict == models.VerdictApproved {
		if pattern, ok := s.shouldEscalate(item.Task.ID, item.EngineerResult.ChangedFiles); ok {
			result = s.workflow.Run(context.Background(), item.Task, item.EngineerResult)
			result.Comments = append(result.Comments, fmt.Sprintf("escalated: touches protected path %q, required a second pass", pattern))
		}
	}

	s.bus.Emit(models.PipelineEvent{
		Kind:           models.EventReviewCompleted,
		TaskID:         item.Task.ID,
		Timestamp:      time.Now(),
		Task:           item.Task,
		ReviewResult:   &result,
		EngineerResult: item.EngineerResult,
		NeedsRevision:  result.Verdict == models.VerdictChangesRequested,
	})
}
