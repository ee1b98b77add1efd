package pipeline

import (
	"sort"
	"sync"

	"github.com/kugutsu/pipeline/pkg/models"
)

// item wraps a task with the sequence number it was enqueued at, so
// FIFO order survives the stable priority sort (spec §4.4: "max-priority
// queue with FIFO tie-break").
type item struct {
	task *models.Task
	seq  uint64
}

// Queue is a thread-safe, bounded-concurrency work queue ordered by
// models.Priority (higher first), FIFO among equal priorities. Dequeue
// blocks until an item is available or the queue is closed.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []item
	nextSeq uint64
	closed  bool
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds task to the queue.
func (q *Queue) Enqueue(task *models.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item{task: task, seq: q.nextSeq})
	q.nextSeq++
	sort.SliceStable(q.items, func(i, j int) bool {
		if q.items[i].task.Priority != q.items[j].task.Priority {
			return q.items[i].task.Priority > q.items[j].task.Priority
		}
		return q.items[i].seq < q.items[j].seq
	})
	q.cond.Signal()
}

// Dequeue blocks until a task is available, returning (task, true), or
// returns (nil, false) once the queue is closed and drained.
func (q *Queue) Dequeue() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}
	next := q.items[0]
	q.items = q.items[1:]
	return next.task, true
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed; blocked Dequeue calls return once drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
