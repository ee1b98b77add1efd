package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// CompletionReporter accumulates terminal task outcomes as the Pipeline
// Manager retires tasks and renders a pass/fail summary once the run
// drains, grounded on the teacher's orchestrator completion-tracking
// fields but stripped down to what spec §4.7 actually surfaces: merged
// tasks, failed tasks with their reason, and the dependents each
// failure blocked.
type CompletionReporter struct {
	mu      sync.Mutex
	merged  []string
	failed  map[string]string
	blocked map[string][]string
}

// NewCompletionReporter creates an empty CompletionReporter.
func NewCompletionReporter() *CompletionReporter {
	return &CompletionReporter{
		failed:  make(map[string]string),
		blocked: make(map[string][]string),
	}
}

// RecordMerged records taskID as successfully merged.
func (r *CompletionReporter) RecordMerged(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = append(r.merged, taskID)
}

// RecordFailed records taskID as terminally failed for reason, along
// with the set of dependent task IDs it leaves unreachable.
func (r *CompletionReporter) RecordFailed(taskID, reason string, blockedDependents []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[taskID] = reason
	if len(blockedDependents) > 0 {
		r.blocked[taskID] = blockedDependents
	}
}

// Merged returns the IDs of every task recorded as merged, in the
// order they completed.
func (r *CompletionReporter) Merged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.merged...)
}

// Failed returns a copy of every recorded failure reason, keyed by task ID.
func (r *CompletionReporter) Failed() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.failed))
	for k, v := range r.failed {
		out[k] = v
	}
	return out
}

// Summary renders a colorized terminal report of every merged and
// failed task, plus any dependents a failure blocked.
func (r *CompletionReporter) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", green.Sprintf("merged: %d task(s)", len(r.merged)))
	for _, id := range r.merged {
		fmt.Fprintf(&b, "  %s %s\n", green.Sprint("✓"), id)
	}

	if len(r.failed) == 0 {
		return b.String()
	}

	ids := make([]string, 0, len(r.failed))
	for id := range r.failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(&b, "%s\n", red.Sprintf("failed: %d task(s)", len(r.failed)))
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s %s: %s\n", red.Sprint("✗"), id, r.failed[id])
		if blocked := r.blocked[id]; len(blocked) > 0 {
			fmt.Fprintf(&b, "    %s\n", yellow.Sprintf("blocked: %v", blocked))
		}
	}
	return b.String()
}
