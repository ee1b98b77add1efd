package pipeline

import (
	"strings"
	"testing"
)

func TestCompletionReporter_RecordMergedAndFailed(t *testing.T) {
	r := NewCompletionReporter()
	r.RecordMerged("1")
	r.RecordMerged("2")
	r.RecordFailed("3", "agent executor failed", []string{"4", "5"})

	if merged := r.Merged(); len(merged) != 2 {
		t.Fatalf("Merged() = %v, want 2 entries", merged)
	}
	failed := r.Failed()
	if failed["3"] != "agent executor failed" {
		t.Fatalf("Failed()[3] = %q, want %q", failed["3"], "agent executor failed")
	}
}

func TestCompletionReporter_SummaryMentionsMergedFailedAndBlocked(t *testing.T) {
	r := NewCompletionReporter()
	r.RecordMerged("1")
	r.RecordFailed("2", "boom", []string{"3"})

	summary := r.Summary()
	for _, want := range []string{"1", "2", "boom", "3"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, want it to contain %q", summary, want)
		}
	}
}

func TestCompletionReporter_EmptySummaryHasNoFailedSection(t *testing.T) {
	r := NewCompletionReporter()
	r.RecordMerged("1")

	summary := r.Summary()
	if strings.Contains(summary, "failed:") {
		t.Errorf("Summary() = %q, want no failed section when nothing failed", summary)
	}
}
