package review

import (
	"testing"

	"github.com/kugutsu/pipeline/pkg/models"
)

func TestParseVerdict_ExplicitHeader(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       models.Verdict
	}{
		{"approved", "Looks fine overall.\nレビュー結果: APPROVED\n", models.VerdictApproved},
		{"changes requested", "レビュー結果: CHANGES_REQUESTED\nCOMMENT: add a test", models.VerdictChangesRequested},
		{"commented", "レビュー結果: COMMENTED\nminor nit", models.VerdictCommented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.transcript, models.VerdictApproved)
			if got != tt.want {
				t.Errorf("ParseVerdict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseVerdict_KeywordFallback(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       models.Verdict
	}{
		{"changes required keyword", "This needs changes required before merge.", models.VerdictChangesRequested},
		{"lgtm keyword", "lgtm, ship it", models.VerdictApproved},
		{"no signal defaults to configured default", "some unrelated commentary", models.VerdictApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.transcript, models.VerdictApproved)
			if got != tt.want {
				t.Errorf("ParseVerdict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseVerdict_DefaultIsConfigurable(t *testing.T) {
	got := ParseVerdict("no signal here", models.VerdictCommented)
	if got != models.VerdictCommented {
		t.Errorf("ParseVerdict() = %v, want configured default %v", got, models.VerdictCommented)
	}
}

func TestParseVerdict_HeaderTakesPriorityOverKeywords(t *testing.T) {
	transcript := "changes required somewhere in the prose\nレビュー結果: APPROVED\n"
	got := ParseVerdict(transcript, models.VerdictApproved)
	if got != models.VerdictApproved {
		t.Errorf("ParseVerdict() = %v, want APPROVED (explicit header wins)", got)
	}
}
