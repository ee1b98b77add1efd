// Package review implements the Review Workflow (spec §4.5): a single
// TechLead review attempt per queued item, its two-pass verdict parser,
// and the bounded revision-retry policy.
package review

import (
	"strings"

	"github.com/kugutsu/pipeline/pkg/models"
)

// verdictHeader is the explicit header line the parser looks for first
// (spec §7): "レビュー結果: APPROVED|CHANGES_REQUESTED|COMMENTED".
const verdictHeader = "レビュー結果:"

// changeRequiredKeywords are localized phrases that force
// CHANGES_REQUESTED during the keyword-fallback pass.
var changeRequiredKeywords = []string{
	"修正してください",
	"変更が必要",
	"要修正",
	"please fix",
	"changes required",
	"needs changes",
}

// approvalKeywords are phrases that force APPROVED during the
// keyword-fallback pass.
var approvalKeywords = []string{
	"approved",
	"承認します",
	"問題ありません",
	"looks good",
	"lgtm",
}

// ParseVerdict parses a TechLead transcript into a Verdict using the
// spec's exact two-pass contract: an explicit header match first, then a
// keyword fallback. The fallback's default is APPROVED even when no
// keyword matched — this mirrors the upstream behavior the spec
// explicitly preserves as a configurable default rather than "fixes"
// (spec §9 Open Questions), via defaultVerdict.
func ParseVerdict(transcript string, defaultVerdict models.Verdict) models.Verdict {
	if v, ok := parseHeader(transcript); ok {
		return v
	}
	return parseKeywords(transcript, defaultVerdict)
}

func parseHeader(transcript string) (models.Verdict, bool) {
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, verdictHeader)
		if idx == -1 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len(verdictHeader):])
		switch {
		case strings.HasPrefix(rest, string(models.VerdictChangesRequested)):
			return models.VerdictChangesRequested, true
		case strings.HasPrefix(rest, string(models.VerdictCommented)):
			return models.VerdictCommented, true
		case strings.HasPrefix(rest, string(models.VerdictApproved)):
			return models.VerdictApproved, true
		}
	}
	return "", false
}

func parseKeywords(transcript string, defaultVerdict models.Verdict) models.Verdict {
	lower := strings.ToLower(transcript)
	for _, kw := range changeRequiredKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return models.VerdictChangesRequested
		}
	}
	for _, kw := range approvalKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return models.VerdictApproved
		}
	}
	return defaultVerdict
}
