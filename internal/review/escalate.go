package review

import "strings"

// Escalator flags changes that touch a configured set of protected-path
// globs, so the Review Workflow can require one extra mandatory pass
// even after an APPROVED verdict (SPEC_FULL.md §12's escalation
// heuristic). Adapted from the teacher's `internal/protect.Detector` and
// `second_review.go`'s protected-area trigger, narrowed to the single
// signal SPEC_FULL.md actually calls for: a glob match, not the
// teacher's four-strategy (glob/keyword/file-type/import) detector.
type Escalator struct {
	patterns []string
}

// NewEscalator returns an Escalator matching changed files against
// patterns. A nil or empty patterns disables escalation entirely.
func NewEscalator(patterns []string) *Escalator {
	if len(patterns) == 0 {
		return nil
	}
	return &Escalator{patterns: append([]string(nil), patterns...)}
}

// Touches reports whether any of changedFiles matches one of the
// Escalator's patterns, returning the first matching pattern.
func (e *Escalator) Touches(changedFiles []string) (bool, string) {
	if e == nil {
		return false, ""
	}
	for _, file := range changedFiles {
		for _, pattern := range e.patterns {
			if matchGlobPattern(file, pattern) {
				return true, pattern
			}
		}
	}
	return false, ""
}

// matchGlobPattern matches path against pattern, where "**" matches any
// number of path segments and "*" matches within one segment.
func matchGlobPattern(path, pattern string) bool {
	return matchSegments(strings.Split(path, "/"), strings.Split(pattern, "/"))
}

func matchSegments(path, pattern []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	head := pattern[0]
	rest := pattern[1:]

	if head == "**" {
		if len(rest) == 0 {
			return true
		}
		for i := 0; i <= len(path); i++ {
			if matchSegments(path[i:], rest) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 || !matchSegment(path[0], head) {
		return false
	}
	return matchSegments(path[1:], rest)
}

func matchSegment(segment, pattern string) bool {
	if pattern == "*" || pattern == segment {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	parts := strings.Split(pattern, "*")
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case i == 0:
			if !strings.HasPrefix(segment, part) {
				return false
			}
			pos = len(part)
		case i == len(parts)-1:
			if !strings.HasSuffix(segment, part) {
				return false
			}
		default:
			idx := strings.Index(segment[pos:], part)
			if idx == -1 {
				return false
			}
			pos += idx + len(part)
		}
	}
	return true
}
