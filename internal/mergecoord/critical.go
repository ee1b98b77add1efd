package mergecoord

import "path/filepath"

// criticalFilePatterns are package-manager and root config files that
// commonly collide when multiple tasks touch them concurrently. Used
// only as a log-context annotation on a detected conflict (spec has
// exactly one merge algorithm; this never changes merge strategy),
// adapted from the teacher's `internal/merge.CriticalFilePatterns`.
var criticalFilePatterns = []string{
	"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.mod", "go.sum",
	"Cargo.toml", "Cargo.lock",
	"pyproject.toml", "requirements.txt", "poetry.lock",
	"Gemfile", "Gemfile.lock",
	"pom.xml", "build.gradle",
	"composer.json", "composer.lock",
	"Dockerfile", "docker-compose.yml", "docker-compose.yaml",
}

// criticalOverlap returns the subset of conflicted that matches a known
// critical-file pattern, for inclusion in a MERGE_CONFLICT_DETECTED
// event's log context.
func criticalOverlap(conflicted []string) []string {
	var hits []string
	for _, f := range conflicted {
		base := filepath.Base(f)
		for _, pattern := range criticalFilePatterns {
			if base == pattern {
				hits = append(hits, f)
				break
			}
		}
	}
	return hits
}
