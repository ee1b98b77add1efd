package mergecoord

import (
	"reflect"
	"testing"
)

func TestCriticalOverlap_MatchesKnownPatterns(t *testing.T) {
	got := criticalOverlap([]string{"src/app.go", "go.mod", "internal/foo/bar.go"})
	want := []string{"go.mod"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("criticalOverlap = %v, want %v", got, want)
	}
}

func TestCriticalOverlap_EmptyWhenNoneMatch(t *testing.T) {
	if got := criticalOverlap([]string{"src/app.go"}); got != nil {
		t.Errorf("criticalOverlap = %v, want nil", got)
	}
}
