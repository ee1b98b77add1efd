package review

import "testing"

func TestNewEscalator_NilWhenNoPatterns(t *testing.T) {
	if e := NewEscalator(nil); e != nil {
		t.Fatalf("NewEscalator(nil) = %v, want nil", e)
	}
}

func TestEscalator_TouchesMatchesDoubleStarGlob(t *testing.T) {
	e := NewEscalator([]string{"**/auth/**"})

	if touches, _ := e.Touches([]string{"internal/handler.go"}); touches {
		t.Error("expected no match for an unrelated path")
	}
	touches, pattern := e.Touches([]string{"internal/auth/login.go"})
	if !touches || pattern != "**/auth/**" {
		t.Errorf("Touches = (%v, %q), want (true, \"**/auth/**\")", touches, pattern)
	}
}

func TestEscalator_TouchesMatchesSingleStarWithinSegment(t *testing.T) {
	e := NewEscalator([]string{"*.pem"})

	if touches, _ := e.Touches([]string{"config.yaml"}); touches {
		t.Error("expected no match for a non-.pem file")
	}
	if touches, _ := e.Touches([]string{"server.pem"}); !touches {
		t.Error("expected a match for server.pem")
	}
}
