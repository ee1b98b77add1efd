package agent

import "testing"

func TestMessageKinds_AreDistinct(t *testing.T) {
	kinds := []MessageKind{
		MessageUserInput, MessageAssistantText, MessageToolInvocation,
		MessageToolResult, MessageSystemNotice, MessageError, MessageSessionMarker,
	}
	seen := make(map[MessageKind]bool)
	for _, k := range kinds {
		if seen[k] {
			t.Fatalf("duplicate message kind %q", k)
		}
		seen[k] = true
	}
	if len(seen) != 7 {
		t.Fatalf("got %d distinct kinds, want 7", len(seen))
	}
}
