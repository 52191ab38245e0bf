package api

import (
	"strings"
	"testing"
)

func TestNewCompletionID(t *testing.T) {
	id := NewCompletionID()
	if !strings.HasPrefix(id, "chatcmpl-") {
		t.Errorf("expected chatcmpl- prefix, got %q", id)
	}
	if len(id) != len("chatcmpl-")+24 {
		t.Errorf("unexpected length %d for %q", len(id), id)
	}
}

func TestNewToolCallID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewToolCallID()
		if !strings.HasPrefix(id, "call_") {
			t.Fatalf("expected call_ prefix, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %q", id)
		}
		seen[id] = true
	}
}
