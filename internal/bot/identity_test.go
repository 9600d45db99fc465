package bot

import (
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewIdentity()
		if !strings.HasPrefix(id, "bot-") || len(id) != len("bot-")+8 {
			t.Fatalf("unexpected identity %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate identity %q", id)
		}
		seen[id] = true
	}
}
