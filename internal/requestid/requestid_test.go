package requestid

import (
	"strings"
	"testing"
)

func TestNew_Format(t *testing.T) {
	id := New()
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("expected req_ prefix, got %s", id)
	}
	if !Valid(id) {
		t.Fatalf("generated ID should validate: %s", id)
	}
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d (%s)", len(parts), id)
	}
	if len(parts[2]) != 8 {
		t.Errorf("expected 8-char suffix, got %q", parts[2])
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate request ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"req_1718000000123_9f2b41aa", true},
		{"req_1_x", true},
		{"", false},
		{"req_abc_9f2b41aa", false},
		{"foo_1718000000123_9f2b41aa", false},
		{"req_1718000000123", false},
		{"req_1718000000123_", false},
	}
	for _, c := range cases {
		if got := Valid(c.id); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestOrNew(t *testing.T) {
	keep := "req_1718000000123_9f2b41aa"
	if got := OrNew(keep); got != keep {
		t.Errorf("OrNew should keep a valid ID, got %s", got)
	}
	if got := OrNew("garbage"); !Valid(got) {
		t.Errorf("OrNew should replace an invalid ID, got %s", got)
	}
}
