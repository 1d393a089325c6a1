package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewCarriesPrefixAndUUID(t *testing.T) {
	id := New("prd")
	if !strings.HasPrefix(id, "prd_") {
		t.Fatalf("expected prd_ prefix, got %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "prd_")); err != nil {
		t.Fatalf("expected uuid suffix, got %q: %v", id, err)
	}
	if New("prd") == id {
		t.Fatalf("expected distinct ids")
	}
}

func TestShortLength(t *testing.T) {
	if got := Short(4); len(got) != 4 {
		t.Fatalf("expected 4 chars, got %q", got)
	}
	if got := Short(0); len(got) != 32 {
		t.Fatalf("expected full hex for n=0, got %q", got)
	}
}
