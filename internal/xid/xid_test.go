package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewPrefixesAUUID(t *testing.T) {
	id := New("inv")
	if !strings.HasPrefix(id, "inv-") {
		t.Fatalf("expected inv- prefix, got %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "inv-")); err != nil {
		t.Fatalf("expected uuid suffix in %q: %v", id, err)
	}
	if New("inv") == id {
		t.Fatalf("expected unique ids")
	}
}
