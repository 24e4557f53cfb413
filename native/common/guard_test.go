package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "offers"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	pauses := NewPauses(" Offers ", "")
	if !pauses.IsPaused("offers") {
		t.Fatalf("expected offers to be paused")
	}
	if err := Guard(pauses, "offers"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "bank"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module name must not block: %v", err)
	}
}
