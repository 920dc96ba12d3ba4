package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "utility"); err != nil {
		t.Fatalf("nil pause view should not block: %v", err)
	}
	pauses := StaticPauses{"utility": true}
	if err := Guard(pauses, "utility"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "token"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module name should not block: %v", err)
	}
}
