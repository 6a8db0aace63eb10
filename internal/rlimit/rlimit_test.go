package rlimit

import "testing"

func TestRaiseQueryModeReturnsCurrentLimits(t *testing.T) {
	current, max, err := Raise(0)
	if err != nil {
		t.Fatalf("Raise(0): %v", err)
	}
	if current <= 0 {
		t.Fatalf("current = %d, want > 0", current)
	}
	if max < current {
		t.Fatalf("max = %d < current = %d", max, current)
	}
}

func TestRaiseBelowCurrentIsNoop(t *testing.T) {
	current, _, err := Raise(0)
	if err != nil {
		t.Fatalf("Raise(0): %v", err)
	}

	again, _, err := Raise(1)
	if err != nil {
		t.Fatalf("Raise(1): %v", err)
	}
	if again != current {
		t.Fatalf("Raise(1) changed current limit: got %d want %d", again, current)
	}
}
