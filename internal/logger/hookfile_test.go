package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHookFileRotatesOnSplitLines(t *testing.T) {
	dir := t.TempDir()

	h, err := newHookFile(dir, "test.log", 3, 0)
	if err != nil {
		t.Fatalf("newHookFile: %v", err)
	}
	defer h.Close()

	now := time.Now()
	for i := 0; i < 7; i++ {
		if err := h.writeLocked([]byte("line\n"), now); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	base := now.Format("2006_01_02") + "_test.log"
	wantSuffix := base + ".2"

	if _, err := os.Stat(filepath.Join(dir, wantSuffix)); err != nil {
		t.Fatalf("expected rotated file %s to exist: %v", wantSuffix, err)
	}
}

func TestHookFileDayRotationResetsCounter(t *testing.T) {
	dir := t.TempDir()

	h, err := newHookFile(dir, "day.log", 2, 0)
	if err != nil {
		t.Fatalf("newHookFile: %v", err)
	}
	defer h.Close()

	now := time.Now()
	if err := h.writeLocked([]byte("a\n"), now); err != nil {
		t.Fatalf("write: %v", err)
	}

	tomorrow := now.AddDate(0, 0, 1)
	if err := h.writeLocked([]byte("b\n"), tomorrow); err != nil {
		t.Fatalf("write: %v", err)
	}

	if h.day != tomorrow.Day() {
		t.Fatalf("day not advanced: got %d want %d", h.day, tomorrow.Day())
	}
	if h.counter != 1 {
		t.Fatalf("counter not reset on day change: got %d", h.counter)
	}
}
