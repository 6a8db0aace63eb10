package rguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xujiajun/mmap-go"
)

func openMap(t *testing.T, body string) mmap.MMap {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		t.Fatalf("mmap: %v", err)
	}
	return m
}

func TestGuardCloseUnmapsAndIsIdempotent(t *testing.T) {
	var g Guard
	g.Add(openMap(t, "hello world"))

	if g.Region() == nil {
		t.Fatal("expected a held region")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if g.Region() != nil {
		t.Fatal("expected region cleared after Close")
	}
	// Second close must not panic or error.
	if err := g.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestGuardResetAllowsReuse(t *testing.T) {
	var g Guard
	g.Add(openMap(t, "one"))
	_ = g.Close()

	g.Reset()
	g.Add(openMap(t, "two"))
	if g.Region() == nil {
		t.Fatal("expected region after reset+Add")
	}
	_ = g.Close()
}
