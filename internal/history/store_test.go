package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreAt(filepath.Join(t.TempDir(), "history.jsonl"), zerolog.Nop())
}

func TestAddAndRecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := newTempStore(t)
	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.AddEntry(text, 1200, domain.ModeHoldToTalk); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "third" || entries[2].Text != "first" {
		t.Fatalf("expected newest first, got %v", entries)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	t.Parallel()

	s := newTempStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.AddEntry("entry", 100, domain.ModeHandsFree); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestRecentOnMissingFileReturnsEmpty(t *testing.T) {
	t.Parallel()

	s := NewStoreAt(filepath.Join(t.TempDir(), "nope.jsonl"), zerolog.Nop())
	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

func TestRecentSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	s := NewStoreAt(path, zerolog.Nop())

	if _, err := s.AddEntry("good", 100, domain.ModeHoldToTalk); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.WriteString("{torn line\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_ = f.Close()

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "good" {
		t.Fatalf("expected only the valid entry, got %v", entries)
	}
}

func TestAddEntryReturnsUniqueIDs(t *testing.T) {
	t.Parallel()

	s := newTempStore(t)
	a, err := s.AddEntry("one", 10, domain.ModeHandsFree)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	b, err := s.AddEntry("two", 10, domain.ModeHandsFree)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
