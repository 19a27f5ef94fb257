package repl

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestHistory_AddAndEntry(t *testing.T) {
	h := NewHistory("")

	for _, line := range []string{"Greet", "  ", "list"} {
		if err := h.Add(line, modeEval); err != nil {
			t.Fatalf("Add(%q): %v", line, err)
		}
	}

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}

	e, err := h.Entry(1)
	if err != nil || e.Line != "list" {
		t.Errorf("Entry(1) = (%v, %v), want list", e, err)
	}

	for _, i := range []int{-1, 2} {
		if _, err := h.Entry(i); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Entry(%d) error = %v, want ErrOutOfBounds", i, err)
		}
	}
}

func TestHistory_DuplicatesMoveToEnd(t *testing.T) {
	h := NewHistory("")

	_ = h.Add("a", modeEval)
	_ = h.Add("b", modeEval)
	_ = h.Add("a", modeEval)
	_ = h.Add("a", modeEval)
	_ = h.Add("a", modeCtrl)

	want := []HistoryEntry{
		{Line: "b", Mode: modeEval},
		{Line: "a", Mode: modeEval},
		{Line: "a", Mode: modeCtrl},
	}

	if got := h.Entries(); !slices.Equal(got, want) {
		t.Errorf("Entries = %v, want %v", got, want)
	}
}

func TestHistory_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}

	_ = h.Add("Greet", modeEval)
	_ = h.Add("list", modeCtrl)
	_ = h.Add("Greet", modeEval)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat history: %v", err)
	}

	if perm := info.Mode().Perm(); perm != historyFileMode {
		t.Errorf("history mode = %o, want %o", perm, historyFileMode)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}

	if got, want := string(data), "C:list\nE:Greet\n"; got != want {
		t.Errorf("history file = %q, want %q", got, want)
	}

	loaded := NewHistory(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !slices.Equal(loaded.Entries(), h.Entries()) {
		t.Errorf("loaded %v, want %v", loaded.Entries(), h.Entries())
	}
}

func TestDecodeEntry(t *testing.T) {
	tests := []struct {
		line string
		want HistoryEntry
	}{
		{"E:Greet", HistoryEntry{Line: "Greet", Mode: modeEval}},
		{"C:list", HistoryEntry{Line: "list", Mode: modeCtrl}},
		{"Greet", HistoryEntry{Line: "Greet", Mode: modeEval}},
	}

	for _, tt := range tests {
		if got := decodeEntry(tt.line); got != tt.want {
			t.Errorf("decodeEntry(%q) = %v, want %v", tt.line, got, tt.want)
		}

		if got := decodeEntry(tt.want.encode()); got != tt.want {
			t.Errorf("decodeEntry(encode(%v)) = %v", tt.want, got)
		}
	}
}
