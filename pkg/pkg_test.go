package pkg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	if Name != "lgen" {
		t.Errorf("Expected Name to be %q, got %q", "lgen", Name)
	}
}

func TestVersion(t *testing.T) {
	// Version is embedded from the VERSION file next to this package.
	buf, err := os.ReadFile("VERSION")
	if err != nil {
		t.Fatalf("Failed to read VERSION file: %v", err)
	}

	if content := strings.TrimSpace(string(buf)); Version != content {
		t.Errorf("Expected Version to be %q, got %q", content, Version)
	}
}

func TestAuthor(t *testing.T) {
	if !slices.ContainsFunc(Author, func(a AuthorInfo) bool {
		return a.Name == "ardnew" && a.Email == "andrew@ardnew.com"
	}) {
		t.Errorf("Expected Author to contain ardnew, got %v", Author)
	}

	for i, author := range Author {
		if author.Name == "" && author.Email == "" {
			t.Errorf("Author[%d] must define at least Name or Email", i)
		}
	}
}

func TestExecutablePrefix(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/usr/bin/lgen", "lgen"},
		{"/usr/bin/lgen.exe", "lgen"},
		{"/tmp/__debug_bin3021", Name},
		{"/home/u/.lgen.sh", "lgen"},
		{"/opt/...", Name},
		{"render", "render"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := executablePrefix(tt.path); got != tt.want {
				t.Errorf("executablePrefix(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestUserDir(t *testing.T) {
	dir := t.TempDir()

	got := userDir(func() (string, error) { return dir, nil }, ".config")
	if got != filepath.Join(dir, Prefix()) {
		t.Errorf("unexpected directory %q", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got = userDir(func() (string, error) { return "", fs.ErrNotExist }, ".cache")
	if got != filepath.Join(home, ".cache", Prefix()) {
		t.Errorf("unexpected fallback directory %q", got)
	}
}

func TestError(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	if err := MakeError(nil, nil).OrNil(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	e := MakeError(errA, nil).Add(nil).Add(errB)
	if len(e) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(e))
	}

	err := e.OrNil()
	if err.Error() != "a failed; b failed" {
		t.Errorf("unexpected message %q", err.Error())
	}

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Error("expected both errors to match")
	}
}
