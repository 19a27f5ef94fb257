package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true

	os.Exit(m.Run())
}

// writeFile writes content to name in a new temp directory and returns its
// path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	return path
}

// testGlobals returns Globals writing to the returned buffer.
func testGlobals(stdin string) (*Globals, *bytes.Buffer) {
	var out bytes.Buffer

	return &Globals{
		Encoding: "text",
		Indent:   2,
		Stdin:    strings.NewReader(stdin),
		Stdout:   &out,
	}, &out
}

func TestUniqueSources(t *testing.T) {
	dir := t.TempDir()

	a := filepath.Join(dir, "a.lg")
	b := filepath.Join(dir, "b.lg")

	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("# T\n- t"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	link := filepath.Join(dir, "link.lg")
	if err := os.Symlink(a, link); err != nil {
		t.Fatal(err)
	}

	t.Chdir(dir)

	missing := filepath.Join(dir, "missing.lg")

	tests := []struct {
		name    string
		sources []string
		want    []string
	}{
		{"empty", nil, []string{}},
		{"distinct", []string{a, b}, []string{a, b}},
		{"repeated path", []string{a, b, a}, []string{a, b}},
		{"relative and absolute", []string{"a.lg", a}, []string{"a.lg"}},
		{"symlink", []string{a, link}, []string{a}},
		{"stdin last", []string{"-", a}, []string{a, "-"}},
		{"stdin collapsed", []string{"-", a, "-", b, "-"}, []string{a, b, "-"}},
		{"missing kept", []string{missing, a, missing}, []string{missing, a, missing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := uniqueSources(tt.sources); !slices.Equal(got, tt.want) {
				t.Errorf("uniqueSources(%v) = %v, want %v", tt.sources, got, tt.want)
			}
		})
	}
}

func TestGlobals_EvalOptions(t *testing.T) {
	strict := true

	tests := []struct {
		name    string
		globals Globals
		want    int
		wantErr bool
	}{
		{"unset", Globals{}, 0, false},
		{"strict", Globals{Strict: &strict}, 1, false},
		{"replace null", Globals{ReplaceNull: "<${path}>"}, 1, false},
		{"line break style", Globals{LineBreakStyle: "markdown"}, 1, false},
		{"seed", Globals{Seed: 42}, 1, false},
		{"all", Globals{Strict: &strict, ReplaceNull: "x", LineBreakStyle: "default", Seed: 1}, 4, false},
		{"bad line break style", Globals{LineBreakStyle: "bogus"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.globals.evalOptions()
			if (err != nil) != tt.wantErr {
				t.Fatalf("evalOptions() error = %v, wantErr %v", err, tt.wantErr)
			}

			if len(opts) != tt.want {
				t.Errorf("evalOptions() returned %d options, want %d", len(opts), tt.want)
			}
		})
	}
}

func TestGlobals_LoadStdin(t *testing.T) {
	g, _ := testGlobals("# T\n- from stdin")

	tpls, err := g.load(t.Context(), "-")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if tpls.ID != "stdin" {
		t.Errorf("ID = %q, want stdin", tpls.ID)
	}

	if _, ok := tpls.Template("T"); !ok {
		t.Error("expected template T")
	}
}

func TestGlobals_LoadMissing(t *testing.T) {
	g, _ := testGlobals("")

	if _, err := g.load(t.Context(), filepath.Join(t.TempDir(), "nope.lg")); err == nil {
		t.Error("expected an error for a missing source")
	}
}
