package lang

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolve_Transitive(t *testing.T) {
	r := NewMapResolver(map[string]string{
		"b.lg": "[c](c.lg)\n# B\n- b[C]",
		"c.lg": "# C\n- c",
	})

	tpls := mustParse(t, "[b](b.lg)\n# A\n- a${B()}", WithResolver(r))

	if len(tpls.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(tpls.References))
	}

	if _, ok := tpls.Template("C"); !ok {
		t.Error("expected transitively imported template C")
	}

	got, err := tpls.Evaluate(t.Context(), "A", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "abc" {
		t.Errorf("expected 'abc', got %v", got)
	}
}

func TestResolve_ImportLoop(t *testing.T) {
	r := NewMapResolver(map[string]string{
		"a.lg": "[b](b.lg)\n# A\n- a",
		"b.lg": "[a](a.lg)\n# B\n- b",
	})

	_, err := Parse(t.Context(), "[b](b.lg)\n# A\n- a", "a.lg", WithResolver(r))
	if !errors.Is(err, ErrImportLoop) {
		t.Fatalf("expected ErrImportLoop, got %v", err)
	}

	if !strings.Contains(err.Error(), "a.lg => b.lg => a.lg") {
		t.Errorf("expected loop chain in %q", err.Error())
	}
}

func TestResolve_SelfImport(t *testing.T) {
	r := NewMapResolver(map[string]string{"test.lg": "# A\n- a"})

	tpls := mustParse(t, "[self](test.lg)\n# A\n- a", WithResolver(r))

	if len(tpls.References) != 0 {
		t.Errorf("self import should add no reference, got %d", len(tpls.References))
	}

	if errs := Errors(tpls.Diagnostics); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestResolve_SharedImportOnce(t *testing.T) {
	r := NewMapResolver(map[string]string{
		"b.lg": "[d](d.lg)\n# B\n- b",
		"c.lg": "[d](d.lg)\n# C\n- c",
		"d.lg": "# D\n- d",
	})

	tpls := mustParse(t, "[b](b.lg)\n[c](c.lg)\n# A\n- [B][C][D]", WithResolver(r))

	if len(tpls.References) != 3 {
		t.Errorf("expected 3 references, got %d", len(tpls.References))
	}

	got, err := tpls.Evaluate(t.Context(), "A", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "bcd" {
		t.Errorf("expected 'bcd', got %v", got)
	}
}

func TestResolve_Unresolvable(t *testing.T) {
	_, err := Parse(t.Context(), "[x](missing.lg)\n# A\n- a", "test.lg",
		WithResolver(NewMapResolver(nil)))

	if !errors.Is(err, ErrImportResolve) {
		t.Errorf("expected ErrImportResolve, got %v", err)
	}

	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestResolve_Namespace(t *testing.T) {
	r := NewMapResolver(map[string]string{
		"lib.lg": "> !# @Namespace = lib\n> !# @Exports = Greet\n# Greet(n)\n- hi ${n}",
	})

	tpls := mustParse(t, `[lib](lib.lg)
# A
- ${lib.Greet("Ann")}
`, WithResolver(r))

	if errs := Errors(tpls.AllDiagnostics()); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if _, ok := tpls.NamedReferences()["lib"]; !ok {
		t.Fatal("expected named reference 'lib'")
	}

	got, err := tpls.Evaluate(t.Context(), "A", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "hi Ann" {
		t.Errorf("expected 'hi Ann', got %v", got)
	}
}

func TestMapResolver_Relative(t *testing.T) {
	r := NewMapResolver(nil)
	r.Set("dir/lib.lg", "# L\n- l")

	res, err := r.Resolve(t.Context(), "dir/main.lg", "lib.lg")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}

	if res.ID != "dir/lib.lg" || res.Content != "# L\n- l" {
		t.Errorf("unexpected resource %+v", res)
	}
}

func TestFileResolver(t *testing.T) {
	dir := t.TempDir()

	err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	if err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		"main.lg":     "[lib](sub/lib.lg)\n# Main\n- main [Lib]",
		"sub/lib.lg":  "[util](util.lg)\n# Lib\n- lib[Util]",
		"sub/util.lg": "# Util\n- !",
	}

	for name, content := range files {
		err = os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600)
		if err != nil {
			t.Fatal(err)
		}
	}

	tpls, err := ParseFile(t.Context(), filepath.Join(dir, "main.lg"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	got, err := tpls.Evaluate(t.Context(), "Main", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "main lib!" {
		t.Errorf("expected 'main lib!', got %v", got)
	}
}

func TestCache_ReusesImports(t *testing.T) {
	cache := NewCache()
	r := NewMapResolver(map[string]string{"lib.lg": "# L\n- l"})

	first := mustParse(t, "[lib](lib.lg)\n# A\n- [L]", WithResolver(r), WithCache(cache))
	second := mustParse(t, "[lib](lib.lg)\n# B\n- [L]", WithResolver(r), WithCache(cache))

	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached source, got %d", cache.Len())
	}

	if first.References[0] != second.References[0] {
		t.Error("expected the cached import to be shared")
	}

	r.Set("lib.lg", "# L\n- changed")

	third := mustParse(t, "[lib](lib.lg)\n# C\n- [L]", WithResolver(r), WithCache(cache))
	if third.References[0] == first.References[0] {
		t.Error("changed content should not be served from the cache")
	}

	got, err := third.Evaluate(t.Context(), "C", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "changed" {
		t.Errorf("expected 'changed', got %v", got)
	}

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d", cache.Len())
	}
}
