package lang

import (
	"errors"
	"testing"
)

func TestScope_Get(t *testing.T) {
	s := NewScope(map[string]any{
		"user":  map[string]any{"name": "Ann", "tags": []any{"a", "b"}},
		"name":  "global",
		"typed": map[string]int{"n": 3},
	})

	local := s.with([]string{"name", "unset"}, []any{"local"})

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"name", "local", true},
		{"user.name", "Ann", true},
		{"user.tags.1", "b", true},
		{"user.tags.5", nil, false},
		{"user.missing", nil, false},
		{"typed.n", 3, true},
		{"unset", nil, false},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := local.Get(tt.path)
			if ok != tt.ok || got != tt.want {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}

	if v, _ := s.Get("name"); v != "global" {
		t.Errorf("global scope should be unaffected, got %v", v)
	}
}

func TestScope_GetFallsThroughPerPath(t *testing.T) {
	type point struct {
		X      int
		hidden int
	}

	s := NewScope(map[string]any{
		"x": map[string]any{"b": 2},
		"p": &point{X: 7},
	}).with([]string{"x"}, []any{map[string]any{"a": 1}})

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"x.a", 1, true},
		{"x.b", 2, true},
		{"x.c", nil, false},
		{"p.X", 7, true},
		{"p.hidden", nil, false},
		{"p.Missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := s.Get(tt.path)
			if ok != tt.ok || got != tt.want {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestScope_SetIsReadOnly(t *testing.T) {
	err := NewScope(nil).Set("x", 1)
	if !errors.Is(err, ErrReadOnlyScope) {
		t.Errorf("expected ErrReadOnlyScope, got %v", err)
	}
}

func TestScope_Fingerprint(t *testing.T) {
	s := NewScope(map[string]any{"a": 1})

	a := s.with([]string{"n"}, []any{1})
	b := s.with([]string{"n"}, []any{2})
	c := s.with([]string{"n"}, []any{1})

	if a.fingerprint() == b.fingerprint() {
		t.Error("different arguments should have different fingerprints")
	}

	if a.fingerprint() != c.fingerprint() {
		t.Error("equal arguments should have equal fingerprints")
	}

	if a.fingerprint() == s.with([]string{"n"}, []any{"1"}).fingerprint() {
		t.Error("arguments of different types should have different fingerprints")
	}

	if identity("T", a) == identity("U", a) {
		t.Error("identity should depend on the template name")
	}
}

func TestNewScope(t *testing.T) {
	type address struct {
		City string `yaml:"city"`
	}

	type person struct {
		Name    string  `yaml:"name"`
		Address address `yaml:"address"`
	}

	tests := []struct {
		name  string
		scope any
		path  string
		want  any
	}{
		{"nil", nil, "x", nil},
		{"map", map[string]any{"x": 1}, "x", 1},
		{"scope", NewScope(map[string]any{"x": "s"}), "x", "s"},
		{"struct", person{Name: "Bo", Address: address{City: "Oslo"}}, "address.city", "Oslo"},
		{"struct pointer", &person{Name: "Cy"}, "name", "Cy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newScope(tt.scope)
			if err != nil {
				t.Fatalf("scope error: %v", err)
			}

			got, _ := s.Get(tt.path)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
