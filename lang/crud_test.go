package lang

import (
	"errors"
	"testing"
)

func TestAddTemplate(t *testing.T) {
	tpls := mustParse(t, "# A\n- a")

	err := tpls.AddTemplate(t.Context(), "B", []string{"x"}, "- b ${x}")
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if tpls.Content != "# A\n- a\n# B(x)\n- b ${x}\n" {
		t.Errorf("unexpected content %q", tpls.Content)
	}

	got, err := tpls.Evaluate(t.Context(), "B", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "b null" {
		t.Errorf("expected 'b null', got %v", got)
	}

	tpl, ok := tpls.Template("B")
	if !ok || tpl.Range.Start.Line != 3 || tpl.Range.End.Line != 4 {
		t.Errorf("unexpected template %+v", tpl)
	}

	err = tpls.AddTemplate(t.Context(), "A", nil, "- again")
	if !errors.Is(err, ErrTemplateExists) {
		t.Errorf("expected ErrTemplateExists, got %v", err)
	}
}

func TestUpdateTemplate(t *testing.T) {
	tpls := mustParse(t, "# A\n- a\n\n# B\n- b")

	err := tpls.UpdateTemplate(t.Context(), "A", "C", []string{"x"}, "- c ${x}")
	if err != nil {
		t.Fatalf("update error: %v", err)
	}

	if tpls.Content != "# C(x)\n- c ${x}\n\n# B\n- b" {
		t.Errorf("unexpected content %q", tpls.Content)
	}

	if _, ok := tpls.Template("A"); ok {
		t.Error("template A should be renamed")
	}

	got, err := tpls.Evaluate(t.Context(), "C", map[string]any{"x": "y"})
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "c y" {
		t.Errorf("expected 'c y', got %v", got)
	}

	got, err = tpls.EvaluateText(t.Context(), "${C('z')}", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if got != "c z" {
		t.Errorf("expected 'c z', got %v", got)
	}

	b, _ := tpls.Template("B")
	if b.Range.Start.Line != 4 {
		t.Errorf("expected B on line 4, got %s", b.Range)
	}

	err = tpls.UpdateTemplate(t.Context(), "C", "B", nil, "- x")
	if !errors.Is(err, ErrTemplateExists) {
		t.Errorf("expected ErrTemplateExists, got %v", err)
	}

	err = tpls.UpdateTemplate(t.Context(), "Missing", "Missing", nil, "- x")
	if !errors.Is(err, ErrTemplateNotExist) {
		t.Errorf("expected ErrTemplateNotExist, got %v", err)
	}
}

func TestUpdateTemplate_KeepsName(t *testing.T) {
	tpls := mustParse(t, "# A\n- a\n- aa\n# B\n- b")

	err := tpls.UpdateTemplate(t.Context(), "A", "A", nil, "- new")
	if err != nil {
		t.Fatalf("update error: %v", err)
	}

	if tpls.Content != "# A\n- new\n# B\n- b" {
		t.Errorf("unexpected content %q", tpls.Content)
	}
}

func TestDeleteTemplate(t *testing.T) {
	tpls := mustParse(t, "# A\n- a\n\n# B\n- b\n")

	err := tpls.DeleteTemplate(t.Context(), "A")
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}

	if tpls.Content != "\n# B\n- b\n" {
		t.Errorf("unexpected content %q", tpls.Content)
	}

	if len(tpls.Templates) != 1 || tpls.Templates[0].Name != "B" {
		t.Errorf("unexpected templates %+v", tpls.Templates)
	}

	err = tpls.DeleteTemplate(t.Context(), "A")
	if !errors.Is(err, ErrTemplateNotExist) {
		t.Errorf("expected ErrTemplateNotExist, got %v", err)
	}
}

func TestAddThenDelete(t *testing.T) {
	original := "# A\n- a\n"
	tpls := mustParse(t, original)

	err := tpls.AddTemplate(t.Context(), "B", nil, "- b")
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	err = tpls.DeleteTemplate(t.Context(), "B")
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}

	if tpls.Content != original {
		t.Errorf("expected %q, got %q", original, tpls.Content)
	}
}

func TestTemplateSource(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		body   string
		nl     string
		want   string
	}{
		{"plain", nil, "- a", "\n", "# T\n- a\n"},
		{"params", []string{"a", "b"}, "- x", "\n", "# T(a, b)\n- x\n"},
		{"hash line", nil, "- a\n  # heading", "\n", "# T\n- a\n- # heading\n"},
		{"crlf", nil, "- a\n- b", "\r\n", "# T\r\n- a\r\n- b\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := templateSource("T", tt.params, tt.body, tt.nl)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAddTemplate_CRLF(t *testing.T) {
	tpls := mustParse(t, "# A\r\n- a\r\n")

	err := tpls.AddTemplate(t.Context(), "B", nil, "- b")
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if tpls.Content != "# A\r\n- a\r\n# B\r\n- b\r\n" {
		t.Errorf("unexpected content %q", tpls.Content)
	}
}

func TestSpliceLines_OutOfRange(t *testing.T) {
	_, err := spliceLines("a\nb", 1, 5, "")
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}
