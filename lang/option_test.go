package lang

import (
	"errors"
	"testing"
)

func TestParseLineBreakStyle(t *testing.T) {
	tests := []struct {
		input   string
		want    LineBreakStyle
		wantErr bool
	}{
		{"", LineBreakDefault, false},
		{"default", LineBreakDefault, false},
		{" Markdown ", LineBreakMarkdown, false},
		{"html", LineBreakDefault, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLineBreakStyle(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}

			if err != nil && !errors.Is(err, ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}

			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLineBreakStyle_Text(t *testing.T) {
	var s LineBreakStyle

	err := s.UnmarshalText([]byte("markdown"))
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if s != LineBreakMarkdown {
		t.Errorf("expected markdown, got %s", s)
	}

	data, err := s.MarshalText()
	if err != nil || string(data) != "markdown" {
		t.Errorf("expected 'markdown', got %q (%v)", data, err)
	}

	if got := s.apply("a\nb"); got != "a\n\nb" {
		t.Errorf("expected doubled line break, got %q", got)
	}

	if got := LineBreakDefault.apply("a\nb"); got != "a\nb" {
		t.Errorf("default style should not change text, got %q", got)
	}

	if got := s.apply(3); got != 3 {
		t.Errorf("non-string values should pass through, got %v", got)
	}
}

func TestFileSettings(t *testing.T) {
	input := `> !# @strict = true
> !# @replaceNull = <${path}>
> !# @lineBreakStyle = markdown
> !# @lineBreakStyle = bogus
> !# @unknown = ignored
# T
- ${x}
`

	tpls := mustParse(t, input)

	o := tpls.evalOptions()
	if !o.StrictMode {
		t.Error("expected strict mode from option line")
	}

	if o.LineBreakStyle != LineBreakMarkdown {
		t.Errorf("expected markdown line breaks, got %s", o.LineBreakStyle)
	}

	if o.NullSubstitution == nil || o.NullSubstitution("x") != "<x>" {
		t.Error("expected null substitution from option line")
	}

	if !hasDiagnostic(tpls.Diagnostics, SeverityWarning, "invalid option '@lineBreakStyle = bogus'") {
		t.Errorf("expected invalid option warning, got %v", tpls.Diagnostics)
	}

	o = tpls.evalOptions(WithStrictMode(false), WithLineBreakStyle(LineBreakDefault))
	if o.StrictMode || o.LineBreakStyle != LineBreakDefault {
		t.Errorf("caller options should override option lines, got %+v", o)
	}

	if o.Random == nil {
		t.Error("expected a default random source")
	}
}
