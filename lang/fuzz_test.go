package lang

import (
	"testing"
	"unicode/utf8"
)

// FuzzParse tests parsing and every operation on the parsed templates with
// random inputs to find edge cases.
func FuzzParse(f *testing.F) {
	// Seed corpus with known valid sources
	f.Add("# T\n- hello")
	f.Add("# T\n- a\n- b\n- c")
	f.Add("# T(x)\n- ${x.a}/${x.b}")
	f.Add("# Main\n- ${T(1)} ${T('1')}\n\n# T(x)\n- ${type(x)}")
	f.Add("# T\nIF: ${x > 0}\n- pos\nELSEIF: ${x < 0}\n- neg\nELSE:\n- zero")
	f.Add("# T\nSWITCH: ${x}\nCASE: ${1}\n- one\nDEFAULT:\n- other")
	f.Add("# T\n[Card\n  title = ${name}\n  tags = a | b\n]")
	f.Add("# T\n- ```\nmulti\nline ${x}\n```")
	f.Add("> !# @strict = true\n# T\n- ${missing}")
	f.Add("# T\n- \\${escaped} \\n")
	f.Add("# A\n- ${B()}\n\n# B\n- ${A()}")
	f.Add("# T\n- ${let y = {a: 5}; y.a}")
	f.Add("# T\n- ${")
	f.Add("# T(\n-")

	f.Fuzz(func(t *testing.T, input string) {
		// Skip invalid UTF-8
		if !utf8.ValidString(input) {
			t.Skip("invalid UTF-8")
		}

		// No operation should panic on any input
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("panicked on input %q: %v", input, r)
			}
		}()

		tpls, err := Parse(t.Context(), input, "fuzz.lg")
		if err != nil {
			return
		}

		scope := map[string]any{"x": 1, "name": "fuzz"}

		for _, tpl := range tpls.Templates {
			if tpl == nil {
				t.Error("nil template")

				continue
			}

			_, _ = tpls.Evaluate(t.Context(), tpl.Name, scope, WithRandom(&sequence{}))
			_, _ = tpls.Expand(t.Context(), tpl.Name, scope)
			_, _ = tpls.Analyze(t.Context(), tpl.Name)
		}
	})
}
