package lang

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// sequence is a deterministic Random cycling through successive values.
type sequence struct{ n int }

func (s *sequence) IntN(n int) int {
	v := s.n % n
	s.n++

	return v
}

func evaluate(t *testing.T, content, name string, scope any, opts ...EvalOption) any {
	t.Helper()

	tpls := mustParse(t, content)

	result, err := tpls.Evaluate(t.Context(), name, scope, opts...)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	return result
}

func TestEvaluate_RandomAlternatives(t *testing.T) {
	tpls := mustParse(t, "# T\n- a\n- b\n- c")

	seen := make(map[any]bool)

	for range 200 {
		result, err := tpls.Evaluate(t.Context(), "T", nil)
		if err != nil {
			t.Fatalf("evaluate error: %v", err)
		}

		switch result {
		case "a", "b", "c":
			seen[result] = true
		default:
			t.Fatalf("unexpected alternative %v", result)
		}
	}

	if len(seen) < 2 {
		t.Errorf("expected more than one distinct alternative, got %v", seen)
	}
}

func TestEvaluate_Expressions(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		scope map[string]any
		want  any
	}{
		{"text", "- hello world", nil, "hello world"},
		{"interpolation", "- Hi ${name}!", map[string]any{"name": "Ann"}, "Hi Ann!"},
		{"native value", "- ${1 + 1}", nil, 2},
		{"native object", "- ${{a: 1}}", nil, map[string]any{"a": 1}},
		{"member path", "- ${user.name}", map[string]any{"user": map[string]any{"name": "Bo"}}, "Bo"},
		{"missing member", "- x${user.missing.deep}", map[string]any{"user": map[string]any{}}, "xnull"},
		{"null in text", "- Hi ${nobody}", nil, "Hi null"},
		{"escapes", "- a\\tb\\[c\\]", nil, "a\tb[c]"},
		{"builtin", "- ${upper(name)}", map[string]any{"name": "x"}, "X"},
		{"number formatting", "- n=${1.5 * 2}", nil, "n=3"},
		{"multiline", "- ```one\n${name}```", map[string]any{"name": "two"}, "one\ntwo"},
		{"multiline at-expression", "- ```@{name}```", map[string]any{"name": "two"}, "two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluate(t, "# T\n"+tt.body, "T", tt.scope)

			if stringify(result) != stringify(tt.want) {
				t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, result, result)
			}
		})
	}
}

func TestEvaluate_TemplateCalls(t *testing.T) {
	input := `# Greet(name)
- Hello ${name}

# ByCall
- ${Greet("Ann")}

# ByReference
- [Greet("Bo")]

# ByFunction
- ${template("Greet", "Cy")}

# Inherit
- [Scoped]

# Scoped
- ${who}

# Prefixed
- ${lg.Greet("Di")}
`

	tpls := mustParse(t, input)

	tests := []struct {
		name string
		want string
	}{
		{"ByCall", "Hello Ann"},
		{"ByReference", "Hello Bo"},
		{"ByFunction", "Hello Cy"},
		{"Inherit", "caller"},
		{"Prefixed", "Hello Di"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tpls.Evaluate(t.Context(), tt.name, map[string]any{"who": "caller"})
			if err != nil {
				t.Fatalf("evaluate error: %v", err)
			}

			if result != tt.want {
				t.Errorf("expected %q, got %v", tt.want, result)
			}
		})
	}
}

func TestEvaluate_ParameterScope(t *testing.T) {
	input := `# Start
- ${Outer("local")}

# Outer(name)
- ${name}:${Inner("x")}

# Inner(other)
- ${other}/${name}/${global}
`

	result := evaluate(t, input, "Start", map[string]any{"global": "g", "name": "root"})

	// Parameterized calls see the global layer, not the caller's locals.
	if result != "local:x/root/g" {
		t.Errorf("expected 'local:x/root/g', got %v", result)
	}
}

func TestEvaluate_Conditional(t *testing.T) {
	input := `# T
IF: ${x > 0}
- pos
ELSE:
- non-pos
`

	tests := []struct {
		x    any
		want string
	}{
		{5, "pos"},
		{-1, "non-pos"},
		{0, "non-pos"},
	}

	tpls := mustParse(t, input)

	for _, tt := range tests {
		result, err := tpls.Evaluate(t.Context(), "T", map[string]any{"x": tt.x})
		if err != nil {
			t.Fatalf("evaluate error: %v", err)
		}

		if result != tt.want {
			t.Errorf("x=%v: expected %q, got %v", tt.x, tt.want, result)
		}
	}
}

func TestEvaluate_ConditionTruthiness(t *testing.T) {
	input := `# T
IF: ${v}
- yes
ELSE:
- no
`

	tests := []struct {
		name string
		v    any
		want string
	}{
		{"true", true, "yes"},
		{"false", false, "no"},
		{"null", nil, "no"},
		{"zero", 0, "no"},
		{"zero float", 0.0, "no"},
		{"number", 3, "yes"},
		{"string", "s", "yes"},
	}

	tpls := mustParse(t, input)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tpls.Evaluate(t.Context(), "T", map[string]any{"v": tt.v})
			if err != nil {
				t.Fatalf("evaluate error: %v", err)
			}

			if result != tt.want {
				t.Errorf("expected %q, got %v", tt.want, result)
			}
		})
	}
}

func TestEvaluate_ConditionNoMatch(t *testing.T) {
	tpls := mustParse(t, "# T\nIF: ${false}\n- a\nELSEIF: ${false}\n- b")

	result, err := tpls.Evaluate(t.Context(), "T", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}

	_, err = tpls.Evaluate(t.Context(), "T", nil, WithStrictMode(true))
	if !errors.Is(err, ErrNullExpression) {
		t.Errorf("expected ErrNullExpression in strict mode, got %v", err)
	}
}

func TestEvaluate_Switch(t *testing.T) {
	input := `# T
SWITCH: ${color}
CASE: ${"red"}
- stop
CASE: ${"green"}
- go
DEFAULT:
- wait

# Number
SWITCH: ${n}
CASE: ${"1"}
- one
CASE: ${2}
- two
`

	tpls := mustParse(t, input)

	tests := []struct {
		name  string
		scope map[string]any
		want  any
	}{
		{"T", map[string]any{"color": "red"}, "stop"},
		{"T", map[string]any{"color": "green"}, "go"},
		{"T", map[string]any{"color": "blue"}, "wait"},
		{"Number", map[string]any{"n": 1}, "one"},
		{"Number", map[string]any{"n": "2"}, "two"},
		{"Number", map[string]any{"n": 3}, nil},
	}

	for _, tt := range tests {
		result, err := tpls.Evaluate(t.Context(), tt.name, tt.scope)
		if err != nil {
			t.Fatalf("evaluate error: %v", err)
		}

		if result != tt.want {
			t.Errorf("%s %v: expected %v, got %v", tt.name, tt.scope, tt.want, result)
		}
	}
}

func TestEvaluate_Structured(t *testing.T) {
	input := `# T
[Foo
  key = ${1+1}
]

# Card
[Card
  Title = Hello ${name}
  buttons = Yes | No | ${name}
  ${Base()}
]

# Base
[Card
  title = base
  subtitle = inherited
]

# Other
[Other
  subtitle = ignored
]

# Mismatch
[Card
  title = kept
  ${Other()}
]
`

	tpls := mustParse(t, input)

	result, err := tpls.Evaluate(t.Context(), "T", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", result)
	}

	if m[lgTypeKey] != "Foo" || m["key"] != 2 {
		t.Errorf("unexpected structure %v", m)
	}

	result, err = tpls.Evaluate(t.Context(), "Card", map[string]any{"name": "Ann"})
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	card := result.(map[string]any)

	if card["title"] != "Hello Ann" {
		t.Errorf("caller key should win, got %v", card["title"])
	}

	if card["subtitle"] != "inherited" {
		t.Errorf("expected merged subtitle, got %v", card["subtitle"])
	}

	buttons, ok := card["buttons"].([]any)
	if !ok || len(buttons) != 3 || buttons[0] != "Yes" || buttons[2] != "Ann" {
		t.Errorf("unexpected buttons %v", card["buttons"])
	}

	result, err = tpls.Evaluate(t.Context(), "Mismatch", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if _, ok := result.(map[string]any)["subtitle"]; ok {
		t.Error("objects of another type must not be merged")
	}
}

func TestEvaluate_LoopDetected(t *testing.T) {
	input := `# A
- ${B()}

# B
- [A]
`

	tpls := mustParse(t, input)

	_, err := tpls.Evaluate(t.Context(), "A", nil)
	if !errors.Is(err, ErrLoopDetected) {
		t.Fatalf("expected ErrLoopDetected, got %v", err)
	}

	msg := err.Error()
	if !strings.Contains(msg, "A => B => A") {
		t.Errorf("expected call chain in %q", msg)
	}
}

func TestEvaluate_RecursionWithArguments(t *testing.T) {
	input := `# Count(n)
IF: ${n <= 0}
- done
ELSE:
- ${n},${Count(n - 1)}

# Wrapper
- ${Count(3)}
`

	result := evaluate(t, input, "Wrapper", nil)

	// Each call has its own arguments, so recursion is not a loop.
	if result != "3,2,1,done" {
		t.Errorf("expected '3,2,1,done', got %v", result)
	}
}

func TestEvaluate_ArgumentTypesAreDistinct(t *testing.T) {
	input := `# Main
- ${T(1)} ${T('1')}

# T(x)
- ${type(x)}
`

	// Calls with equal-looking arguments of different types are not
	// memoized together.
	if result := evaluate(t, input, "Main", nil); result != "int string" {
		t.Errorf("expected 'int string', got %v", result)
	}
}

func TestEvaluate_ArgumentTypeRecursion(t *testing.T) {
	input := `# Main
- ${Step(1)}

# Step(x)
IF: ${type(x) == "int"}
- ${Step(string(x))}
ELSE:
- done ${x}
`

	if result := evaluate(t, input, "Main", nil); result != "done 1" {
		t.Errorf("expected 'done 1', got %v", result)
	}
}

func TestEvaluate_ScopePaths(t *testing.T) {
	type point struct{ X, Y int }

	tests := []struct {
		name  string
		input string
		scope map[string]any
		want  any
	}{
		{
			name:  "argument path falls through to caller scope",
			input: `# Main
- ${T({a: 1})}

# T(x)
- ${x.a}/${x.b}`,
			scope: map[string]any{"x": map[string]any{"b": 2}},
			want:  "1/2",
		},
		{
			name:  "argument shadows caller path",
			input: `# Main
- ${T({b: 'local'})}

# T(x)
- ${x.b}`,
			scope: map[string]any{"x": map[string]any{"b": "global"}},
			want:  "local",
		},
		{
			name:  "index path",
			input: `# Main
- ${items[1].name}`,
			scope: map[string]any{"items": []any{
				map[string]any{"name": "a"},
				map[string]any{"name": "b"},
			}},
			want: "b",
		},
		{
			name:  "struct field",
			input: `# Main
- ${p.X},${p.Y}`,
			scope: map[string]any{"p": &point{X: 3, Y: 4}},
			want:  "3,4",
		},
		{
			name:  "let binding",
			input: `# Main
- v=${let y = {a: 5}; y.a}`,
			scope: map[string]any{"y": map[string]any{"a": 9}},
			want:  "v=5",
		},
		{
			name:  "computed key",
			input: `# Main
- ${user[key]}`,
			scope: map[string]any{"user": map[string]any{"name": "Ann"}, "key": "name"},
			want:  "Ann",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := evaluate(t, tt.input, "Main", tt.scope); result != tt.want {
				t.Errorf("expected %v, got %v", tt.want, result)
			}
		})
	}
}

func TestEvaluate_Memoization(t *testing.T) {
	input := `# Pair
- ${R()}${R()}

# Forced
- ${R()}${R!()}

# R
- x
- y
`

	tpls := mustParse(t, input)

	result, err := tpls.Evaluate(t.Context(), "Pair", nil, WithRandom(&sequence{}))
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "yy" {
		t.Errorf("expected memoized 'yy', got %v", result)
	}

	result, err = tpls.Evaluate(t.Context(), "Forced", nil, WithRandom(&sequence{}))
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "yx" {
		t.Errorf("expected forced 'yx', got %v", result)
	}
}

func TestEvaluate_StrictMode(t *testing.T) {
	tpls := mustParse(t, "# T\n- Hi ${name}")

	_, err := tpls.Evaluate(t.Context(), "T", nil, WithStrictMode(true))
	if !errors.Is(err, ErrNullExpression) {
		t.Fatalf("expected ErrNullExpression, got %v", err)
	}

	if !strings.Contains(err.Error(), "[T]") || !strings.Contains(err.Error(), "${name}") {
		t.Errorf("expected template and expression in %q", err.Error())
	}
}

func TestEvaluate_NullSubstitution(t *testing.T) {
	tpls := mustParse(t, "# T\n- Hi ${user.name}")

	result, err := tpls.Evaluate(t.Context(), "T", nil,
		WithNullSubstitution(func(expression string) any { return "<" + expression + ">" }))
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "Hi <user.name>" {
		t.Errorf("expected 'Hi <user.name>', got %v", result)
	}
}

func TestEvaluate_FileOptions(t *testing.T) {
	input := `> !# @strict = false
> !# @replaceNull = ${path} is undefined
> !# @lineBreakStyle = markdown
# T
- Hi ${name}

# Lines
- ` + "```a\nb```"

	tpls := mustParse(t, input)

	result, err := tpls.Evaluate(t.Context(), "T", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "Hi name is undefined" {
		t.Errorf("unexpected result %v", result)
	}

	result, err = tpls.Evaluate(t.Context(), "Lines", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "a\n\nb" {
		t.Errorf("expected markdown line breaks, got %q", result)
	}

	result, err = tpls.Evaluate(t.Context(), "Lines", nil, WithLineBreakStyle(LineBreakDefault))
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "a\nb" {
		t.Errorf("caller option should override file option, got %q", result)
	}
}

func TestEvaluate_InvalidFileOption(t *testing.T) {
	tpls := mustParse(t, "> !# @strict = maybe\n# T\n- t")

	if !hasDiagnostic(tpls.Diagnostics, SeverityWarning, "invalid option") {
		t.Errorf("expected warning, got %v", tpls.Diagnostics)
	}
}

func TestEvaluate_HostFunctions(t *testing.T) {
	input := `# Check
- ${isTemplate("Check")}/${isTemplate("Nope")}

# Attach
- ${ActivityAttachment("body", "text/plain")}

# Inline
- ${expandText("Hi ${name}")}
`

	tpls := mustParse(t, input)

	result, err := tpls.Evaluate(t.Context(), "Check", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "true/false" {
		t.Errorf("unexpected isTemplate result %v", result)
	}

	result, err = tpls.Evaluate(t.Context(), "Attach", nil)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	m, ok := result.(map[string]any)
	if !ok || m[lgTypeKey] != "attachment" || m["contenttype"] != "text/plain" {
		t.Errorf("unexpected attachment %v", result)
	}

	result, err = tpls.Evaluate(t.Context(), "Inline", map[string]any{"name": "Ann"})
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "Hi Ann" {
		t.Errorf("unexpected expandText result %v", result)
	}
}

func TestEvaluate_FromFile(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "data.txt"), []byte("Hi ${name}"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	input := `# Evaluated
- ${fromFile("data.txt")}

# Raw
- ${fromFile("data.txt", "raw")}
`

	tpls, err := Parse(t.Context(), input, filepath.Join(dir, "main.lg"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	scope := map[string]any{"name": "Ann"}

	result, err := tpls.Evaluate(t.Context(), "Evaluated", scope)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "Hi Ann" {
		t.Errorf("expected 'Hi Ann', got %v", result)
	}

	result, err = tpls.Evaluate(t.Context(), "Raw", scope)
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "Hi ${name}" {
		t.Errorf("expected raw content, got %v", result)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	input := `# Greet(name)
- Hi ${name}

# Dynamic
- ${template("Greet", 1, 2)}

# Missing
- ${template("Nope")}

# Failing
- ${1 / nothing()}
`

	tpls, err := Parse(t.Context(), input, "errors.lg")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if !hasDiagnostic(tpls.Diagnostics, SeverityError, msgFunctionNotExist("nothing")) {
		t.Fatalf("expected unknown function diagnostic, got %v", tpls.Diagnostics)
	}

	_, err = tpls.Evaluate(t.Context(), "Greet", nil)
	if !errors.Is(err, ErrDiagnostics) {
		t.Errorf("expected ErrDiagnostics, got %v", err)
	}

	tpls = mustParse(t, strings.Split(input, "# Failing")[0])

	_, err = tpls.Evaluate(t.Context(), "Dynamic", nil)
	if !errors.Is(err, ErrArgumentMismatch) {
		t.Errorf("expected ErrArgumentMismatch, got %v", err)
	}

	_, err = tpls.Evaluate(t.Context(), "Missing", nil)
	if !errors.Is(err, ErrTemplateNotExist) {
		t.Errorf("expected ErrTemplateNotExist, got %v", err)
	}

	_, err = tpls.Evaluate(t.Context(), "Unknown", nil)
	if !errors.Is(err, ErrTemplateNotExist) {
		t.Errorf("expected ErrTemplateNotExist, got %v", err)
	}
}

func TestEvaluate_StructScope(t *testing.T) {
	type user struct {
		Name string `yaml:"name"`
		Age  int    `yaml:"age"`
	}

	scope := struct {
		User user `yaml:"user"`
	}{User: user{Name: "Ann", Age: 30}}

	result := evaluate(t, "# T\n- ${user.name} is ${user.age}", "T", scope)
	if result != "Ann is 30" {
		t.Errorf("expected 'Ann is 30', got %v", result)
	}
}

func TestEvaluate_CanceledContext(t *testing.T) {
	tpls := mustParse(t, "# T\n- t")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := tpls.Evaluate(ctx, "T", nil)
	if err == nil {
		t.Error("expected error from canceled context")
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	tpls := mustParse(t, "# T(n)\n- ${n}:${Inner()}\n# Inner\n- a\n- b")

	var wg sync.WaitGroup

	for i := range 16 {
		wg.Go(func() {
			result, err := tpls.EvaluateText(t.Context(), "${T(n)}", map[string]any{"n": i})
			if err != nil {
				t.Errorf("evaluate error: %v", err)

				return
			}

			s := stringify(result)
			if !strings.HasSuffix(s, ":a") && !strings.HasSuffix(s, ":b") {
				t.Errorf("unexpected result %q", s)
			}
		})
	}

	wg.Wait()
}

func TestEvaluateText(t *testing.T) {
	tpls := mustParse(t, "# Name\n- Bo")

	result, err := tpls.EvaluateText(t.Context(), "Hello [Name], ${x}", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "Hello Bo, 1" {
		t.Errorf("expected 'Hello Bo, 1', got %v", result)
	}

	result, err = tpls.EvaluateText(t.Context(), "line ${x}\nline 2", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}

	if result != "line 1\nline 2" {
		t.Errorf("unexpected multiline result %q", result)
	}

	_, err = tpls.EvaluateText(t.Context(), "${Nope()}", nil)
	if !errors.Is(err, ErrDiagnostics) {
		t.Errorf("expected ErrDiagnostics, got %v", err)
	}
}
