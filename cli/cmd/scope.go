package cmd

import (
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// ScopeFlags select the variables an evaluation runs against.
type ScopeFlags struct {
	Scope string            `help:"YAML or JSON file of scope variables, or '-' for stdin." placeholder:"FILE" short:"S"`
	Var   map[string]string `help:"Scope variable PATH=VALUE; VALUE is decoded as YAML."   placeholder:"PATH=VALUE" short:"v"`
}

// build returns the scope variables: the scope file first, then each --var
// in key order. Dotted paths create nested maps.
func (f ScopeFlags) build(stdin io.Reader) (map[string]any, error) {
	vars := map[string]any{}

	if f.Scope != "" {
		var (
			data []byte
			err  error
		)

		if f.Scope == stdinSource {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.Scope)
		}

		if err != nil {
			return nil, ErrReadScope.Wrap(err).With(slog.String("file", f.Scope))
		}

		err = yaml.Unmarshal(data, &vars)
		if err != nil {
			return nil, ErrReadScope.Wrap(err).With(slog.String("file", f.Scope))
		}

		if vars == nil {
			vars = map[string]any{}
		}
	}

	for _, key := range slices.Sorted(maps.Keys(f.Var)) {
		setPath(vars, key, scalar(f.Var[key]))
	}

	return vars, nil
}

// scalar decodes s as a YAML value, so numbers and booleans keep their
// type. Text that is not valid YAML is kept as a string.
func scalar(s string) any {
	var v any

	err := yaml.Unmarshal([]byte(s), &v)
	if err != nil || (v == nil && !isNullLiteral(s)) {
		return s
	}

	return v
}

// isNullLiteral reports whether s decodes to a YAML null on purpose.
func isNullLiteral(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "Null", "NULL", "~":
		return true
	default:
		return false
	}
}

// setPath stores v at the dotted path in vars, replacing any non-map value
// met along the way.
func setPath(vars map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	m := vars

	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}

		m = next
	}

	m[parts[len(parts)-1]] = v
}
