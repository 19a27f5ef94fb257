package lang

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/segmentio/fasthash/fnv1a"
)

// Scope is the read-only variable lookup seen by expressions.
//
// A scope has a local layer holding the arguments of the template being
// evaluated, chained in front of the global layer supplied by the caller.
type Scope struct {
	local  map[string]any
	global map[string]any
}

// NewScope creates a scope whose global layer is vars.
func NewScope(vars map[string]any) *Scope {
	if vars == nil {
		vars = make(map[string]any)
	}

	return &Scope{global: vars}
}

// with returns a scope binding params to args over the global layer of s.
func (s *Scope) with(params []string, args []any) *Scope {
	local := make(map[string]any, len(params))
	for i, p := range params {
		if i < len(args) {
			local[p] = args[i]
		}
	}

	return &Scope{local: local, global: s.global}
}

// Get returns the value at a dotted path such as "user.name" or "tasks.0".
// The local layer is consulted first.
func (s *Scope) Get(path string) (any, bool) {
	if v, ok := lookupPath(s.local, path); ok && v != nil {
		return v, true
	}

	return lookupPath(s.global, path)
}

// Set always fails: scopes cannot be written from templates.
func (s *Scope) Set(path string, _ any) error {
	return ErrReadOnlyScope.Wrapf("cannot set '", path, "'")
}

// vars flattens the scope into a new map, local values first.
func (s *Scope) vars() map[string]any {
	env := make(map[string]any, len(s.global)+len(s.local)+len(hostFunctions))
	maps.Copy(env, s.global)

	for k, v := range s.local {
		if v != nil {
			env[k] = v
		}
	}

	return env
}

// fingerprint identifies the contents of the local layer and the identity
// of the global layer. Local values are formatted with their Go types, so
// arguments 1 and "1" differ.
func (s *Scope) fingerprint() uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, fmt.Sprintf("%p", s.global))

	if len(s.local) > 0 {
		h = fnv1a.AddString64(h, fmt.Sprintf("%#v", s.local))
	}

	return h
}

// identity is the key for evaluating the template name in scope s.
func identity(name string, s *Scope) uint64 {
	return fnv1a.AddUint64(fnv1a.HashString64(name), s.fingerprint())
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}

	head, rest, more := strings.Cut(path, ".")

	v, ok := m[head]
	if !ok {
		return nil, false
	}

	for more {
		head, rest, more = strings.Cut(rest, ".")

		if v, ok = member(v, head); !ok {
			return nil, false
		}
	}

	return v, true
}

// member returns a field of a map or struct, or an element of a slice.
func member(v any, key string) (any, bool) {
	switch c := v.(type) {
	case map[string]any:
		e, ok := c[key]

		return e, ok

	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}

		return c[i], true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}

		e := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !e.IsValid() {
			return nil, false
		}

		return e.Interface(), true

	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}

		return rv.Index(i).Interface(), true

	case reflect.Struct:
		f := rv.FieldByName(key)
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}

		return f.Interface(), true

	default:
		return nil, false
	}
}

// newScope normalizes a caller-supplied scope.
// Values other than maps are converted through YAML, so struct fields are
// addressed by their YAML names.
func newScope(scope any) (*Scope, error) {
	switch s := scope.(type) {
	case nil:
		return NewScope(nil), nil
	case *Scope:
		return s, nil
	case Scope:
		return &s, nil
	case map[string]any:
		return NewScope(s), nil
	}

	data, err := yaml.Marshal(scope)
	if err != nil {
		return nil, ErrInvalidArgument.Wrap(err)
	}

	var vars map[string]any

	err = yaml.Unmarshal(data, &vars)
	if err != nil {
		return nil, ErrInvalidArgument.Wrap(err)
	}

	return NewScope(vars), nil
}
