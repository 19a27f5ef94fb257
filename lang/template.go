package lang

import (
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/ardnew/lgen/log"
)

// Template is a named, optionally parameterized unit of LG source.
type Template struct {
	Name        string       `json:"name"                 yaml:"name"`
	Parameters  []string     `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Body        string       `json:"body"                 yaml:"body"`
	Range       Range        `json:"range"                yaml:"range"`
	Expressions []Expression `json:"-"                    yaml:"-"`

	body *Body
}

// Expression is an expression occurrence found in a template body.
type Expression struct {
	Text  string `json:"text"  yaml:"text"`
	Range Range  `json:"range" yaml:"range"`
}

// Source returns the id of the source defining t.
func (t *Template) Source() string { return t.Range.Source }

// Signature returns the template name line without the leading '#'.
func (t *Template) Signature() string {
	return templateSignature(t.Name, t.Parameters)
}

// ParsedBody returns the parsed body, or nil if the body is blank.
func (t *Template) ParsedBody() *Body { return t.body }

func templateSignature(name string, params []string) string {
	if len(params) == 0 {
		return name
	}

	return name + "(" + strings.Join(params, ", ") + ")"
}

// Import is an import declaration: [description](id).
type Import struct {
	Description string `json:"description" yaml:"description"`
	ID          string `json:"id"          yaml:"id"`
	Range       Range  `json:"range"       yaml:"range"`
}

// Templates is the parsed content of one LG source plus its resolved imports.
type Templates struct {
	Templates   []*Template   `json:"templates"             yaml:"templates"`
	Imports     []*Import     `json:"imports,omitempty"     yaml:"imports,omitempty"`
	References  []*Templates  `json:"-"                     yaml:"-"`
	Diagnostics []*Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Options     []string      `json:"options,omitempty"     yaml:"options,omitempty"`
	Content     string        `json:"-"                     yaml:"-"`
	ID          string        `json:"id"                    yaml:"id"`

	opts     parseOptions
	settings fileSettings
	programs *programCache
	lookupMu sync.Mutex
	lookup   map[string]*Template
}

// Template returns the template with the given name from the closure.
func (t *Templates) Template(name string) (*Template, bool) {
	for tpl := range t.All() {
		if tpl.Name == name {
			return tpl, true
		}
	}

	return nil, false
}

// All returns an iterator over the templates of t and all its references.
func (t *Templates) All() iter.Seq[*Template] {
	return func(yield func(*Template) bool) {
		for _, tpl := range t.Templates {
			if !yield(tpl) {
				return
			}
		}

		for _, ref := range t.References {
			for _, tpl := range ref.Templates {
				if !yield(tpl) {
					return
				}
			}
		}
	}
}

// AllTemplates returns the templates of t and all its references.
func (t *Templates) AllTemplates() []*Template {
	return slices.Collect(t.All())
}

// AllDiagnostics returns the diagnostics of t and all its references.
func (t *Templates) AllDiagnostics() []*Diagnostic {
	all := slices.Clone(t.Diagnostics)
	for _, ref := range t.References {
		all = append(all, ref.Diagnostics...)
	}

	return all
}

// NamedReferences returns the references declaring a namespace, keyed by it.
func (t *Templates) NamedReferences() map[string]*Templates {
	named := make(map[string]*Templates)

	for _, ref := range t.References {
		if ns := ref.settings.namespace; ns != "" {
			named[ns] = ref
		}
	}

	return named
}

// Namespace returns the namespace declared by an option line, if any.
func (t *Templates) Namespace() string { return t.settings.namespace }

// Exports returns the template names exported under [Templates.Namespace].
func (t *Templates) Exports() []string { return slices.Clone(t.settings.exports) }

// logger returns the configured logger.
func (t *Templates) logger() log.Logger { return t.opts.logger }

// templateLookup returns the name index used by evaluation.
// A name defined more than once across the closure is an error.
func (t *Templates) templateLookup() (map[string]*Template, error) {
	t.lookupMu.Lock()
	defer t.lookupMu.Unlock()

	if t.lookup != nil {
		return t.lookup, nil
	}

	lookup := make(map[string]*Template)

	for tpl := range t.All() {
		if prev, ok := lookup[tpl.Name]; ok {
			return nil, ErrDuplicateTemplate.Wrapf(
				"'", tpl.Name, "' is defined in ", prev.Source(),
				" and ", tpl.Source(),
			)
		}

		lookup[tpl.Name] = tpl
	}

	addExports(t, lookup)

	t.lookup = lookup

	return lookup, nil
}

// checkErrors fails if any Error diagnostic exists in the closure.
func (t *Templates) checkErrors() error {
	return diagnosticsError(t.AllDiagnostics())
}
