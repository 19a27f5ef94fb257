package lang

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// LineBreakStyle controls how line breaks in a final string result are
// rendered.
type LineBreakStyle int

const (
	LineBreakDefault  LineBreakStyle = iota // default
	LineBreakMarkdown                       // markdown
)

// String returns the name of the style.
func (s LineBreakStyle) String() string {
	switch s {
	case LineBreakMarkdown:
		return "markdown"
	default:
		return "default"
	}
}

// ParseLineBreakStyle returns the style named s, ignoring case.
func ParseLineBreakStyle(s string) (LineBreakStyle, error) {
	switch strings.ToLower(trimSpace(s)) {
	case "", "default":
		return LineBreakDefault, nil
	case "markdown":
		return LineBreakMarkdown, nil
	default:
		return LineBreakDefault, ErrInvalidOption.Wrapf("unknown line break style '", s, "'")
	}
}

// UnmarshalText decodes a style by name.
func (s *LineBreakStyle) UnmarshalText(text []byte) error {
	v, err := ParseLineBreakStyle(string(text))
	if err != nil {
		return err
	}

	*s = v

	return nil
}

// MarshalText encodes the style by name.
func (s LineBreakStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var markdownBreaks = strings.NewReplacer("\r\n", "\r\n\r\n", "\n", "\n\n")

func (s LineBreakStyle) apply(v any) any {
	str, ok := v.(string)
	if !ok || s != LineBreakMarkdown {
		return v
	}

	return markdownBreaks.Replace(str)
}

// Random picks one of the alternatives of a normal body.
type Random interface {
	// IntN returns a number in [0, n).
	IntN(n int) int
}

type defaultRandom struct{}

func (defaultRandom) IntN(n int) int { return rand.IntN(n) }

// EvalOptions configure evaluation and expansion.
type EvalOptions struct {
	// StrictMode turns null or failing expressions into errors.
	StrictMode bool
	// NullSubstitution replaces a null expression result outside strict
	// mode. It receives the expression text.
	NullSubstitution func(expression string) any
	LineBreakStyle   LineBreakStyle
	Random           Random
}

// EvalOption configures an evaluation.
type EvalOption func(*EvalOptions)

// WithStrictMode enables or disables strict mode.
func WithStrictMode(strict bool) EvalOption {
	return func(o *EvalOptions) {
		o.StrictMode = strict
	}
}

// WithNullSubstitution sets the replacement for null expression results.
func WithNullSubstitution(fn func(expression string) any) EvalOption {
	return func(o *EvalOptions) {
		o.NullSubstitution = fn
	}
}

// WithLineBreakStyle sets the line break style of the final result.
func WithLineBreakStyle(style LineBreakStyle) EvalOption {
	return func(o *EvalOptions) {
		o.LineBreakStyle = style
	}
}

// WithRandom sets the source used to pick alternatives.
func WithRandom(r Random) EvalOption {
	return func(o *EvalOptions) {
		o.Random = r
	}
}

// evalOptions applies opts over the defaults declared by option lines.
func (t *Templates) evalOptions(opts ...EvalOption) EvalOptions {
	o := t.settings.defaults

	for _, opt := range opts {
		opt(&o)
	}

	if o.Random == nil {
		o.Random = defaultRandom{}
	}

	return o
}

// fileSettings are the values of the option lines of one source.
type fileSettings struct {
	namespace string
	exports   []string
	defaults  EvalOptions
}

// Option line keys.
const (
	optStrict         = "@strict"
	optReplaceNull    = "@replacenull"
	optLineBreakStyle = "@linebreakstyle"
	optNamespace      = "@namespace"
	optExports        = "@exports"
)

// parseSettings interprets the option lines of t.
// Unknown keys are ignored; invalid values are reported as warnings.
func parseSettings(t *Templates) fileSettings {
	var s fileSettings

	warn := func(opt string, err error) {
		t.Diagnostics = append(t.Diagnostics, NewDiagnostic(
			Range{}, "invalid option '"+opt+"': "+err.Error(), SeverityWarning, t.ID,
		))
	}

	for _, opt := range t.Options {
		key, value, _ := strings.Cut(opt, "=")
		key, value = strings.ToLower(trimSpace(key)), trimSpace(value)

		switch key {
		case optStrict:
			strict, err := strconv.ParseBool(value)
			if err != nil {
				warn(opt, err)

				continue
			}

			s.defaults.StrictMode = strict

		case optReplaceNull:
			s.defaults.NullSubstitution = func(expression string) any {
				return strings.ReplaceAll(value, "${path}", expression)
			}

		case optLineBreakStyle:
			style, err := ParseLineBreakStyle(value)
			if err != nil {
				warn(opt, err)

				continue
			}

			s.defaults.LineBreakStyle = style

		case optNamespace:
			s.namespace = value

		case optExports:
			for name := range strings.SplitSeq(value, ",") {
				if name = trimSpace(name); name != "" {
					s.exports = append(s.exports, name)
				}
			}
		}
	}

	return s
}
