package lang

import (
	"strconv"
	"strings"
)

// Position is a location in source text.
// Lines are 1-based and characters are 0-based.
type Position struct {
	Line      int `json:"line"      yaml:"line"`
	Character int `json:"character" yaml:"character"`
}

// String returns "line:character".
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Character)
}

// Range is a span of source text.
type Range struct {
	Start  Position `json:"start"            yaml:"start"`
	End    Position `json:"end"              yaml:"end"`
	Source string   `json:"source,omitempty" yaml:"source,omitempty"`
}

// NewRange returns the range between two positions.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// String returns "line L:C - line L:C".
func (r Range) String() string {
	return "line " + r.Start.String() + " - line " + r.End.String()
}

// Contains reports whether line lies within the range.
func (r Range) Contains(line int) bool {
	return line >= r.Start.Line && line <= r.End.Line
}

// Severity is the importance of a [Diagnostic].
type Severity int

const (
	SeverityError       Severity = iota // Error
	SeverityWarning                     // Warning
	SeverityInformation                 // Information
	SeverityHint                        // Hint
)

// String returns the name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInformation:
		return "Information"
	case SeverityHint:
		return "Hint"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is a message tied to a source range.
type Diagnostic struct {
	Range    Range    `json:"range"    yaml:"range"`
	Message  string   `json:"message"  yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
	Source   string   `json:"source"   yaml:"source"`
}

// NewDiagnostic creates a diagnostic for source.
func NewDiagnostic(
	r Range,
	message string,
	severity Severity,
	source string,
) *Diagnostic {
	r.Source = source

	return &Diagnostic{
		Range:    r,
		Message:  message,
		Severity: severity,
		Source:   source,
	}
}

// String formats the diagnostic as "[Severity] source line L:C - line L:C: msg".
func (d *Diagnostic) String() string {
	var buf strings.Builder

	buf.WriteByte('[')
	buf.WriteString(d.Severity.String())
	buf.WriteString("] ")

	if d.Source != "" {
		buf.WriteString(d.Source)
		buf.WriteByte(' ')
	}

	buf.WriteString(d.Range.String())
	buf.WriteString(": ")
	buf.WriteString(d.Message)

	return buf.String()
}

// Errors returns the Error-severity diagnostics in ds.
func Errors(ds []*Diagnostic) []*Diagnostic {
	var out []*Diagnostic

	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}

	return out
}

// diagnosticsError aggregates Error diagnostics into a single failure.
func diagnosticsError(ds []*Diagnostic) error {
	errs := Errors(ds)
	if len(errs) == 0 {
		return nil
	}

	msgs := make([]string, len(errs))
	for i, d := range errs {
		msgs[i] = d.String()
	}

	return ErrDiagnostics.Wrapf(strings.Join(msgs, "\n"))
}
