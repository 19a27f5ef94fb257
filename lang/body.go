package lang

// BodyKind identifies which grammar a template body follows.
type BodyKind int

const (
	BodyNormal      BodyKind = iota // normal
	BodyConditional                 // conditional
	BodySwitch                      // switch
	BodyStructured                  // structured
)

// String returns the name of the body kind.
func (k BodyKind) String() string {
	switch k {
	case BodyNormal:
		return "normal"
	case BodyConditional:
		return "conditional"
	case BodySwitch:
		return "switch"
	case BodyStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Body is the parsed form of a template body.
// Exactly one of Alternatives, Rules, or Structure is populated, per Kind.
type Body struct {
	Kind         BodyKind
	Alternatives []*Line
	Rules        []*Rule
	Structure    *Structure
	Issues       []Issue
	Range        Range
}

// Issue is a syntax problem found while parsing a body.
// The static checker reports issues as diagnostics.
type Issue struct {
	Message string
	Range   Range
}

// Line is one alternative of a normal body.
type Line struct {
	Segments []Segment
	Raw      string
	Range    Range
}

// SegmentKind identifies a piece of body text.
type SegmentKind int

const (
	SegmentText        SegmentKind = iota // text
	SegmentEscape                         // escape
	SegmentExpression                     // expression
	SegmentTemplateRef                    // template reference
	SegmentMultiline                      // multiline
)

// String returns the name of the segment kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentEscape:
		return "escape"
	case SegmentExpression:
		return "expression"
	case SegmentTemplateRef:
		return "template reference"
	case SegmentMultiline:
		return "multiline"
	default:
		return "unknown"
	}
}

// Segment is a piece of body text.
//
// For expressions, Text holds the source between the braces.
// For template references, Text holds the referenced name and Args the raw
// argument list (HasArgs reports whether parentheses were written).
// For multiline blocks, Parts holds the text and expression pieces between
// the fences.
type Segment struct {
	Kind    SegmentKind
	Text    string
	Args    string
	HasArgs bool
	Closed  bool
	Parts   []Segment
	Range   Range
}

// RuleKind identifies a conditional or switch branch keyword.
type RuleKind int

const (
	RuleIf      RuleKind = iota // IF
	RuleElseIf                  // ELSEIF
	RuleElse                    // ELSE
	RuleSwitch                  // SWITCH
	RuleCase                    // CASE
	RuleDefault                 // DEFAULT
)

// String returns the keyword of the rule kind.
func (k RuleKind) String() string {
	switch k {
	case RuleIf:
		return "IF"
	case RuleElseIf:
		return "ELSEIF"
	case RuleElse:
		return "ELSE"
	case RuleSwitch:
		return "SWITCH"
	case RuleCase:
		return "CASE"
	case RuleDefault:
		return "DEFAULT"
	default:
		return "UNKNOWN"
	}
}

func (k RuleKind) conditional() bool { return k <= RuleElse }

// Rule is one branch of a conditional or switch body.
type Rule struct {
	Kind        RuleKind
	Spacing     string // whitespace between keyword and colon
	Expressions []Segment
	Extra       string // non-expression text following the colon
	Body        *Body  // normal body of the branch; nil if absent
	Range       Range
}

// Structure is the content of a structured body.
type Structure struct {
	Name       string
	Closed     bool
	Properties []*Property
	Range      Range
}

// Property is a content line of a structured body: either a key with
// pipe-separated values or a bare expression merged into the result.
type Property struct {
	Key    string
	Values [][]Segment
	Expr   *Segment
	Range  Range
}

// segments returns every expression-bearing segment of b in source order.
func (b *Body) segments() []Segment {
	if b == nil {
		return nil
	}

	var out []Segment

	add := func(segs []Segment) {
		for _, s := range segs {
			switch s.Kind {
			case SegmentExpression, SegmentTemplateRef:
				out = append(out, s)
			case SegmentMultiline:
				for _, p := range s.Parts {
					if p.Kind == SegmentExpression {
						out = append(out, p)
					}
				}
			}
		}
	}

	switch b.Kind {
	case BodyNormal:
		for _, alt := range b.Alternatives {
			add(alt.Segments)
		}

	case BodyConditional, BodySwitch:
		for _, rule := range b.Rules {
			add(rule.Expressions)
			out = append(out, rule.Body.segments()...)
		}

	case BodyStructured:
		if b.Structure == nil {
			break
		}

		for _, prop := range b.Structure.Properties {
			if prop.Expr != nil {
				out = append(out, *prop.Expr)
			}

			for _, v := range prop.Values {
				add(v)
			}
		}
	}

	return out
}

// expressionText returns the expression source a segment evaluates.
func (s Segment) expressionText() string {
	if s.Kind != SegmentTemplateRef {
		return s.Text
	}

	var b []byte

	b = append(b, `template("`...)
	b = append(b, s.Text...)
	b = append(b, '"')

	if args := trimSpace(s.Args); args != "" {
		b = append(b, ", "...)
		b = append(b, args...)
	}

	return string(append(b, ')'))
}

// display returns the segment as written in source.
func (s Segment) display() string {
	switch s.Kind {
	case SegmentExpression:
		return "${" + s.Text + "}"
	case SegmentTemplateRef:
		if s.HasArgs {
			return "[" + s.Text + "(" + s.Args + ")]"
		}

		return "[" + s.Text + "]"
	default:
		return s.Text
	}
}
