package lang

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// scanMode selects which constructs are recognized in body text.
type scanMode int

const (
	scanText      scanMode = iota // alternative text of a normal body
	scanRule                      // remainder of a keyword line
	scanValue                     // one value of a structured property
	scanMultiline                 // interior of a fenced block
)

const fence = "```"

// scanner splits body text into segments while tracking source positions.
type scanner struct {
	src    string
	pos    int
	line   int // line of src[pos], 1-based
	col    int // column of src[pos], 0-based
	source string
	mode   scanMode
	segs   []Segment
	text   strings.Builder
	start  Position
}

// scanSegments splits src, which begins at position at, into segments.
func scanSegments(src string, at Position, source string, mode scanMode) []Segment {
	s := &scanner{
		src:    src,
		line:   at.Line,
		col:    at.Character,
		source: source,
		mode:   mode,
	}

	s.run()

	return s.segs
}

func (s *scanner) position() Position {
	return Position{Line: s.line, Character: s.col}
}

func (s *scanner) rangeFrom(start Position) Range {
	return Range{Start: start, End: s.position(), Source: s.source}
}

// advance moves forward n bytes, updating line and column.
func (s *scanner) advance(n int) {
	end := min(s.pos+n, len(s.src))
	for s.pos < end {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if r == '\n' {
			s.line++
			s.col = 0
		} else {
			s.col++
		}

		s.pos += size
	}
}

func (s *scanner) emitText(t string) {
	if s.text.Len() == 0 {
		s.start = s.position()
	}

	s.text.WriteString(t)
}

func (s *scanner) flush(end Position) {
	if s.text.Len() == 0 {
		return
	}

	s.segs = append(s.segs, Segment{
		Kind:   SegmentText,
		Text:   s.text.String(),
		Closed: true,
		Range:  Range{Start: s.start, End: end, Source: s.source},
	})
	s.text.Reset()
}

func (s *scanner) emit(seg Segment) {
	s.flush(seg.Range.Start)
	s.segs = append(s.segs, seg)
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		rest := s.src[s.pos:]

		switch {
		case s.mode != scanMultiline && rest[0] == '\\' && len(rest) > 1:
			s.scanEscape()

		case strings.HasPrefix(rest, "${"),
			s.mode == scanMultiline && strings.HasPrefix(rest, "@{"):
			s.scanExpression()

		case s.mode == scanText && strings.HasPrefix(rest, fence):
			s.scanMultiline()

		case s.mode == scanText && rest[0] == '[' && s.scanTemplateRef():

		default:
			_, size := utf8.DecodeRuneInString(rest)
			s.emitText(rest[:size])
			s.advance(size)
		}
	}

	s.flush(s.position())
}

func (s *scanner) scanEscape() {
	start := s.position()
	_, size := utf8.DecodeRuneInString(s.src[s.pos+1:])
	raw := s.src[s.pos : s.pos+1+size]
	s.advance(len(raw))
	s.emit(Segment{
		Kind:   SegmentEscape,
		Text:   raw,
		Closed: true,
		Range:  s.rangeFrom(start),
	})
}

func (s *scanner) scanExpression() {
	start := s.position()
	open := s.pos + 2
	end := matchBrace(s.src, open)

	seg := Segment{Kind: SegmentExpression, Closed: end >= 0}
	if end < 0 {
		seg.Text = s.src[open:]
		s.advance(len(s.src) - s.pos)
	} else {
		seg.Text = s.src[open:end]
		s.advance(end + 1 - s.pos)
	}

	seg.Range = s.rangeFrom(start)
	s.emit(seg)
}

func (s *scanner) scanMultiline() {
	start := s.position()
	s.advance(len(fence))

	inner := s.pos
	at := s.position()
	closing := strings.Index(s.src[inner:], fence)

	seg := Segment{Kind: SegmentMultiline, Closed: closing >= 0}
	if closing < 0 {
		seg.Text = s.src[inner:]
		s.advance(len(s.src) - s.pos)
	} else {
		seg.Text = s.src[inner : inner+closing]
		s.advance(closing + len(fence))
	}

	seg.Parts = scanSegments(seg.Text, at, s.source, scanMultiline)
	seg.Range = s.rangeFrom(start)
	s.emit(seg)
}

var templateRefPattern = regexp.MustCompile(
	`^\[\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(?:\((.*)\))?\s*\]`,
)

// scanTemplateRef recognizes [name] and [name(args)].
// A bracket followed by '(' is a markdown link, not a reference.
func (s *scanner) scanTemplateRef() bool {
	rest := s.src[s.pos:]

	end := strings.IndexAny(rest, "]\n")
	if end < 0 || rest[end] != ']' {
		return false
	}

	m := templateRefPattern.FindStringSubmatchIndex(rest[:end+1])
	if m == nil || m[1] != end+1 {
		return false
	}

	if end+1 < len(rest) && rest[end+1] == '(' {
		return false
	}

	start := s.position()
	seg := Segment{
		Kind:    SegmentTemplateRef,
		Text:    rest[m[2]:m[3]],
		HasArgs: m[4] >= 0,
		Closed:  true,
	}

	if seg.HasArgs {
		seg.Args = rest[m[4]:m[5]]
	}

	s.advance(end + 1)
	seg.Range = s.rangeFrom(start)
	s.emit(seg)

	return true
}

// matchBrace returns the index of the '}' closing an expression whose
// content starts at from, or -1. Quoted strings are skipped.
func matchBrace(src string, from int) int {
	depth := 1

	for i := from; i < len(src); i++ {
		switch c := src[i]; c {
		case '\'', '"', '`':
			j := skipQuoted(src, i)
			if j < 0 {
				return -1
			}

			i = j

		case '{':
			depth++

		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// skipQuoted returns the index of the quote closing the literal at i, or -1.
func skipQuoted(src string, i int) int {
	quote := src[i]

	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j
		}
	}

	return -1
}

// splitTopLevel splits s on sep outside quotes, brackets, and expressions.
// A backslash escapes the next byte when escapes is set.
func splitTopLevel(s string, sep byte, escapes bool) []string {
	var (
		parts []string
		depth int
		last  int
	)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case escapes && c == '\\':
			i++

		case c == '\'' || c == '"' || c == '`':
			if depth == 0 && escapes {
				continue // quotes are literal text outside expressions
			}

			if j := skipQuoted(s, i); j >= 0 {
				i = j
			}

		case c == '{' || c == '(' || c == '[':
			depth++

		case c == '}' || c == ')' || c == ']':
			if depth > 0 {
				depth--
			}

		case c == sep && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}

	return append(parts, s[last:])
}

// countArgs returns the number of comma-separated arguments in args.
func countArgs(args string) int {
	if trimSpace(args) == "" {
		return 0
	}

	return len(splitTopLevel(args, ',', false))
}

// unescape decodes a two-character escape sequence.
func unescape(raw string) string {
	if len(raw) < 2 {
		return raw
	}

	switch raw[1:] {
	case "r":
		return "\r"
	case "n":
		return "\n"
	case "t":
		return "\t"
	case `\`, "[", "]", "{", "}", "$", "@", "-", "|", `"`, "'", "`":
		return raw[1:]
	default:
		return raw
	}
}

func trimSpace(s string) string { return strings.TrimSpace(s) }

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
