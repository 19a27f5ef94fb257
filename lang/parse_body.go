package lang

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	keywordPattern = regexp.MustCompile(
		`^(?i)(elseif|else|if|switch|case|default)([ \t]*):`,
	)
	propertyPattern  = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s*=`)
	structurePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
)

var ruleKinds = map[string]RuleKind{
	"if":      RuleIf,
	"elseif":  RuleElseIf,
	"else":    RuleElse,
	"switch":  RuleSwitch,
	"case":    RuleCase,
	"default": RuleDefault,
}

// parseBody parses the lines of one template body.
func parseBody(lines []bodyLine, source string) *Body {
	var b *Body

	switch classifyBody(lines) {
	case BodyConditional:
		b = parseRules(lines, source, BodyConditional)
	case BodySwitch:
		b = parseRules(lines, source, BodySwitch)
	case BodyStructured:
		b = parseStructure(lines, source)
	default:
		b = parseNormal(lines, source)
	}

	if len(lines) > 0 {
		last := lines[len(lines)-1]
		b.Range = Range{
			Start:  Position{Line: lines[0].line},
			End:    Position{Line: last.line, Character: utf8.RuneCountInString(last.text)},
			Source: source,
		}
	}

	return b
}

// classifyBody picks the body grammar from the first meaningful line.
func classifyBody(lines []bodyLine) BodyKind {
	for _, l := range lines {
		t := strings.TrimLeftFunc(l.text, unicode.IsSpace)
		if isComment(t) {
			continue
		}

		if kind, _, _, ok := matchKeyword(t); ok {
			if kind.conditional() {
				return BodyConditional
			}

			return BodySwitch
		}

		if strings.HasPrefix(t, "[") {
			return BodyStructured
		}

		return BodyNormal
	}

	return BodyNormal
}

func isComment(trimmed string) bool {
	return trimmed == "" || strings.HasPrefix(trimmed, ">")
}

// matchKeyword matches a branch keyword, optionally preceded by '-'.
// It returns the byte offset just past the colon.
func matchKeyword(trimmed string) (RuleKind, string, int, bool) {
	off := 0
	if strings.HasPrefix(trimmed, "-") {
		rest := strings.TrimLeftFunc(trimmed[1:], unicode.IsSpace)
		off = len(trimmed) - len(rest)
	}

	m := keywordPattern.FindStringSubmatchIndex(trimmed[off:])
	if m == nil {
		return 0, "", 0, false
	}

	kind := ruleKinds[strings.ToLower(trimmed[off+m[2]:off+m[3]])]

	return kind, trimmed[off+m[4] : off+m[5]], off + m[1], true
}

// leading returns the byte length of the leading whitespace of s.
func leading(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}

// column converts a byte offset within s to a character column.
func column(s string, offset int) int {
	return utf8.RuneCountInString(s[:offset])
}

func lineRangeOf(l bodyLine, source string) Range {
	return Range{
		Start:  Position{Line: l.line, Character: column(l.text, leading(l.text))},
		End:    Position{Line: l.line, Character: utf8.RuneCountInString(l.text)},
		Source: source,
	}
}

// parseNormal parses '-' prefixed alternatives.
func parseNormal(lines []bodyLine, source string) *Body {
	b := &Body{Kind: BodyNormal}

	for i := 0; i < len(lines); i++ {
		l := lines[i]
		lead := leading(l.text)
		t := l.text[lead:]

		if isComment(t) {
			continue
		}

		if !strings.HasPrefix(t, "-") {
			msg := msgInvalidTemplateBody
			if strings.HasPrefix(t, fence) {
				msg = msgFenceOutsideBlock
			}

			b.Issues = append(b.Issues, Issue{Message: msg, Range: lineRangeOf(l, source)})

			continue
		}

		content := t[1:]
		offset := lead + 1 + leading(content)
		content = l.text[offset:]

		end := l
		if strings.Count(content, fence)%2 == 1 {
			var buf strings.Builder

			buf.WriteString(content)

			for i+1 < len(lines) {
				i++
				end = lines[i]

				buf.WriteByte('\n')
				buf.WriteString(end.text)

				if strings.Count(end.text, fence)%2 == 1 {
					break
				}
			}

			content = buf.String()
		}

		content = strings.TrimRightFunc(content, unicode.IsSpace)
		start := Position{Line: l.line, Character: column(l.text, offset)}

		b.Alternatives = append(b.Alternatives, &Line{
			Segments: scanSegments(content, start, source, scanText),
			Raw:      content,
			Range: Range{
				Start:  Position{Line: l.line, Character: column(l.text, lead)},
				End:    Position{Line: end.line, Character: utf8.RuneCountInString(end.text)},
				Source: source,
			},
		})
	}

	return b
}

// parseRules parses a conditional or switch body.
func parseRules(lines []bodyLine, source string, kind BodyKind) *Body {
	b := &Body{Kind: kind}

	var (
		rules  []*Rule
		groups [][]bodyLine
	)

	for _, l := range lines {
		lead := leading(l.text)
		t := l.text[lead:]

		if isComment(t) {
			continue
		}

		rk, spacing, off, ok := matchKeyword(t)
		if !ok {
			if len(rules) == 0 {
				b.Issues = append(b.Issues, Issue{
					Message: msgInvalidTemplateBody,
					Range:   lineRangeOf(l, source),
				})

				continue
			}

			groups[len(groups)-1] = append(groups[len(groups)-1], l)

			continue
		}

		rule := &Rule{
			Kind:    rk,
			Spacing: spacing,
			Range:   lineRangeOf(l, source),
		}

		at := Position{Line: l.line, Character: column(l.text, lead+off)}

		var extra strings.Builder

		for _, seg := range scanSegments(l.text[lead+off:], at, source, scanRule) {
			switch seg.Kind {
			case SegmentExpression:
				rule.Expressions = append(rule.Expressions, seg)
			default:
				extra.WriteString(seg.Text)
			}
		}

		rule.Extra = trimSpace(extra.String())
		rules = append(rules, rule)
		groups = append(groups, nil)
	}

	for i, rule := range rules {
		if len(groups[i]) == 0 {
			continue
		}

		body := parseNormal(groups[i], source)
		b.Issues = append(b.Issues, body.Issues...)
		body.Issues = nil

		if len(body.Alternatives) > 0 {
			first, last := groups[i][0], groups[i][len(groups[i])-1]
			body.Range = Range{
				Start:  Position{Line: first.line},
				End:    Position{Line: last.line, Character: utf8.RuneCountInString(last.text)},
				Source: source,
			}
			rule.Body = body
		}
	}

	b.Rules = rules

	return b
}

// parseStructure parses a '[Type ... ]' body.
func parseStructure(lines []bodyLine, source string) *Body {
	b := &Body{Kind: BodyStructured}
	st := &Structure{}
	b.Structure = st

	opened := false

	for _, l := range lines {
		lead := leading(l.text)
		t := strings.TrimRightFunc(l.text[lead:], unicode.IsSpace)

		if isComment(t) {
			continue
		}

		lr := lineRangeOf(l, source)

		switch {
		case !opened:
			opened = true
			st.Range = lr

			head := t[1:]
			if i := strings.IndexByte(head, ']'); i >= 0 {
				st.Closed = true
				st.Name = trimSpace(head[:i])

				if trimSpace(head[i+1:]) != "" {
					b.Issues = append(b.Issues, Issue{Message: msgInvalidStrucBody, Range: lr})
				}

				continue
			}

			st.Name = trimSpace(head)

		case st.Closed:
			b.Issues = append(b.Issues, Issue{Message: msgContentAfterStrucEnd, Range: lr})

		case strings.HasPrefix(t, "]"):
			st.Closed = true
			st.Range.End = lr.End

			if trimSpace(t[1:]) != "" {
				b.Issues = append(b.Issues, Issue{Message: msgInvalidStrucBody, Range: lr})
			}

		case strings.HasPrefix(t, "${") && matchBrace(t, 2) == len(t)-1:
			at := Position{Line: l.line, Character: column(l.text, lead)}
			segs := scanSegments(t, at, source, scanValue)
			st.Properties = append(st.Properties, &Property{
				Expr:  &segs[0],
				Range: lr,
			})

		default:
			m := propertyPattern.FindStringSubmatchIndex(t)
			if m == nil {
				b.Issues = append(b.Issues, Issue{Message: msgInvalidStrucBody, Range: lr})

				continue
			}

			prop := &Property{Key: t[m[2]:m[3]], Range: lr}
			valueAt := lead + m[1]
			offset := valueAt

			for _, item := range splitTopLevel(l.text[valueAt:lead+len(t)], '|', true) {
				itemLead := leading(item)
				text := trimSpace(item)
				at := Position{Line: l.line, Character: column(l.text, offset+itemLead)}
				prop.Values = append(prop.Values, scanSegments(text, at, source, scanValue))
				offset += len(item) + 1
			}

			st.Properties = append(st.Properties, prop)
		}
	}

	return b
}
