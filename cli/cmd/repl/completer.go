package repl

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/lgen/lang"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{
	"help", "list", "expand", "analyze", "check", "edit", "clear", "quit",
}

// templateCommands are the control-mode commands taking a template name.
var templateCommands = []string{"expand", "analyze", "x", "a"}

// isWordBoundary reports whether r delimits a completion word: whitespace,
// the member-access dot, expression operators and punctuation, and the
// "${" "}" delimiters of LG expressions.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']', '{', '}', '$',
		'+', '-', '*', '/', '%',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ':', ';',
		'"', '\'', '`':
		return true
	}

	return false
}

// wordBounds returns the word containing cursor and its byte boundaries.
// The word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the member-access chain leading up to the word at
// wordStart. For "x + user.address.ci" with the word "ci" it returns
// "user.address"; top-level words return "".
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimRight(prefix, ".")

	pos := len(prefix)
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(prefix[pos:])
}

// completer lists the names available at a position of the input.
type completer struct {
	templates *lang.Templates
	scope     map[string]any
}

// candidates returns the completions for a word following parent. At the
// top level these are template names, namespaces, builtins, and scope
// variables. After "namespace." they are the exported templates, and after
// a scope path they are the keys of the map it holds.
func (c completer) candidates(parent string) []string {
	if parent == "" {
		return c.topLevel()
	}

	if c.templates != nil {
		if ref, ok := c.templates.NamedReferences()[parent]; ok {
			return exportedNames(ref)
		}
	}

	var v any = c.scope

	for seg := range strings.SplitSeq(parent, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}

		v = m[seg]
	}

	if m, ok := v.(map[string]any); ok {
		return slices.Sorted(maps.Keys(m))
	}

	return nil
}

// commandCandidates returns the completions of a control-mode word
// preceded by before: command names for the first word, and template names
// for the argument of commands that take one.
func (c completer) commandCandidates(before string) []string {
	fields := strings.Fields(before)

	switch {
	case len(fields) == 0:
		return ctrlCommands

	case len(fields) == 1 && slices.Contains(templateCommands, fields[0]):
		if c.templates == nil {
			return nil
		}

		var names []string
		for tpl := range c.templates.All() {
			names = append(names, tpl.Name)
		}

		return uniqueNames(names)

	default:
		return nil
	}
}

func (c completer) topLevel() []string {
	var names []string

	if c.templates != nil {
		for tpl := range c.templates.All() {
			names = append(names, tpl.Name)
		}

		names = append(names, slices.Sorted(maps.Keys(c.templates.NamedReferences()))...)
	}

	names = append(names, builtinNames()...)
	names = append(names, slices.Sorted(maps.Keys(c.scope))...)

	return uniqueNames(names)
}

// exportedNames returns the templates callable through the namespace of
// ref: its exports, or every template when it exports none.
func exportedNames(ref *lang.Templates) []string {
	if exports := ref.Exports(); len(exports) > 0 {
		return exports
	}

	names := make([]string, 0, len(ref.Templates))
	for _, tpl := range ref.Templates {
		names = append(names, tpl.Name)
	}

	return names
}

// uniqueNames drops repeated names, keeping the first occurrence.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]

	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}

		seen[n] = struct{}{}
		out = append(out, n)
	}

	return out
}

// computeMatches calculates the fuzzy matches for the word at the cursor,
// ranked best-first, with the word boundaries. An empty top-level word
// yields no matches so the hint stays visible; an empty word after a dot
// yields every member.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()
	cursor := m.input.Position()

	word, wordStart, wordEnd := wordBounds(input, cursor)

	if m.mode == modeCtrl {
		candidates = m.completer.commandCandidates(input[:wordStart])
		if word == "" {
			return nil, nil, wordStart, wordEnd
		}
	} else {
		parent := parentPath(input, wordStart)
		candidates = m.completer.candidates(parent)

		if word == "" {
			if parent == "" || len(candidates) == 0 {
				return nil, nil, wordStart, wordEnd
			}

			matches = make(fuzzy.Matches, len(candidates))
			for i, c := range candidates {
				matches[i] = fuzzy.Match{Str: c, Index: i}
			}

			return matches, candidates, wordStart, wordEnd
		}
	}

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// renderCandidateBar builds the single-line completion bar, ellipsized to fit
// within width. Matched characters are highlighted, and the selected
// candidate uses the selected style while tab-cycling.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
	isFunc func(string) bool,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == suggIdx, isFunc(match.Str))

		entryWidth := lipgloss.Width(rendered)
		if i > 0 {
			entryWidth += sepWidth
		}

		if used+entryWidth+ellipsisWidth > width && i > 0 {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth
	}

	return b.String()
}

// renderCandidate renders one candidate with its matched characters
// highlighted. Functions are shown with a "()" suffix.
func renderCandidate(match fuzzy.Match, selected, isFunc bool) string {
	baseStyle := suggestionStyle
	highlightStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("4")).
		Bold(true)

	if selected {
		baseStyle = selectedStyle
		highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4")).
			Bold(true)
	}

	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(highlightStyle.Render(string(r)))
		} else {
			b.WriteString(baseStyle.Render(string(r)))
		}
	}

	if isFunc {
		b.WriteString(baseStyle.Render("()"))
	}

	return b.String()
}

// isFunction reports whether name is callable: a template or a builtin.
func (c completer) isFunction(name string) bool {
	if _, ok := lookupTemplate(c.templates, name); ok {
		return true
	}

	_, host := hostSignatures[name]
	_, builtin := exprBuiltins[name]

	return host || builtin
}

// previewLength is the maximum width of a body preview in the list output.
const previewLength = 40

// formatPreview returns the signature suffix and the first body line of tpl.
func formatPreview(tpl *lang.Template) string {
	var sb strings.Builder

	if len(tpl.Parameters) > 0 {
		sb.WriteString("(" + strings.Join(tpl.Parameters, ", ") + ") ")
	}

	line, _, _ := strings.Cut(strings.TrimSpace(tpl.Body), "\n")
	line = strings.TrimSpace(line)

	if utf8.RuneCountInString(line) > previewLength {
		runes := []rune(line)
		line = string(runes[:previewLength-3]) + "..."
	}

	sb.WriteString(line)

	return sb.String()
}
