package repl

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/lgen/lang"
)

// builtinSignature is the parameter list of a function that is not an LG
// template.
type builtinSignature struct {
	params []string
}

// hostSignatures are the functions every LG expression can call.
var hostSignatures = map[string]builtinSignature{
	"template":           {[]string{"name", "...args"}},
	"fromFile":           {[]string{"path"}},
	"isTemplate":         {[]string{"name"}},
	"ActivityAttachment": {[]string{"content", "type"}},
	"expandText":         {[]string{"text"}},
}

// exprBuiltins are the expression language builtins offered for completion.
var exprBuiltins = map[string]builtinSignature{
	"len":           {[]string{"v"}},
	"all":           {[]string{"array", "predicate"}},
	"any":           {[]string{"array", "predicate"}},
	"one":           {[]string{"array", "predicate"}},
	"none":          {[]string{"array", "predicate"}},
	"map":           {[]string{"array", "mapper"}},
	"filter":        {[]string{"array", "predicate"}},
	"find":          {[]string{"array", "predicate"}},
	"findIndex":     {[]string{"array", "predicate"}},
	"findLast":      {[]string{"array", "predicate"}},
	"findLastIndex": {[]string{"array", "predicate"}},
	"groupBy":       {[]string{"array", "mapper"}},
	"sortBy":        {[]string{"array", "mapper"}},
	"count":         {[]string{"array", "predicate"}},
	"sum":           {[]string{"array"}},
	"mean":          {[]string{"array"}},
	"median":        {[]string{"array"}},
	"min":           {[]string{"array"}},
	"max":           {[]string{"array"}},
	"join":          {[]string{"array", "separator"}},
	"split":         {[]string{"string", "separator"}},
	"replace":       {[]string{"string", "old", "new"}},
	"trim":          {[]string{"string"}},
	"trimPrefix":    {[]string{"string", "prefix"}},
	"trimSuffix":    {[]string{"string", "suffix"}},
	"upper":         {[]string{"string"}},
	"lower":         {[]string{"string"}},
	"hasPrefix":     {[]string{"string", "prefix"}},
	"hasSuffix":     {[]string{"string", "suffix"}},
	"int":           {[]string{"v"}},
	"float":         {[]string{"v"}},
	"string":        {[]string{"v"}},
	"type":          {[]string{"v"}},
	"keys":          {[]string{"map"}},
	"values":        {[]string{"map"}},
	"now":           {nil},
	"date":          {[]string{"string", "...layout"}},
}

// builtinNames returns the host function and expression builtin names in
// sorted order.
func builtinNames() []string {
	names := slices.Collect(maps.Keys(exprBuiltins))
	names = append(names, lang.HostFunctions()...)
	slices.Sort(names)

	return slices.Compact(names)
}

// Styles of the signature hint.
var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
	signatureSeparatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// functionCall is a call whose argument list contains the cursor.
type functionCall struct {
	name     string // possibly qualified name, e.g. "lib.Greet"
	argIndex int    // 0-based index of the argument at the cursor
	inCall   bool
}

// isNameRune reports whether r can appear in a possibly qualified function
// name.
func isNameRune(r rune) bool {
	return r == '.' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// detectFunctionCall finds the innermost unclosed call before cursor and the
// index of the argument being typed.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	// Find the unmatched '(' nearest the cursor.
	open, depth := -1, 0

	for i := cursor; i > 0 && open < 0; {
		r, size := utf8.DecodeLastRuneInString(input[:i])
		i -= size

		switch r {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isNameRune(r) {
			break
		}

		start -= size
	}

	name := strings.TrimSpace(input[start:open])
	if name == "" {
		return functionCall{}
	}

	// Count the commas outside nested parentheses.
	argIndex := 0
	depth = 0

	for _, r := range input[open+1 : cursor] {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				argIndex++
			}
		}
	}

	return functionCall{name: name, argIndex: argIndex, inCall: true}
}

// getSignature returns the signature and parameter names of the named
// template or builtin, or "" if the name is unknown.
func getSignature(t *lang.Templates, name string) (signature string, params []string) {
	if tpl, ok := lookupTemplate(t, name); ok {
		return name + "(" + strings.Join(tpl.Parameters, ", ") + ")", tpl.Parameters
	}

	for _, table := range []map[string]builtinSignature{hostSignatures, exprBuiltins} {
		if sig, ok := table[name]; ok {
			return name + "(" + strings.Join(sig.params, ", ") + ")", sig.params
		}
	}

	return "", nil
}

// lookupTemplate finds a template by name, including "namespace.Name"
// references to exported templates.
func lookupTemplate(t *lang.Templates, name string) (*lang.Template, bool) {
	if t == nil {
		return nil, false
	}

	if tpl, ok := t.Template(name); ok {
		return tpl, true
	}

	ns, rest, ok := strings.Cut(name, ".")
	if !ok {
		return nil, false
	}

	ref, ok := t.NamedReferences()[ns]
	if !ok {
		return nil, false
	}

	return ref.Template(rest)
}

// renderSignatureHint renders the signature with the parameter at
// currentArgIdx highlighted. A variadic parameter stays highlighted for
// every later argument.
func renderSignatureHint(
	signature string,
	params []string,
	currentArgIdx int,
) string {
	if signature == "" {
		return ""
	}

	openParen := strings.Index(signature, "(")
	if openParen == -1 {
		return signatureStyle.Render(signature)
	}

	funcName := signature[:openParen]

	if len(params) == 0 {
		return signatureNameStyle.Render(funcName) +
			signatureStyle.Render("()")
	}

	var b strings.Builder
	b.WriteString(signatureNameStyle.Render(funcName))
	b.WriteString(signatureStyle.Render("("))

	for i, param := range params {
		if i > 0 {
			b.WriteString(signatureSeparatorStyle.Render(", "))
		}

		isVariadic := strings.HasPrefix(param, "...")

		if (isVariadic && currentArgIdx >= i) ||
			(!isVariadic && currentArgIdx == i) {
			b.WriteString(currentParamStyle.Render(param))
		} else {
			b.WriteString(signatureStyle.Render(param))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
