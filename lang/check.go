package lang

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/builtin"
	exprparser "github.com/expr-lang/expr/parser"
)

// check appends the static checker diagnostics of t.
func (t *Templates) check(ctx context.Context) {
	before := len(t.Diagnostics)

	c := newChecker(t, indexTemplates(t))
	t.Diagnostics = append(t.Diagnostics, c.checkSource()...)

	t.logger().TraceContext(ctx, "check complete",
		slog.String("id", t.ID),
		slog.Int("diagnostic_count", len(t.Diagnostics)-before))
}

// indexTemplates maps each name callable from t to its template. The first
// definition of a duplicated name wins.
func indexTemplates(t *Templates) map[string]*Template {
	index := make(map[string]*Template)

	for tpl := range t.All() {
		if _, ok := index[tpl.Name]; !ok {
			index[tpl.Name] = tpl
		}
	}

	addExports(t, index)

	return index
}

// addExports adds "namespace.name" aliases for exported templates.
func addExports(t *Templates, index map[string]*Template) {
	for ns, ref := range t.NamedReferences() {
		for _, name := range ref.settings.exports {
			tpl, ok := index[name]
			if !ok {
				continue
			}

			if _, taken := index[ns+"."+name]; !taken {
				index[ns+"."+name] = tpl
			}
		}
	}
}

// checker validates the templates of one source.
type checker struct {
	t         *Templates
	templates map[string]*Template
	diags     []*Diagnostic
	tpl       *Template // template being checked
}

func newChecker(t *Templates, templates map[string]*Template) *checker {
	return &checker{t: t, templates: templates}
}

func (c *checker) report(r Range, msg string, severity Severity) {
	name := ""
	if c.tpl != nil {
		name = c.tpl.Name
	}

	c.diags = append(c.diags, NewDiagnostic(
		r, templateMessage(name, msg), severity, c.t.ID,
	))
}

func (c *checker) error(r Range, msg string)   { c.report(r, msg, SeverityError) }
func (c *checker) warning(r Range, msg string) { c.report(r, msg, SeverityWarning) }

// checkSource checks every template of the source. Duplicate names stop
// the check.
func (c *checker) checkSource() []*Diagnostic {
	seen := make(map[string]bool)

	for _, tpl := range c.t.Templates {
		if seen[tpl.Name] {
			c.error(tpl.Range, msgDuplicatedTemplate(tpl.Name))
		}

		seen[tpl.Name] = true
	}

	if len(c.diags) > 0 {
		return c.diags
	}

	if len(c.t.Templates) == 0 {
		c.warning(Range{}, msgNoTemplate)
	}

	for _, tpl := range c.t.Templates {
		for _, ref := range c.t.References {
			if slices.ContainsFunc(ref.Templates, func(o *Template) bool {
				return o.Name == tpl.Name
			}) {
				c.tpl = tpl
				c.warning(tpl.Range, msgDuplicatedAcross(tpl.Name, ref.ID))
			}
		}

		c.checkTemplate(tpl)
	}

	return c.diags
}

// checkTemplate checks one template and returns all diagnostics so far.
func (c *checker) checkTemplate(tpl *Template) []*Diagnostic {
	c.tpl = tpl
	defer func() { c.tpl = nil }()

	b := tpl.body
	if b == nil {
		return c.diags
	}

	for _, issue := range b.Issues {
		c.error(issue.Range, issue.Message)
	}

	switch b.Kind {
	case BodyConditional:
		c.checkConditional(b)
	case BodySwitch:
		c.checkSwitch(b)
	case BodyStructured:
		c.checkStructure(b)
	default:
		for _, alt := range b.Alternatives {
			c.checkSegments(alt.Segments)
		}
	}

	return c.diags
}

func (c *checker) checkSpacing(r *Rule) {
	if utf8.RuneCountInString(r.Spacing) > 1 {
		c.error(r.Range, msgInvalidWhitespace)
	}
}

func (c *checker) checkConditional(b *Body) {
	last := len(b.Rules) - 1

	for i, r := range b.Rules {
		c.checkSpacing(r)

		switch r.Kind {
		case RuleIf:
			if i > 0 {
				c.error(r.Range, msgMultipleIf)
			}

		case RuleElseIf:
			if i == 0 {
				c.warning(r.Range, msgNotStartWithIf)
			}

		case RuleElse:
			if i == 0 {
				c.warning(r.Range, msgNotStartWithIf)
			} else if i != last {
				c.error(r.Range, msgInvalidMiddleInIf)
			}

		default:
			c.error(r.Range, msgKeywordNotAllowed(r.Kind.String(), b.Kind))

			continue
		}

		if r.Kind == RuleElse {
			if len(r.Expressions) > 0 || r.Extra != "" {
				c.error(r.Range, msgExtraExpressionInElse)
			}
		} else if len(r.Expressions) != 1 || r.Extra != "" {
			c.error(r.Range, msgInvalidExpressionInIf)
		}

		if r.Body == nil {
			c.error(r.Range, msgMissingBodyInIf)
		}

		c.checkRule(r)
	}

	if last >= 0 && b.Rules[last].Kind != RuleElse {
		c.warning(b.Rules[last].Range, msgNotEndWithElse)
	}
}

func (c *checker) checkSwitch(b *Body) {
	last := len(b.Rules) - 1
	cases := 0

	for i, r := range b.Rules {
		c.checkSpacing(r)

		switch r.Kind {
		case RuleSwitch:
			if i > 0 {
				c.error(r.Range, msgMultipleSwitch)
			}

			if r.Body != nil {
				c.error(r.Range, msgSwitchWithBody)
			}

		case RuleCase:
			if i == 0 {
				c.error(r.Range, msgNotStartWithSwitch)
			}

			cases++

		case RuleDefault:
			if i == 0 {
				c.error(r.Range, msgNotStartWithSwitch)
			} else if i != last {
				c.error(r.Range, msgDefaultNotLast)
			}

		default:
			c.error(r.Range, msgKeywordNotAllowed(r.Kind.String(), b.Kind))

			continue
		}

		if r.Kind == RuleDefault {
			if len(r.Expressions) > 0 || r.Extra != "" {
				c.error(r.Range, msgExtraExpressionInDflt)
			}
		} else if len(r.Expressions) != 1 || r.Extra != "" {
			c.error(r.Range, msgInvalidExpressionCase)
		}

		if r.Kind != RuleSwitch && r.Body == nil {
			c.error(r.Range, msgMissingBodyInCase)
		}

		c.checkRule(r)
	}

	if cases == 0 && last >= 0 {
		c.error(b.Rules[0].Range, msgMissingCase)
	}

	if last > 0 && b.Rules[last].Kind != RuleDefault {
		c.warning(b.Rules[last].Range, msgNotEndWithDefault)
	}
}

func (c *checker) checkRule(r *Rule) {
	c.checkSegments(r.Expressions)

	if r.Body != nil {
		for _, alt := range r.Body.Alternatives {
			c.checkSegments(alt.Segments)
		}
	}
}

func (c *checker) checkStructure(b *Body) {
	st := b.Structure
	if st == nil {
		return
	}

	if !structurePattern.MatchString(st.Name) {
		c.error(st.Range, msgInvalidStrucName(st.Name))
	}

	if !st.Closed {
		c.error(st.Range, msgMissingStrucEnd)
	}

	if len(st.Properties) == 0 {
		c.error(st.Range, msgEmptyStrucContent)
	}

	for _, p := range st.Properties {
		if p.Expr != nil {
			c.checkSegments([]Segment{*p.Expr})
		}

		for _, v := range p.Values {
			c.checkSegments(v)
		}
	}
}

func (c *checker) checkSegments(segs []Segment) {
	for _, seg := range segs {
		switch seg.Kind {
		case SegmentExpression:
			if !seg.Closed {
				c.error(seg.Range, msgNoCloseBracket)

				continue
			}

			c.checkExpression(seg)

		case SegmentTemplateRef:
			c.checkReference(seg)

		case SegmentMultiline:
			if !seg.Closed {
				c.error(seg.Range, msgNoEndingInMultiline)
			}

			c.checkSegments(seg.Parts)
		}
	}
}

// checkReference checks a [name] or [name(args)] reference.
func (c *checker) checkReference(seg Segment) {
	name, ok := resolveCallee(seg.Text, c.templates)
	if !ok {
		c.error(seg.Range, msgTemplateNotExist(seg.Text))

		return
	}

	tpl := c.templates[name]
	if n := countArgs(seg.Args); n != 0 && n != len(tpl.Parameters) {
		c.error(seg.Range, msgArgumentMismatch(tpl.Name, len(tpl.Parameters), n))
	}

	if seg.HasArgs {
		c.checkExpression(seg)
	}
}

// checkExpression parses an expression and validates the functions it
// calls.
func (c *checker) checkExpression(seg Segment) {
	tree, err := exprparser.Parse(rewriteForced(seg.expressionText()))
	if err != nil {
		c.error(seg.Range, msgExpressionParse(seg.display(), exprMessage(err)))

		return
	}

	ast.Walk(&tree.Node, &callVisitor{c: c, seg: seg})
}

// callVisitor validates the calls of one expression.
type callVisitor struct {
	c   *checker
	seg Segment
}

// Visit implements ast.Visitor for callVisitor.
func (v *callVisitor) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok {
		return
	}

	name, ok := calleeName(call.Callee)
	if !ok {
		return
	}

	if _, ok := call.Callee.(*ast.MemberNode); ok && !v.isTemplate(name) {
		// Method calls and builtin.f calls are resolved at run time.
		return
	}

	if target, ok := resolveCallee(name, v.c.templates); ok {
		tpl := v.c.templates[strings.TrimSuffix(target, "!")]
		if n := len(call.Arguments); n != 0 && n != len(tpl.Parameters) {
			v.c.error(v.seg.Range, msgArgumentMismatch(tpl.Name, len(tpl.Parameters), n))
		}

		return
	}

	if slices.Contains(hostFunctions, name) {
		return
	}

	if _, ok := builtin.Index[name]; ok {
		return
	}

	v.c.error(v.seg.Range, msgFunctionNotExist(name))
}

func (v *callVisitor) isTemplate(name string) bool {
	_, ok := resolveCallee(name, v.c.templates)

	return ok
}
