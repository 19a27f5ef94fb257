package lang

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
	exprparser "github.com/expr-lang/expr/parser"
)

// AnalyzerResult lists the dependencies of a template.
type AnalyzerResult struct {
	// Variables are the scope paths read by the template and every template
	// it references, e.g. "user.name" or "tasks[0]".
	Variables []string `json:"variables"          yaml:"variables"`
	// TemplateReferences are the templates referenced transitively.
	TemplateReferences []string `json:"templateReferences" yaml:"templateReferences"`
}

func (r *AnalyzerResult) addVariable(v string) {
	if !slices.Contains(r.Variables, v) {
		r.Variables = append(r.Variables, v)
	}
}

func (r *AnalyzerResult) addReference(name string) {
	if !slices.Contains(r.TemplateReferences, name) {
		r.TemplateReferences = append(r.TemplateReferences, name)
	}
}

// Analyze reports the variables and templates the named template depends
// on. Every branch of conditional and switch bodies is included. Nothing is
// evaluated.
func (t *Templates) Analyze(ctx context.Context, name string) (*AnalyzerResult, error) {
	err := t.checkErrors()
	if err != nil {
		return nil, err
	}

	templates, err := t.templateLookup()
	if err != nil {
		return nil, err
	}

	a := &analyzer{
		ctx:       ctx,
		templates: templates,
		result:    &AnalyzerResult{Variables: []string{}, TemplateReferences: []string{}},
	}

	err = a.analyzeTemplate(name)
	if err != nil {
		return nil, err
	}

	t.logger().TraceContext(ctx, "analysis complete",
		slog.String("name", name),
		slog.Int("variable_count", len(a.result.Variables)),
		slog.Int("reference_count", len(a.result.TemplateReferences)))

	return a.result, nil
}

type analyzer struct {
	ctx       context.Context
	templates map[string]*Template
	stack     []string
	result    *AnalyzerResult
}

func (a *analyzer) analyzeTemplate(name string) error {
	err := a.ctx.Err()
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(name, "!")

	tpl, ok := a.templates[base]
	if !ok {
		return ErrTemplateNotExist.Wrapf("'", base, "'")
	}

	if slices.Contains(a.stack, tpl.Name) {
		return ErrLoopDetected.Wrapf(loopChain(a.stack, tpl.Name))
	}

	a.stack = append(a.stack, tpl.Name)
	defer func() { a.stack = a.stack[:len(a.stack)-1] }()

	for _, seg := range tpl.body.segments() {
		refs, err := a.analyzeExpression(tpl, seg.expressionText())
		if err != nil {
			return err
		}

		for _, ref := range refs {
			a.result.addReference(strings.TrimSuffix(ref, "!"))

			err = a.analyzeTemplate(ref)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// analyzeExpression records the variables of src and returns the templates
// it calls.
func (a *analyzer) analyzeExpression(tpl *Template, src string) ([]string, error) {
	tree, err := exprparser.Parse(rewriteForced(src))
	if err != nil {
		return nil, ErrExprCompile.Wrapf(templateMessage(tpl.Name, "'"+src+"': "+exprMessage(err)))
	}

	refs := &referenceVisitor{
		templates: a.templates,
		skip:      make(map[ast.Node]bool),
		declared:  make(map[string]bool),
	}
	ast.Walk(&tree.Node, refs)

	vars := &variableVisitor{refs: refs}
	ast.Walk(&tree.Node, vars)

	for _, path := range vars.paths {
		if !isParameterPath(tpl.Parameters, path) {
			a.result.addVariable(path)
		}
	}

	return refs.calls, nil
}

func isParameterPath(params []string, path string) bool {
	for _, p := range params {
		if path == p || strings.HasPrefix(path, p+".") || strings.HasPrefix(path, p+"[") {
			return true
		}
	}

	return false
}

// referenceVisitor collects template calls and marks the nodes that are not
// variable reads: callees, bases of longer member paths, and names declared
// with let.
type referenceVisitor struct {
	templates map[string]*Template
	calls     []string
	skip      map[ast.Node]bool
	declared  map[string]bool
}

// Visit implements ast.Visitor for referenceVisitor.
func (v *referenceVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		v.skipCallee(n.Callee)

		name, ok := calleeName(n.Callee)
		if !ok {
			return
		}

		if name == fnTemplate && len(n.Arguments) > 0 {
			if s, ok := n.Arguments[0].(*ast.StringNode); ok {
				if _, known := v.templates[strings.TrimSuffix(s.Value, "!")]; known {
					v.calls = append(v.calls, s.Value)
				}
			}

			return
		}

		if target, ok := resolveCallee(name, v.templates); ok {
			v.calls = append(v.calls, target)
		}

	case *ast.MemberNode:
		v.skip[n.Node] = true

	case *ast.VariableDeclaratorNode:
		v.declared[n.Name] = true
	}
}

// skipCallee marks a callee and the member chain naming it.
func (v *referenceVisitor) skipCallee(node ast.Node) {
	v.skip[node] = true

	if m, ok := node.(*ast.MemberNode); ok {
		if _, named := calleeName(m); named {
			v.skipCallee(m.Node)
		}
	}
}

// variableVisitor records the longest variable paths of an expression.
type variableVisitor struct {
	refs  *referenceVisitor
	paths []string
}

// Visit implements ast.Visitor for variableVisitor.
func (v *variableVisitor) Visit(node *ast.Node) {
	if v.refs.skip[*node] {
		return
	}

	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if v.refs.declared[n.Value] || slices.Contains(hostFunctions, n.Value) {
			return
		}

		v.paths = append(v.paths, n.Value)

	case *ast.MemberNode:
		if path, ok := v.memberPath(n); ok {
			v.paths = append(v.paths, path)
		}
	}
}

// memberPath renders a member chain rooted at a variable, e.g. "a.b[0]".
// A computed index ends the path at its base.
func (v *variableVisitor) memberPath(n *ast.MemberNode) (string, bool) {
	var base string

	switch b := n.Node.(type) {
	case *ast.IdentifierNode:
		if v.refs.declared[b.Value] {
			return "", false
		}

		base = b.Value

	case *ast.MemberNode:
		p, ok := v.memberPath(b)
		if !ok {
			return "", false
		}

		base = p

	default:
		return "", false
	}

	switch p := n.Property.(type) {
	case *ast.StringNode:
		return base + "." + p.Value, true
	case *ast.IntegerNode:
		return base + "[" + strconv.Itoa(p.Value) + "]", true
	default:
		return base, true
	}
}
