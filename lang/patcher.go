package lang

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/builtin"

	"github.com/ardnew/lgen/log"
)

const (
	// forceMarker replaces the '!' of a "name!(...)" call before parsing,
	// since expr-lang has no postfix '!' operator.
	forceMarker = "__lgforce"

	builtinPrefix = "builtin."
	lgPrefix      = "lg."

	expandRoot = "__expand"
)

// rewriteForced replaces "name!(" with "name__lgforce(" outside of string
// literals.
func rewriteForced(src string) string {
	if !strings.Contains(src, "!(") {
		return src
	}

	var b strings.Builder

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(src, i)
			if j < 0 {
				j = len(src) - 1
			}

			b.WriteString(src[i : j+1])
			i = j

		case c == '!' && i > 0 && isIdentByte(src[i-1]) &&
			i+1 < len(src) && src[i+1] == '(':
			b.WriteString(forceMarker)

		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// calleeName returns the dotted name a call targets, e.g. "a.b.c".
func calleeName(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, true

	case *ast.MemberNode:
		prop, ok := n.Property.(*ast.StringNode)
		if !ok || n.Optional {
			return "", false
		}

		base, ok := calleeName(n.Node)
		if !ok {
			return "", false
		}

		return base + "." + prop.Value, true

	default:
		return "", false
	}
}

// resolveCallee maps a callee name to the template it invokes.
// The returned name carries a trailing '!' when re-execution is forced.
func resolveCallee(name string, templates map[string]*Template) (string, bool) {
	base, forced := strings.CutSuffix(name, forceMarker)

	tpl, ok := templates[base]
	if !ok {
		trimmed, cut := strings.CutPrefix(base, lgPrefix)
		if !cut {
			return "", false
		}

		if tpl, ok = templates[trimmed]; !ok {
			return "", false
		}
	}

	if forced {
		return tpl.Name + "!", true
	}

	return tpl.Name, true
}

// templateCallPatcher rewrites calls to template names into calls of the
// host template function, and "builtin.f(...)" into the builtin f.
//
// Builtins of the expression language are parsed into BuiltinNode and never
// reach this patcher, so they take precedence over templates of the same
// name.
type templateCallPatcher struct {
	templates map[string]*Template
	logger    log.Logger
}

// Visit implements ast.Visitor for templateCallPatcher.
func (p *templateCallPatcher) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok {
		return
	}

	name, ok := calleeName(call.Callee)
	if !ok {
		return
	}

	if fn, ok := strings.CutPrefix(name, builtinPrefix); ok {
		if _, ok := builtin.Index[fn]; ok {
			ast.Patch(node, &ast.BuiltinNode{Name: fn, Arguments: call.Arguments})
		} else {
			ast.Patch(node, &ast.CallNode{
				Callee:    &ast.IdentifierNode{Value: fn},
				Arguments: call.Arguments,
			})
		}

		return
	}

	target, ok := resolveCallee(name, p.templates)
	if !ok {
		return
	}

	args := make([]ast.Node, 0, len(call.Arguments)+1)
	args = append(args, &ast.StringNode{Value: target})
	args = append(args, call.Arguments...)

	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: fnTemplate},
		Arguments: args,
	})

	p.logger.Trace("patch template call",
		slog.String("callee", name),
		slog.String("template", target))
}

// letNames records the variables declared by let in an expression.
type letNames map[string]struct{}

// Visit implements ast.Visitor for letNames.
func (l letNames) Visit(node *ast.Node) {
	if decl, ok := (*node).(*ast.VariableDeclaratorNode); ok {
		l[decl.Name] = struct{}{}
	}
}

// scopePathPatcher rewrites member chains rooted at a scope variable, such
// as "user.address.city" or "tasks[0]", into one lookup of the whole path.
// Each path is then resolved by [Scope.Get], falling through from the
// template arguments to the caller's scope.
//
// The walk is post-order, so an inner chain is already a lookup when its
// enclosing member is visited.
type scopePathPatcher struct {
	bound letNames
}

// Visit implements ast.Visitor for scopePathPatcher.
func (p *scopePathPatcher) Visit(node *ast.Node) {
	member, ok := (*node).(*ast.MemberNode)
	if !ok || member.Method || member.Optional {
		return
	}

	key, ok := memberKey(member.Property)
	if !ok {
		return
	}

	var base string

	switch n := member.Node.(type) {
	case *ast.IdentifierNode:
		if !p.isScopeVar(n.Value) {
			return
		}

		base = n.Value

	case *ast.CallNode:
		if base, ok = lookupCallPath(n); !ok {
			return
		}

	default:
		return
	}

	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: fnLookup},
		Arguments: []ast.Node{&ast.StringNode{Value: base + "." + key}},
	})
}

func (p *scopePathPatcher) isScopeVar(name string) bool {
	if strings.HasPrefix(name, "$") || name == expandRoot || name == fnLookup ||
		name == fnExpandTemplate || slices.Contains(hostFunctions, name) {
		return false
	}

	_, bound := p.bound[name]

	return !bound
}

// memberKey returns the path segment of a constant property.
func memberKey(prop ast.Node) (string, bool) {
	switch n := prop.(type) {
	case *ast.StringNode:
		if n.Value == "" || strings.Contains(n.Value, ".") {
			return "", false
		}

		return n.Value, true

	case *ast.IntegerNode:
		if n.Value < 0 {
			return "", false
		}

		return strconv.Itoa(n.Value), true

	default:
		return "", false
	}
}

// lookupCallPath returns the path of a call generated by scopePathPatcher.
func lookupCallPath(call *ast.CallNode) (string, bool) {
	ident, ok := call.Callee.(*ast.IdentifierNode)
	if !ok || ident.Value != fnLookup || len(call.Arguments) != 1 {
		return "", false
	}

	path, ok := call.Arguments[0].(*ast.StringNode)
	if !ok {
		return "", false
	}

	return path.Value, true
}

// nilSafePatcher makes every field and index access nil-safe, so a missing
// member yields nil rather than an error.
type nilSafePatcher struct{}

// Visit implements ast.Visitor for nilSafePatcher.
func (nilSafePatcher) Visit(node *ast.Node) {
	member, ok := (*node).(*ast.MemberNode)
	if !ok || member.Method || member.Optional {
		return
	}

	member.Optional = true
	ast.Patch(node, &ast.ChainNode{Node: member})
}

// expandRootPatcher unwraps the __expand(...) call enclosing an expression
// compiled for expansion. A template call directly under it is turned into
// a call of the expanding host function.
type expandRootPatcher struct{}

// Visit implements ast.Visitor for expandRootPatcher.
func (expandRootPatcher) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok || len(call.Arguments) != 1 {
		return
	}

	if ident, ok := call.Callee.(*ast.IdentifierNode); !ok || ident.Value != expandRoot {
		return
	}

	inner := call.Arguments[0]
	if tc, ok := inner.(*ast.CallNode); ok {
		if ident, ok := tc.Callee.(*ast.IdentifierNode); ok && ident.Value == fnTemplate {
			ast.Patch(node, &ast.CallNode{
				Callee:    &ast.IdentifierNode{Value: fnExpandTemplate},
				Arguments: tc.Arguments,
			})

			return
		}
	}

	ast.Patch(node, inner)
}
