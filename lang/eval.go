package lang

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
	"github.com/google/uuid"

	"github.com/ardnew/lgen/log"
)

// lgTypeKey holds the type name of a structured result.
const lgTypeKey = "lgType"

// expansion is the result of expanding a template from within an
// expression.
type expansion []any

// evalTarget is a template invocation on the evaluation stack.
type evalTarget struct {
	tpl  *Template
	key  uint64
	memo map[uint64]any // results of templates called from this one
}

// evaluator interprets template bodies. A new evaluator is built for each
// top-level call.
type evaluator struct {
	ctx       context.Context
	templates map[string]*Template
	compiler  *compiler
	opts      EvalOptions
	stack     []*evalTarget
	envs      map[*Scope]map[string]any
	expander  *expander // set when expanding
	logger    log.Logger
}

// Evaluate evaluates the named template against scope.
//
// The scope may be nil, a *[Scope], a map[string]any, or any value that can
// be marshaled to a YAML mapping. A name with a trailing '!' ignores results
// memoized earlier in the same call.
func (t *Templates) Evaluate(
	ctx context.Context,
	name string,
	scope any,
	opts ...EvalOption,
) (any, error) {
	ev, s, err := t.newEvaluator(ctx, scope, nil, opts)
	if err != nil {
		return nil, err
	}

	ev.traceCall(ctx, "evaluate", name, s)

	v, err := ev.evaluateTemplate(name, s)
	if err != nil {
		return nil, err
	}

	ev.logger.TraceContext(ctx, "evaluation complete",
		slog.String("name", name),
		slog.String("result_type", resultTypeName(v)))

	return ev.opts.LineBreakStyle.apply(v), nil
}

// EvaluateText evaluates inline LG body text as if it were the single
// alternative of an anonymous template. The text may reference every
// template of t.
func (t *Templates) EvaluateText(
	ctx context.Context,
	text string,
	scope any,
	opts ...EvalOption,
) (any, error) {
	name := "__inline_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	tpl := inlineTemplate(name, text, t.ID)

	ev, s, err := t.newEvaluator(ctx, scope, tpl, opts)
	if err != nil {
		return nil, err
	}

	err = diagnosticsError(newChecker(t, ev.templates).checkTemplate(tpl))
	if err != nil {
		return nil, err
	}

	v, err := ev.evaluateTemplate(name, s)
	if err != nil {
		return nil, err
	}

	return ev.opts.LineBreakStyle.apply(v), nil
}

// inlineTemplate wraps text in a template with one alternative.
func inlineTemplate(name, text, source string) *Template {
	body := "- " + text
	if strings.ContainsAny(text, "\r\n") {
		body = "- " + fence + text + fence
	}

	var lines []bodyLine

	for i, line := range splitLines(body) {
		lines = append(lines, bodyLine{text: line, line: i + 1})
	}

	tpl := &Template{
		Name:  name,
		Body:  body,
		Range: Range{Source: source},
	}
	tpl.body = parseBody(lines, source)

	return tpl
}

// newEvaluator prepares an evaluation of t. Evaluation is refused while any
// source in the closure has Error diagnostics.
func (t *Templates) newEvaluator(
	ctx context.Context,
	scope any,
	extra *Template,
	opts []EvalOption,
) (*evaluator, *Scope, error) {
	err := t.checkErrors()
	if err != nil {
		return nil, nil, err
	}

	templates, err := t.templateLookup()
	if err != nil {
		return nil, nil, err
	}

	if extra != nil {
		templates = maps.Clone(templates)
		templates[extra.Name] = extra
	}

	s, err := newScope(scope)
	if err != nil {
		return nil, nil, err
	}

	ev := &evaluator{
		ctx:       ctx,
		templates: templates,
		compiler: &compiler{
			programs:  t.programs,
			templates: templates,
			logger:    t.logger(),
		},
		opts:   t.evalOptions(opts...),
		envs:   make(map[*Scope]map[string]any),
		logger: t.logger(),
	}

	return ev, s, nil
}

// call invokes a template from an expression.
func (ev *evaluator) call(s *Scope, name string, args []any) (any, error) {
	tpl, err := ev.lookup(name, len(args))
	if err != nil {
		return nil, err
	}

	return ev.evaluateTemplate(name, callScope(s, tpl, args))
}

// lookup finds the template called by name with argc arguments.
func (ev *evaluator) lookup(name string, argc int) (*Template, error) {
	base := strings.TrimSuffix(name, "!")

	tpl, ok := ev.templates[base]
	if !ok {
		return nil, ErrTemplateNotExist.Wrapf("'", base, "'")
	}

	if argc != 0 && argc != len(tpl.Parameters) {
		return nil, ErrArgumentMismatch.Wrapf(
			msgArgumentMismatch(tpl.Name, len(tpl.Parameters), argc),
		)
	}

	return tpl, nil
}

// callScope returns the scope of a template called with args: the current
// scope when there are none, otherwise the arguments over the global layer.
func callScope(s *Scope, tpl *Template, args []any) *Scope {
	if len(args) == 0 {
		return s
	}

	return s.with(tpl.Parameters, args)
}

// enter resolves name and verifies the invocation does not recurse.
func (ev *evaluator) enter(name string, s *Scope) (*Template, uint64, bool, error) {
	err := ev.ctx.Err()
	if err != nil {
		return nil, 0, false, err
	}

	base, forced := strings.CutSuffix(name, "!")

	tpl, ok := ev.templates[base]
	if !ok {
		return nil, 0, false, ErrTemplateNotExist.Wrapf("'", base, "'")
	}

	key := identity(tpl.Name, s)

	for _, target := range ev.stack {
		if target.key != key {
			continue
		}

		names := make([]string, len(ev.stack))
		for i, t := range ev.stack {
			names[i] = t.tpl.Name
		}

		return nil, 0, false, ErrLoopDetected.Wrapf(loopChain(names, tpl.Name))
	}

	return tpl, key, forced, nil
}

func (ev *evaluator) push(tpl *Template, key uint64) {
	ev.stack = append(ev.stack, &evalTarget{
		tpl:  tpl,
		key:  key,
		memo: make(map[uint64]any),
	})

	ev.logger.TraceContext(ev.ctx, "enter template",
		slog.String("name", tpl.Name),
		slog.Int("depth", len(ev.stack)))
}

func (ev *evaluator) pop() {
	ev.logger.TraceContext(ev.ctx, "exit template",
		slog.String("name", ev.stack[len(ev.stack)-1].tpl.Name),
		slog.Int("depth", len(ev.stack)))

	ev.stack = ev.stack[:len(ev.stack)-1]
}

// caller returns the invocation on top of the stack, if any.
func (ev *evaluator) caller() *evalTarget {
	if len(ev.stack) == 0 {
		return nil
	}

	return ev.stack[len(ev.stack)-1]
}

// current returns the template being evaluated, if any.
func (ev *evaluator) current() *Template {
	if c := ev.caller(); c != nil {
		return c.tpl
	}

	return nil
}

// evaluateTemplate evaluates the named template in scope s.
// Results are memoized in the calling invocation by template and scope.
func (ev *evaluator) evaluateTemplate(name string, s *Scope) (any, error) {
	tpl, key, forced, err := ev.enter(name, s)
	if err != nil {
		return nil, err
	}

	caller := ev.caller()
	if caller != nil && !forced {
		if v, ok := caller.memo[key]; ok {
			return v, nil
		}
	}

	ev.push(tpl, key)
	v, err := ev.visit(tpl, tpl.body, s)
	ev.pop()

	if err != nil {
		return nil, err
	}

	if caller != nil {
		caller.memo[key] = v
	}

	return v, nil
}

func (ev *evaluator) visit(tpl *Template, b *Body, s *Scope) (any, error) {
	if b == nil {
		return nil, nil
	}

	switch b.Kind {
	case BodyConditional, BodySwitch:
		r, err := ev.selectRule(tpl, b, s)
		if err != nil || r == nil {
			return nil, err
		}

		return ev.visit(tpl, r.Body, s)

	case BodyStructured:
		return ev.evalStructure(tpl, b.Structure, s)

	default:
		if len(b.Alternatives) == 0 {
			return nil, nil
		}

		alt := b.Alternatives[ev.opts.Random.IntN(len(b.Alternatives))]

		return ev.evalSegments(tpl, alt.Segments, s)
	}
}

// evalSegments concatenates the values of segs. A single segment keeps its
// native value.
func (ev *evaluator) evalSegments(tpl *Template, segs []Segment, s *Scope) (any, error) {
	pieces := make([]any, 0, len(segs))

	for _, seg := range segs {
		var (
			v   any
			err error
		)

		switch seg.Kind {
		case SegmentText:
			v = seg.Text
		case SegmentEscape:
			v = unescape(seg.Text)
		case SegmentExpression, SegmentTemplateRef:
			v, err = ev.evalValue(tpl, "", seg, s)
		case SegmentMultiline:
			v, err = ev.evalSegments(tpl, seg.Parts, s)
			v = stringify(v)
		}

		if err != nil {
			return nil, err
		}

		pieces = append(pieces, v)
	}

	return joinPieces(pieces), nil
}

func joinPieces(pieces []any) any {
	switch len(pieces) {
	case 0:
		return ""
	case 1:
		return pieces[0]
	}

	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(stringify(p))
	}

	return b.String()
}

// evalInline evaluates text found outside of a template body.
func (ev *evaluator) evalInline(s *Scope, text string, mode scanMode) (any, error) {
	tpl := ev.current()
	if tpl == nil {
		tpl = &Template{}
	}

	segs := scanSegments(text, Position{Line: 1}, tpl.Source(), mode)

	return ev.evalSegments(tpl, segs, s)
}

// evalValue evaluates an expression segment, applying null handling.
func (ev *evaluator) evalValue(
	tpl *Template,
	prefix string,
	seg Segment,
	s *Scope,
) (any, error) {
	v, err := ev.run(tpl, prefix, seg, s, modeEvaluate)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return ev.null(tpl, prefix, seg)
	}

	return v, nil
}

// null handles an expression that evaluated to nil.
func (ev *evaluator) null(tpl *Template, prefix string, seg Segment) (any, error) {
	if ev.opts.StrictMode {
		return nil, ErrNullExpression.Wrapf(templateMessage(
			tpl.Name, prefix+"'"+seg.display()+"' evaluated to null",
		))
	}

	if ev.opts.NullSubstitution != nil {
		return ev.opts.NullSubstitution(seg.expressionText()), nil
	}

	return nil, nil
}

// run compiles and runs the expression of seg.
func (ev *evaluator) run(
	tpl *Template,
	prefix string,
	seg Segment,
	s *Scope,
	mode compileMode,
) (any, error) {
	program, err := ev.compiler.compile(seg.expressionText(), mode)
	if err != nil {
		return nil, exprError(tpl, prefix, seg, err)
	}

	v, err := expr.Run(program, ev.env(s))
	if err != nil {
		return nil, exprError(tpl, prefix, seg, err)
	}

	return v, nil
}

// exprError reports a failed expression with its template and text.
// Errors raised by nested template calls keep their sentinel.
func exprError(tpl *Template, prefix string, seg Segment, err error) error {
	cause := err

	var fe *file.Error
	if errors.As(err, &fe) {
		if inner := fe.Unwrap(); inner != nil {
			cause = inner
		} else {
			cause = errors.New(fe.Message)
		}
	}

	sentinel := ErrExprEvaluate

	var le *Error
	if errors.As(cause, &le) {
		sentinel = le.root()
		if le.err != nil {
			cause = le.err
		}
	}

	return sentinel.Wrapf(templateMessage(
		tpl.Name, prefix+"'"+seg.display()+"': "+cause.Error(),
	))
}

// condition evaluates the guard of an IF or ELSEIF branch.
// Outside strict mode a guard that fails to evaluate is false.
func (ev *evaluator) condition(tpl *Template, seg Segment, s *Scope) (bool, error) {
	v, err := ev.run(tpl, "Condition ", seg, s, modeEvaluate)
	if err != nil {
		if ev.opts.StrictMode || !errors.Is(err, ErrExprEvaluate) {
			return false, err
		}

		ev.logger.DebugContext(ev.ctx, "condition failed", slog.Any("error", err))

		return false, nil
	}

	if v == nil && ev.opts.StrictMode {
		return false, ErrNullExpression.Wrapf(templateMessage(
			tpl.Name, "Condition '"+seg.display()+"' evaluated to null",
		))
	}

	return truthy(v), nil
}

// selectRule returns the branch of a conditional or switch body that
// applies in scope s, or nil if none does.
func (ev *evaluator) selectRule(tpl *Template, b *Body, s *Scope) (*Rule, error) {
	var (
		value    string
		switched bool
	)

	for _, r := range b.Rules {
		switch r.Kind {
		case RuleIf, RuleElseIf:
			if len(r.Expressions) == 0 {
				continue
			}

			ok, err := ev.condition(tpl, r.Expressions[0], s)
			if err != nil {
				return nil, err
			}

			if ok {
				return r, nil
			}

		case RuleSwitch:
			if len(r.Expressions) == 0 {
				continue
			}

			v, err := ev.evalValue(tpl, "Switch ", r.Expressions[0], s)
			if err != nil {
				return nil, err
			}

			value, switched = stringify(v), true

		case RuleCase:
			if !switched || len(r.Expressions) == 0 {
				continue
			}

			v, err := ev.evalValue(tpl, "Case ", r.Expressions[0], s)
			if err != nil {
				return nil, err
			}

			if stringify(v) == value {
				return r, nil
			}

		case RuleElse, RuleDefault:
			return r, nil
		}
	}

	if ev.opts.StrictMode {
		return nil, ErrNullExpression.Wrapf(templateMessage(tpl.Name, "no branch matched"))
	}

	return nil, nil
}

// evalStructure builds the object of a structured body.
func (ev *evaluator) evalStructure(tpl *Template, st *Structure, s *Scope) (any, error) {
	if st == nil {
		return nil, nil
	}

	result := map[string]any{lgTypeKey: st.Name}

	var merges []any

	for _, p := range st.Properties {
		if p.Expr != nil {
			v, err := ev.evalValue(tpl, "Property ", *p.Expr, s)
			if err != nil {
				return nil, err
			}

			merges = append(merges, v)

			continue
		}

		values := make([]any, 0, len(p.Values))

		for _, item := range p.Values {
			v, err := ev.evalItem(tpl, item, s)
			if err != nil {
				return nil, err
			}

			values = append(values, v)
		}

		result[strings.ToLower(p.Key)] = unwrapValues(values)
	}

	for _, m := range merges {
		mergeStructure(result, m, st.Name)
	}

	return result, nil
}

// evalItem evaluates one pipe-separated value of a property.
func (ev *evaluator) evalItem(tpl *Template, item []Segment, s *Scope) (any, error) {
	if isPureExpression(item) {
		return ev.evalValue(tpl, "Property ", item[0], s)
	}

	v, err := ev.evalSegments(tpl, item, s)
	if err != nil {
		return nil, err
	}

	if str, ok := v.(string); ok {
		return trimSpace(str), nil
	}

	return v, nil
}

func isPureExpression(item []Segment) bool {
	return len(item) == 1 &&
		(item[0].Kind == SegmentExpression || item[0].Kind == SegmentTemplateRef)
}

func unwrapValues(values []any) any {
	if len(values) == 1 {
		return values[0]
	}

	return values
}

// mergeStructure copies the keys of src missing from dst when src is an
// object of the same type.
func mergeStructure(dst map[string]any, src any, typeName string) {
	m, ok := src.(map[string]any)
	if !ok {
		return
	}

	if t, _ := m[lgTypeKey].(string); t != typeName {
		return
	}

	for k, v := range m {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}
