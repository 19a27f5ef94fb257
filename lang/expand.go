package lang

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// expander enumerates every value a template can produce. It shares the
// stack of its evaluator, so loops are detected across both.
type expander struct {
	*evaluator
}

// Expand returns every value the named template can produce against scope,
// in body order.
//
// Each alternative of a normal body is expanded, and the alternatives of
// templates called at the top level of an expression are combined with
// the surrounding text. Conditions and switches select one branch, as in
// [Templates.Evaluate].
func (t *Templates) Expand(
	ctx context.Context,
	name string,
	scope any,
	opts ...EvalOption,
) ([]any, error) {
	ev, s, err := t.newEvaluator(ctx, scope, nil, opts)
	if err != nil {
		return nil, err
	}

	ex := &expander{evaluator: ev}
	ev.expander = ex

	ev.traceCall(ctx, "expand", name, s)

	values, err := ex.expandTemplate(name, s)
	if err != nil {
		return nil, err
	}

	ev.logger.TraceContext(ctx, "expansion complete",
		slog.String("name", name),
		slog.Int("value_count", len(values)))

	for i, v := range values {
		values[i] = ev.opts.LineBreakStyle.apply(v)
	}

	return values, nil
}

// call expands a template called from an expression.
func (ex *expander) call(s *Scope, name string, args []any) ([]any, error) {
	tpl, err := ex.lookup(name, len(args))
	if err != nil {
		return nil, err
	}

	return ex.expandTemplate(name, callScope(s, tpl, args))
}

func (ex *expander) expandTemplate(name string, s *Scope) ([]any, error) {
	tpl, key, _, err := ex.enter(name, s)
	if err != nil {
		return nil, err
	}

	ex.push(tpl, key)
	defer ex.pop()

	return ex.expandBody(tpl, tpl.body, s)
}

func (ex *expander) expandBody(tpl *Template, b *Body, s *Scope) ([]any, error) {
	if b == nil {
		return []any{nil}, nil
	}

	switch b.Kind {
	case BodyConditional, BodySwitch:
		r, err := ex.selectRule(tpl, b, s)
		if err != nil {
			return nil, err
		}

		if r == nil {
			return []any{nil}, nil
		}

		return ex.expandBody(tpl, r.Body, s)

	case BodyStructured:
		return ex.expandStructure(tpl, b.Structure, s)

	default:
		var out []any

		for _, alt := range b.Alternatives {
			values, err := ex.expandSegments(tpl, alt.Segments, s)
			if err != nil {
				return nil, err
			}

			out = append(out, values...)
		}

		return out, nil
	}
}

// expandSegments returns the concatenations of every combination of the
// values of segs.
func (ex *expander) expandSegments(tpl *Template, segs []Segment, s *Scope) ([]any, error) {
	combos := [][]any{{}}

	for _, seg := range segs {
		var (
			options []any
			err     error
		)

		switch seg.Kind {
		case SegmentText:
			options = []any{seg.Text}

		case SegmentEscape:
			options = []any{unescape(seg.Text)}

		case SegmentExpression, SegmentTemplateRef:
			options, err = ex.expandValue(tpl, "", seg, s)

		case SegmentMultiline:
			options, err = ex.expandSegments(tpl, seg.Parts, s)
			for i, v := range options {
				options[i] = stringify(v)
			}
		}

		if err != nil {
			return nil, err
		}

		combos = product(combos, options)
	}

	out := make([]any, len(combos))
	for i, c := range combos {
		out[i] = joinPieces(c)
	}

	return out, nil
}

// product appends each option to each combination.
func product(combos [][]any, options []any) [][]any {
	next := make([][]any, 0, len(combos)*len(options))

	for _, c := range combos {
		for _, o := range options {
			next = append(next, append(slices.Clone(c), o))
		}
	}

	return next
}

// expandValue evaluates an expression whose top-level template call, if
// any, yields all of its alternatives.
func (ex *expander) expandValue(
	tpl *Template,
	prefix string,
	seg Segment,
	s *Scope,
) ([]any, error) {
	v, err := ex.run(tpl, prefix, seg, s, modeExpand)
	if err != nil {
		return nil, err
	}

	if values, ok := v.(expansion); ok {
		return []any(values), nil
	}

	if v == nil {
		v, err = ex.null(tpl, prefix, seg)
		if err != nil {
			return nil, err
		}
	}

	return []any{v}, nil
}

// expandStructure returns an object for every combination of property
// values.
func (ex *expander) expandStructure(tpl *Template, st *Structure, s *Scope) ([]any, error) {
	if st == nil {
		return []any{nil}, nil
	}

	results := []map[string]any{{lgTypeKey: st.Name}}

	var merges [][]any

	for _, p := range st.Properties {
		if p.Expr != nil {
			values, err := ex.expandValue(tpl, "Property ", *p.Expr, s)
			if err != nil {
				return nil, err
			}

			merges = append(merges, values)

			continue
		}

		items := [][]any{{}}

		for _, item := range p.Values {
			options, err := ex.expandItem(tpl, item, s)
			if err != nil {
				return nil, err
			}

			items = product(items, options)
		}

		key := strings.ToLower(p.Key)
		next := make([]map[string]any, 0, len(results)*len(items))

		for _, r := range results {
			for _, values := range items {
				m := maps.Clone(r)
				m[key] = unwrapValues(values)
				next = append(next, m)
			}
		}

		results = next
	}

	for _, values := range merges {
		next := make([]map[string]any, 0, len(results)*len(values))

		for _, r := range results {
			for _, v := range values {
				m := maps.Clone(r)
				mergeStructure(m, v, st.Name)
				next = append(next, m)
			}
		}

		results = next
	}

	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r
	}

	return out, nil
}

func (ex *expander) expandItem(tpl *Template, item []Segment, s *Scope) ([]any, error) {
	if isPureExpression(item) {
		return ex.expandValue(tpl, "Property ", item[0], s)
	}

	values, err := ex.expandSegments(tpl, item, s)
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		if str, ok := v.(string); ok {
			values[i] = trimSpace(str)
		}
	}

	return values, nil
}
