package lang

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// resolution walks the import graph of one root source.
type resolution struct {
	opts    parseOptions
	found   map[string]*Templates   // resolved sources by id
	direct  map[string][]*Templates // direct imports by id
	order   []*Templates            // resolved sources in discovery order
	history []string                // ids being resolved, outermost first
}

// resolveImports loads every source transitively imported by root and sets
// the References of root and of each imported source.
func resolveImports(ctx context.Context, root *Templates) error {
	r := &resolution{
		opts:   root.opts,
		found:  map[string]*Templates{root.ID: root},
		direct: make(map[string][]*Templates),
	}

	err := r.walk(ctx, root)
	if err != nil {
		return err
	}

	root.References = r.closure(root)

	for _, t := range r.order {
		t.References = r.closure(t)
	}

	// Imported sources are checked once their own closure is known, so
	// references into their imports resolve.
	for _, t := range r.order {
		t.check(ctx)
		r.opts.cache.store(t)
	}

	root.logger().TraceContext(ctx, "imports resolved",
		slog.String("id", root.ID),
		slog.Int("reference_count", len(root.References)))

	return nil
}

func (r *resolution) walk(ctx context.Context, t *Templates) error {
	r.history = append(r.history, t.ID)
	defer func() { r.history = r.history[:len(r.history)-1] }()

	for _, imp := range t.Imports {
		child, err := r.resolve(ctx, t, imp)
		if err != nil {
			return err
		}

		if child == nil || slices.Contains(r.direct[t.ID], child) {
			continue
		}

		r.direct[t.ID] = append(r.direct[t.ID], child)
	}

	return nil
}

// resolve returns the source imported by imp, resolving it on first use.
// A nil result means the import refers to t itself.
func (r *resolution) resolve(
	ctx context.Context,
	t *Templates,
	imp *Import,
) (*Templates, error) {
	res, err := r.opts.resolver.Resolve(ctx, t.ID, imp.ID)
	if err != nil {
		d := r.report(t, imp, "failed to resolve import '"+imp.ID+"': "+err.Error())

		return nil, ErrImportResolve.Wrap(fmt.Errorf("%s: %w", d, err)).
			With(slog.String("source", t.ID), slog.String("import", imp.ID))
	}

	if res.ID == "" {
		res.ID = imp.ID
	}

	if res.ID == t.ID {
		return nil, nil
	}

	if slices.Contains(r.history, res.ID) {
		return nil, r.loop(t, imp, res.ID)
	}

	if child, ok := r.found[res.ID]; ok {
		return child, nil
	}

	if child, ok := r.opts.cache.load(res.ID, res.Content); ok {
		r.opts.logger.TraceContext(ctx, "import cache hit", slog.String("id", res.ID))

		for _, ref := range child.References {
			if slices.Contains(r.history, ref.ID) {
				return nil, r.loop(t, imp, res.ID, ref.ID)
			}
		}

		r.found[res.ID] = child

		return child, nil
	}

	child, err := parseContent(ctx, res.Content, res.ID, r.opts)
	if err != nil {
		return nil, err
	}

	r.found[res.ID] = child
	r.order = append(r.order, child)

	err = r.walk(ctx, child)
	if err != nil {
		return nil, err
	}

	return child, nil
}

// loop reports an import cycle closed by importing id from t.
func (r *resolution) loop(t *Templates, imp *Import, ids ...string) error {
	chain := loopChain(append(slices.Clone(r.history), ids[:len(ids)-1]...), ids[len(ids)-1])
	d := r.report(t, imp, "loop detected: "+chain)

	return ErrImportLoop.Wrapf(d.String()).With(slog.String("source", t.ID))
}

func (r *resolution) report(t *Templates, imp *Import, msg string) *Diagnostic {
	d := NewDiagnostic(imp.Range, msg, SeverityError, t.ID)
	t.Diagnostics = append(t.Diagnostics, d)

	return d
}

// closure returns every source reachable from t, excluding t itself.
func (r *resolution) closure(t *Templates) []*Templates {
	var (
		out   []*Templates
		seen  = map[string]bool{t.ID: true}
		queue = slices.Clone(r.direct[t.ID])
	)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if seen[next.ID] {
			continue
		}

		seen[next.ID] = true
		out = append(out, next)

		if refs, ok := r.direct[next.ID]; ok {
			queue = append(queue, refs...)
		} else {
			queue = append(queue, next.References...)
		}
	}

	return out
}
