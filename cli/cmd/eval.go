package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/lgen/lang"
)

// Eval evaluates a template, or inline LG text, and prints the result.
type Eval struct {
	ScopeFlags `embed:""`

	Source   string `arg:""             help:"LG source file or '-' for stdin."`
	Template string `arg:"" optional:"" help:"Template to evaluate; a trailing '!' ignores memoized results."`
	Text     string `                   help:"Inline LG text to evaluate instead of a template."          short:"t"`
}

// Run executes the eval command.
func (e *Eval) Run(ctx context.Context, g *Globals) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if e.Template == "" && e.Text == "" {
		return ErrNoTarget.With(slog.String("command", "eval"))
	}

	t, scope, opts, err := prepare(ctx, g, e.Source, e.ScopeFlags)
	if err != nil {
		return err
	}

	var result any

	if e.Text != "" {
		result, err = t.EvaluateText(ctx, e.Text, scope, opts...)
	} else {
		result, err = t.Evaluate(ctx, e.Template, scope, opts...)
	}

	if err != nil {
		return lang.WrapError(err).
			With(
				slog.String("command", "eval"),
				slog.String("template", e.Template),
			)
	}

	return g.encode(ctx, result)
}

// prepare loads the source, the scope, and the evaluation options shared by
// eval, expand, and repl.
func prepare(
	ctx context.Context,
	g *Globals,
	source string,
	flags ScopeFlags,
) (*lang.Templates, map[string]any, []lang.EvalOption, error) {
	t, err := g.load(ctx, source)
	if err != nil {
		return nil, nil, nil, err
	}

	scope, err := flags.build(g.stdin())
	if err != nil {
		return nil, nil, nil, err
	}

	opts, err := g.evalOptions()
	if err != nil {
		return nil, nil, nil, err
	}

	return t, scope, opts, nil
}
