package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/lgen/lang"
)

// Expand prints every value a template can produce, one per line with the
// text encoding.
type Expand struct {
	ScopeFlags `embed:""`

	Source   string `arg:"" help:"LG source file or '-' for stdin."`
	Template string `arg:"" help:"Template to expand."`
}

// Run executes the expand command.
func (e *Expand) Run(ctx context.Context, g *Globals) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	t, scope, opts, err := prepare(ctx, g, e.Source, e.ScopeFlags)
	if err != nil {
		return err
	}

	values, err := t.Expand(ctx, e.Template, scope, opts...)
	if err != nil {
		return lang.WrapError(err).
			With(
				slog.String("command", "expand"),
				slog.String("template", e.Template),
			)
	}

	g.Logger.DebugContext(ctx, "expanded",
		slog.String("template", e.Template),
		slog.Int("count", len(values)))

	return g.encode(ctx, values)
}
