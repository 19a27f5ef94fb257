package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/lgen/lang"
)

// Analyze prints the variables and templates a template depends on.
type Analyze struct {
	Source   string `arg:"" help:"LG source file or '-' for stdin."`
	Template string `arg:"" help:"Template to analyze."`
}

// Run executes the analyze command.
func (a *Analyze) Run(ctx context.Context, g *Globals) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	t, err := g.load(ctx, a.Source)
	if err != nil {
		return err
	}

	result, err := t.Analyze(ctx, a.Template)
	if err != nil {
		return lang.WrapError(err).
			With(
				slog.String("command", "analyze"),
				slog.String("template", a.Template),
			)
	}

	return g.encode(ctx, result)
}
