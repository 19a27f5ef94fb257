package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/lgen/cli/cmd/repl"
)

// Repl starts an interactive session over an LG source.
type Repl struct {
	ScopeFlags `embed:""`

	Source string `arg:"" help:"LG source file." type:"existingfile"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context, g *Globals) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	t, scope, opts, err := prepare(ctx, g, r.Source, r.ScopeFlags)
	if err != nil {
		return err
	}

	var historyDir string
	if ktx := kongContextFrom(ctx); ktx != nil {
		historyDir = ktx.Model.Vars()[CacheIdentifier]
	}

	g.Logger.DebugContext(ctx, "starting repl",
		slog.String("source", t.ID),
		slog.String("history_dir", historyDir))

	return repl.Run(ctx, t, repl.Config{
		Scope:      scope,
		Options:    opts,
		HistoryDir: historyDir,
		Logger:     g.Logger,
	})
}
