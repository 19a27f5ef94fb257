package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/lgen/lang"
	"github.com/ardnew/lgen/pkg"
)

// Fmt prints sources in canonical LG syntax: imports, then option lines,
// then templates separated by blank lines.
type Fmt struct {
	Sources []string `arg:"" help:"LG source files or '-' for stdin."                                              default:"-"`
	Write   bool     `       help:"Write the result to the source file instead of stdout."                                     short:"w"`
	Model   bool     `       help:"Print the parsed template model in the output encoding instead of LG source."`
}

// Run executes the fmt command. Sources with Error diagnostics are left
// untouched and reported.
func (f *Fmt) Run(ctx context.Context, g *Globals) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	var failed pkg.Error

	for _, src := range uniqueSources(f.Sources) {
		failed = failed.Add(f.format(ctx, g, src))
	}

	return failed.OrNil()
}

func (f *Fmt) format(ctx context.Context, g *Globals, src string) error {
	t, err := g.load(ctx, src)
	if err != nil {
		return err
	}

	if errs := lang.Errors(t.Diagnostics); len(errs) > 0 {
		return ErrFormat.
			With(slog.String("source", src), slog.Int("errors", len(errs))).
			Wrap(lang.ErrDiagnostics)
	}

	if f.Model {
		return g.encode(ctx, t)
	}

	var buf bytes.Buffer

	err = t.Format(ctx, &buf)
	if err != nil {
		return ErrFormat.With(slog.String("source", src)).Wrap(err)
	}

	if !f.Write || src == stdinSource {
		_, err = g.stdout().Write(buf.Bytes())

		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return ErrFormat.With(slog.String("source", src)).Wrap(err)
	}

	if t.Content == buf.String() {
		return nil
	}

	g.Logger.DebugContext(ctx, "rewrite source", slog.String("path", src))

	err = os.WriteFile(src, buf.Bytes(), info.Mode().Perm())
	if err != nil {
		return ErrFormat.With(slog.String("source", src)).Wrap(err)
	}

	return nil
}
