package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"github.com/ardnew/lgen/lang"
	"github.com/ardnew/lgen/pkg"
)

// Check reports the diagnostics of one or more sources and their imports.
type Check struct {
	Sources  []string `arg:"" help:"LG source files or '-' for stdin."                                default:"-"`
	Warnings bool     `       help:"Report warnings and lower severities along with errors." default:"true" negatable:""`
}

// Diagnostic colors of the text encoding. They honor [color.NoColor].
var severityColor = map[lang.Severity]*color.Color{
	lang.SeverityError:       color.New(color.FgRed, color.Bold),
	lang.SeverityWarning:     color.New(color.FgYellow),
	lang.SeverityInformation: color.New(color.FgCyan),
	lang.SeverityHint:        color.New(color.FgHiBlack),
}

// Run executes the check command. It fails when any source cannot be loaded
// or has Error diagnostics.
func (c *Check) Run(ctx context.Context, g *Globals) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	var (
		failed pkg.Error
		diags  []*lang.Diagnostic
	)

	seen := make(map[*lang.Diagnostic]struct{})

	for _, src := range uniqueSources(c.Sources) {
		t, err := g.load(ctx, src)
		if err != nil {
			failed = failed.Add(err)

			continue
		}

		for _, d := range t.AllDiagnostics() {
			if _, ok := seen[d]; ok {
				continue
			}

			seen[d] = struct{}{}

			if c.Warnings || d.Severity == lang.SeverityError {
				diags = append(diags, d)
			}
		}
	}

	if g.Encoding == lang.EncodingText || g.Encoding == "" {
		err = writeDiagnostics(g.stdout(), diags)
	} else {
		err = g.encode(ctx, diags)
	}

	if err != nil {
		return err
	}

	if n := len(lang.Errors(diags)); n > 0 {
		failed = failed.Add(ErrCheckFailed.With(slog.Int("errors", n)).
			Wrap(fmt.Errorf("%d error(s)", n)))
	}

	return failed.OrNil()
}

// writeDiagnostics writes one colored line per diagnostic.
func writeDiagnostics(w io.Writer, diags []*lang.Diagnostic) error {
	for _, d := range diags {
		c, ok := severityColor[d.Severity]
		if !ok {
			c = color.New(color.Reset)
		}

		if _, err := c.Fprintln(w, d.String()); err != nil {
			return err
		}
	}

	return nil
}
