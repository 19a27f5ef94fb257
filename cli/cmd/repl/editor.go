package repl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/lgen/lang"
	"github.com/ardnew/lgen/log"
)

const defaultEditor = "vi"

// editTemplatesCommand implements [tea.ExecCommand] for the edit-parse-retry
// loop. It writes the current source to a temp file, opens the user's
// editor, and re-parses the result. When the edited source has errors the
// user is prompted to re-edit; declining exits the program.
type editTemplatesCommand struct {
	templates *lang.Templates
	ctxFunc   func() context.Context
	edited    *lang.Templates
	logger    log.Logger
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
}

// SetStdin sets the stdin reader for the command.
func (c *editTemplatesCommand) SetStdin(r io.Reader) { c.stdin = r }

// SetStdout sets the stdout writer for the command.
func (c *editTemplatesCommand) SetStdout(w io.Writer) { c.stdout = w }

// SetStderr sets the stderr writer for the command.
func (c *editTemplatesCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit-parse-retry loop. It returns [ErrEditDeclined] if
// the user declines to fix a broken source.
func (c *editTemplatesCommand) Run() error {
	ctx := c.ctxFunc()

	content, err := sourceText(ctx, c.templates)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(os.TempDir(), "lgen-repl-*.lg")
	if err != nil {
		return err
	}

	tmpPath := f.Name()

	defer os.Remove(tmpPath)

	if err := f.Chmod(0o600); err != nil {
		f.Close()

		return err
	}

	f.Close()

	for {
		if err := os.WriteFile(tmpPath, []byte(content), 0o600); err != nil {
			return err
		}

		data, err := runEditor(ctx, c.stdin, c.stdout, c.stderr, tmpPath)
		if err != nil {
			return err
		}

		// A cleared file cancels the edit.
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}

		edited, parseErr := reparse(ctx, string(data), c.templates.ID, c.logger)

		c.logger.TraceContext(
			ctx,
			"editor parse attempt",
			slog.Int("content_length", len(data)),
			slog.Bool("success", parseErr == nil),
		)

		if parseErr == nil {
			c.edited = edited

			return nil
		}

		fmt.Fprintf(c.stderr, "\n%s\n", parseErr)
		fmt.Fprintf(c.stdout, "Re-edit? [Y/n] ")

		if !confirm(c.stdin) {
			return ErrEditDeclined
		}

		content = string(data)
	}
}

// sourceText returns the text of t to edit: its original content, or the
// canonical form when t was not parsed from text.
func sourceText(ctx context.Context, t *lang.Templates) (string, error) {
	if t.Content != "" {
		return t.Content, nil
	}

	var buf bytes.Buffer

	err := t.Format(ctx, &buf)
	if err != nil {
		return "", fmt.Errorf("format source: %w", err)
	}

	return buf.String(), nil
}

// reparse parses edited content under id. Content with Error diagnostics
// is rejected with every error listed.
func reparse(
	ctx context.Context,
	content, id string,
	logger log.Logger,
) (*lang.Templates, error) {
	t, err := lang.Parse(ctx, content, id, lang.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	errs := lang.Errors(t.AllDiagnostics())
	if len(errs) == 0 {
		return t, nil
	}

	lines := make([]string, len(errs))
	for i, d := range errs {
		lines[i] = d.String()
	}

	return nil, fmt.Errorf("%w:\n%s", ErrInvalidSource, strings.Join(lines, "\n"))
}

// confirm reads a yes/no answer from r. Anything but "n" or "no" is yes;
// end of input is no.
func confirm(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return false
	}

	switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
	case "n", "no":
		return false
	default:
		return true
	}
}

// runEditor launches the user's editor on path and returns the edited file
// content.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	path string,
) ([]byte, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("editor %q: %w", editor, err)
	}

	return os.ReadFile(path)
}
