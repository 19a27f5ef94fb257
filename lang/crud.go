package lang

import (
	"context"
	"log/slog"
	"strings"
)

// UpdateTemplate replaces the definition of the named template with a new
// name, parameter list, and body, then re-parses the source.
func (t *Templates) UpdateTemplate(
	ctx context.Context,
	name, newName string,
	params []string,
	body string,
) error {
	tpl, ok := t.definition(name)
	if !ok {
		return ErrTemplateNotExist.Wrapf("'", name, "'")
	}

	if newName != name {
		if _, taken := t.definition(newName); taken {
			return ErrTemplateExists.Wrapf("'", newName, "'")
		}
	}

	content, err := spliceLines(
		t.Content,
		tpl.Range.Start.Line-1,
		tpl.Range.End.Line-1,
		templateSource(newName, params, body, lineBreak(t.Content)),
	)
	if err != nil {
		return err
	}

	return t.reparse(ctx, "update", content)
}

// AddTemplate appends a new template to the source and re-parses it.
func (t *Templates) AddTemplate(
	ctx context.Context,
	name string,
	params []string,
	body string,
) error {
	if _, ok := t.definition(name); ok {
		return ErrTemplateExists.Wrapf("'", name, "'")
	}

	nl := lineBreak(t.Content)

	content := t.Content
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += nl
	}

	return t.reparse(ctx, "add", content+templateSource(name, params, body, nl))
}

// DeleteTemplate removes the named template from the source and re-parses
// it.
func (t *Templates) DeleteTemplate(ctx context.Context, name string) error {
	tpl, ok := t.definition(name)
	if !ok {
		return ErrTemplateNotExist.Wrapf("'", name, "'")
	}

	content, err := spliceLines(
		t.Content,
		tpl.Range.Start.Line-1,
		tpl.Range.End.Line-1,
		"",
	)
	if err != nil {
		return err
	}

	return t.reparse(ctx, "delete", content)
}

// definition returns the template defined by name in this source.
func (t *Templates) definition(name string) (*Template, bool) {
	for _, tpl := range t.Templates {
		if tpl.Name == name {
			return tpl, true
		}
	}

	return nil, false
}

// reparse replaces the parsed state of t with that of content. Templates,
// ranges, references, and diagnostics are all derived again.
func (t *Templates) reparse(ctx context.Context, op, content string) error {
	nt, err := parseContent(ctx, content, t.ID, t.opts)
	if err != nil {
		return err
	}

	err = resolveImports(ctx, nt)
	if err != nil {
		return err
	}

	nt.check(ctx)

	t.lookupMu.Lock()
	defer t.lookupMu.Unlock()

	t.Templates = nt.Templates
	t.Imports = nt.Imports
	t.References = nt.References
	t.Diagnostics = nt.Diagnostics
	t.Options = nt.Options
	t.Content = nt.Content
	t.settings = nt.settings
	t.programs = nt.programs
	t.lookup = nil

	t.logger().TraceContext(ctx, "templates rewritten",
		slog.String("id", t.ID),
		slog.String("operation", op),
		slog.Int("template_count", len(t.Templates)))

	return nil
}

// spliceLines replaces lines start through stop (0-based, inclusive) of
// content with replacement. An empty replacement removes the lines.
func spliceLines(content string, start, stop int, replacement string) (string, error) {
	lines := splitLines(content)

	if start < 0 || start > stop || stop >= len(lines) {
		return "", ErrIndexOutOfRange.With(
			slog.Int("start", start),
			slog.Int("stop", stop),
			slog.Int("line_count", len(lines)),
		)
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:start]...)

	if replacement != "" {
		out = append(out, strings.TrimSuffix(replacement, lineBreak(content)))
	}

	out = append(out, lines[stop+1:]...)

	return strings.Join(out, lineBreak(content)), nil
}

// templateSource renders a template definition. Body lines starting with
// '#' are turned into alternatives so they are not read as template names.
func templateSource(name string, params []string, body, nl string) string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(templateSignature(name, params))

	for _, line := range splitLines(body) {
		b.WriteString(nl)

		if trimmed := strings.TrimLeft(line, " \t"); strings.HasPrefix(trimmed, "#") {
			line = "- " + trimmed
		}

		b.WriteString(line)
	}

	return b.String() + nl
}

// lineBreak returns the line terminator used by content.
func lineBreak(content string) string {
	if strings.Contains(content, "\r\n") {
		return "\r\n"
	}

	return "\n"
}
