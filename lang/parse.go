package lang

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/klauspost/readahead"

	"github.com/ardnew/lgen/log"
)

// Option configures parsing and import resolution.
type Option func(*parseOptions)

type parseOptions struct {
	resolver Resolver
	cache    *Cache
	logger   log.Logger
}

// WithResolver sets the resolver used to load imported sources.
// The default is a [FileResolver].
func WithResolver(r Resolver) Option {
	return func(o *parseOptions) {
		o.resolver = r
	}
}

// WithCache shares parsed imports across multiple parses.
func WithCache(c *Cache) Option {
	return func(o *parseOptions) {
		o.cache = c
	}
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(o *parseOptions) {
		o.logger = logger
	}
}

func makeParseOptions(opts ...Option) parseOptions {
	var o parseOptions

	for _, opt := range opts {
		opt(&o)
	}

	if o.resolver == nil {
		o.resolver = FileResolver{}
	}

	return o
}

// Parse parses LG source content identified by id, resolves its imports,
// and runs the static checker.
//
// Recoverable problems are reported in [Templates.Diagnostics].
// An error is returned only for unreadable input or failed import resolution.
func Parse(
	ctx context.Context,
	content, id string,
	opts ...Option,
) (*Templates, error) {
	o := makeParseOptions(opts...)

	t, err := parseContent(ctx, content, id, o)
	if err != nil {
		return nil, err
	}

	err = resolveImports(ctx, t)
	if err != nil {
		return nil, err
	}

	t.check(ctx)

	return t, nil
}

// ParseReader parses LG source read from r.
func ParseReader(
	ctx context.Context,
	r io.Reader,
	id string,
	opts ...Option,
) (*Templates, error) {
	// Wrap reader with async read-ahead for concurrent I/O.
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("source", id))
	}

	return Parse(ctx, string(data), id, opts...)
}

// ParseFile parses the LG file at path.
// The absolute path is used as the source id.
func ParseFile(ctx context.Context, path string, opts ...Option) (*Templates, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("path", path))
	}

	content, err := readFile(abs)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("path", abs))
	}

	return Parse(ctx, content, abs, opts...)
}

// parseContent builds the template model of one source without resolving
// its imports.
func parseContent(
	ctx context.Context,
	content, id string,
	o parseOptions,
) (*Templates, error) {
	err := validateInput(content, id)
	if err != nil {
		return nil, err
	}

	t := &Templates{
		ID:       id,
		Content:  content,
		opts:     o,
		programs: newProgramCache(),
	}

	p := &parser{
		id:     id,
		lines:  splitLines(content),
		logger: o.logger,
	}

	p.parseFile(t)
	t.settings = parseSettings(t)

	p.logger.TraceContext(ctx, "parse complete",
		slog.String("id", id),
		slog.Int("template_count", len(t.Templates)),
		slog.Int("import_count", len(t.Imports)))

	return t, nil
}

// validateInput rejects content that is not valid UTF-8.
func validateInput(content, id string) error {
	if utf8.ValidString(content) {
		return nil
	}

	line, col := 1, 1

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if r == utf8.RuneError && size <= 1 {
			break
		}

		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}

		i += size
	}

	return &ParseError{
		Source:  content,
		ID:      id,
		Message: "invalid UTF-8 encoding",
		Line:    line,
		Column:  col,
	}
}

func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

var (
	importPattern = regexp.MustCompile(`^\s*\[([^\]]*)\]\(([^)]*)\)\s*$`)
	optionPattern = regexp.MustCompile(`^\s*>\s*!#\s*(.*?)\s*$`)

	namePattern  = regexp.MustCompile(`^[a-zA-Z_][0-9a-zA-Z_]*$`)
	paramPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// parser holds the file-level parser state.
type parser struct {
	id     string
	lines  []string
	logger log.Logger
}

// bodyLine is one raw line of a template body and its 1-based line number.
type bodyLine struct {
	text string
	line int
}

// pending collects the lines of a template definition being read.
type pending struct {
	header string
	line   int
	body   []bodyLine
}

// parseFile reads every line of the source, one construct at a time.
func (p *parser) parseFile(t *Templates) {
	var (
		cur     *pending
		inFence bool
	)

	finish := func() {
		if cur != nil {
			p.addTemplate(t, cur)
			cur = nil
		}
	}

	for i, raw := range p.lines {
		lineNo := i + 1

		if cur != nil && inFence {
			cur.body = append(cur.body, bodyLine{text: raw, line: lineNo})
			if strings.Count(raw, fence)%2 == 1 {
				inFence = false
			}

			continue
		}

		trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)

		switch {
		case strings.HasPrefix(trimmed, "#"):
			finish()

			cur = &pending{header: trimmed[1:], line: lineNo}

		case importPattern.MatchString(raw):
			finish()

			m := importPattern.FindStringSubmatch(raw)
			t.Imports = append(t.Imports, &Import{
				Description: m[1],
				ID:          trimSpace(m[2]),
				Range:       p.lineRange(lineNo),
			})

		case optionPattern.MatchString(raw):
			finish()

			m := optionPattern.FindStringSubmatch(raw)
			if m[1] != "" {
				t.Options = append(t.Options, m[1])
			}

		case cur != nil:
			cur.body = append(cur.body, bodyLine{text: raw, line: lineNo})
			if strings.Count(raw, fence)%2 == 1 {
				inFence = true
			}

		case isBlank(raw) || strings.HasPrefix(trimmed, ">"):
			// file-level blank or comment line

		default:
			t.Diagnostics = append(t.Diagnostics, NewDiagnostic(
				p.lineRange(lineNo),
				msgInvalidLine,
				SeverityError,
				p.id,
			))
		}
	}

	finish()
}

func (p *parser) lineRange(line int) Range {
	text := ""
	if line > 0 && line <= len(p.lines) {
		text = p.lines[line-1]
	}

	lead := utf8.RuneCountInString(text) -
		utf8.RuneCountInString(strings.TrimLeftFunc(text, unicode.IsSpace))

	return Range{
		Start:  Position{Line: line, Character: lead},
		End:    Position{Line: line, Character: utf8.RuneCountInString(text)},
		Source: p.id,
	}
}

// addTemplate builds a Template from its collected lines.
func (p *parser) addTemplate(t *Templates, pt *pending) {
	body := pt.body
	for len(body) > 0 && isBlank(body[len(body)-1].text) {
		body = body[:len(body)-1]
	}

	name, params, diags := p.parseHeader(pt)
	t.Diagnostics = append(t.Diagnostics, diags...)

	last := pt.line
	if len(body) > 0 {
		last = body[len(body)-1].line
	}

	tpl := &Template{
		Name:       name,
		Parameters: params,
		Range: Range{
			Start:  Position{Line: pt.line, Character: 0},
			End:    Position{Line: last, Character: utf8.RuneCountInString(p.lines[last-1])},
			Source: p.id,
		},
	}

	texts := make([]string, len(body))
	for i, l := range body {
		texts[i] = l.text
	}

	tpl.Body = strings.Join(texts, "\n")

	if isBlank(tpl.Body) {
		t.Diagnostics = append(t.Diagnostics, NewDiagnostic(
			p.lineRange(pt.line),
			templateMessage(name, msgNoTemplateBody),
			SeverityWarning,
			p.id,
		))
	} else {
		tpl.body = parseBody(body, p.id)

		for _, seg := range tpl.body.segments() {
			tpl.Expressions = append(tpl.Expressions, Expression{
				Text:  seg.display(),
				Range: seg.Range,
			})
		}
	}

	p.logger.Trace("template defined",
		slog.String("name", name),
		slog.Int("line", pt.line),
		slog.Int("parameter_count", len(params)))

	t.Templates = append(t.Templates, tpl)
}

// parseHeader splits a name line into the template name and parameters.
func (p *parser) parseHeader(pt *pending) (string, []string, []*Diagnostic) {
	var diags []*Diagnostic

	report := func(msg string) {
		diags = append(diags, NewDiagnostic(
			p.lineRange(pt.line), msg, SeverityError, p.id,
		))
	}

	header := trimSpace(pt.header)
	name := header

	var params []string

	if open := strings.IndexByte(header, '('); open >= 0 {
		name = trimSpace(header[:open])

		closing := strings.LastIndexByte(header, ')')
		switch {
		case closing < open:
			report(templateMessage(name, msgMissingParenthesis))
		case trimSpace(header[closing+1:]) != "":
			report(templateMessage(name, msgExtraTextAfterParams))
		}

		if closing > open {
			list := header[open+1 : closing]
			if trimSpace(list) != "" {
				for param := range strings.SplitSeq(list, ",") {
					param = trimSpace(param)
					if !paramPattern.MatchString(param) {
						report(templateMessage(name, msgInvalidParameter(param)))
					}

					params = append(params, param)
				}
			}
		}
	}

	if name == "" {
		report(msgMissingTemplateName)

		return name, params, diags
	}

	for segment := range strings.SplitSeq(name, ".") {
		if !namePattern.MatchString(segment) {
			report(msgInvalidTemplateName(name))

			break
		}
	}

	return name, params, diags
}
