package cmd

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ardnew/lgen/lang"
	"github.com/ardnew/lgen/log"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// Globals are the settings shared by every command. The CLI binds a pointer
// to them when running the selected command.
type Globals struct {
	Strict         *bool  `help:"Fail on null or failing expressions (overrides @strict)."                                negatable:""`
	ReplaceNull    string `help:"Replacement text for null expression results; $${path} expands to the expression."      placeholder:"TEXT"`
	LineBreakStyle string `help:"Line break style of string results (overrides @lineBreakStyle)."                         enum:",default,markdown" default:""`
	Seed           uint64 `help:"Seed used to pick alternatives; 0 picks randomly."`
	Encoding       string `help:"Output encoding."                                                                        enum:"text,json,yaml"    default:"text" short:"e"`
	Indent         int    `help:"Indent width of JSON and YAML output; 0 selects the compact form."                                                default:"2"`

	Logger log.Logger `kong:"-"`
	Stdin  io.Reader  `kong:"-"`
	Stdout io.Writer  `kong:"-"`

	cache *lang.Cache
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin == nil {
		return os.Stdin
	}

	return g.Stdin
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}

	return g.Stdout
}

// evalOptions converts the evaluation flags. Flags left unset do not
// override the option lines of the source.
func (g *Globals) evalOptions() ([]lang.EvalOption, error) {
	var opts []lang.EvalOption

	if g.Strict != nil {
		opts = append(opts, lang.WithStrictMode(*g.Strict))
	}

	if g.ReplaceNull != "" {
		text := g.ReplaceNull
		opts = append(opts, lang.WithNullSubstitution(func(expression string) any {
			return strings.ReplaceAll(text, "${path}", expression)
		}))
	}

	if g.LineBreakStyle != "" {
		style, err := lang.ParseLineBreakStyle(g.LineBreakStyle)
		if err != nil {
			return nil, err
		}

		opts = append(opts, lang.WithLineBreakStyle(style))
	}

	if g.Seed != 0 {
		opts = append(opts, lang.WithRandom(rand.New(rand.NewPCG(g.Seed, g.Seed))))
	}

	return opts, nil
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// load parses the LG source at path, or standard input when path is "-".
// Imports are shared through one cache for the lifetime of g.
func (g *Globals) load(ctx context.Context, path string) (*lang.Templates, error) {
	if g.cache == nil {
		g.cache = lang.NewCache()
	}

	opts := []lang.Option{
		lang.WithLogger(g.Logger),
		lang.WithCache(g.cache),
	}

	g.Logger.DebugContext(ctx, "load source", slog.String("path", path))

	if path == stdinSource {
		return lang.ParseReader(ctx, g.stdin(), "stdin", opts...)
	}

	return lang.ParseFile(ctx, path, opts...)
}

// encode writes v to standard output in the selected encoding.
func (g *Globals) encode(ctx context.Context, v any) error {
	return lang.Encode(ctx, g.stdout(), v, g.Encoding, g.Indent)
}

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks, absolute/relative paths, and
// special device files.
type fileKey struct {
	dev uint64
	ino uint64
}

// uniqueSources returns sources without duplicates, comparing files by
// device and inode after resolving symlinks. All occurrences of "-" collapse
// into one, placed last so stdin is read after every regular file. Paths
// that cannot be resolved are kept so that loading them reports the error.
func uniqueSources(sources []string) []string {
	out := make([]string, 0, len(sources))
	seen := make(map[fileKey]struct{})
	hasStdin := false

	for _, src := range sources {
		if src == stdinSource {
			hasStdin = true

			continue
		}

		key, ok := sourceKey(src)
		if !ok {
			out = append(out, src)

			continue
		}

		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, src)
	}

	if hasStdin {
		out = append(out, stdinSource)
	}

	return out
}

// sourceKey returns the identity of the file at path.
func sourceKey(path string) (fileKey, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fileKey{}, false
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fileKey{}, false
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fileKey{}, false
	}

	return makeFileKey(info)
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true //nolint:unconvert
}
