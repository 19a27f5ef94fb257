package lang

import (
	"errors"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/lgen/log"
)

// compileMode selects how an expression is compiled.
type compileMode int

const (
	modeEvaluate compileMode = iota
	modeExpand                // root template calls enumerate alternatives
)

// compiler turns expression source into programs that can be run against
// any scope. Programs are cached per source text.
type compiler struct {
	programs  *programCache
	templates map[string]*Template
	logger    log.Logger
}

// compile returns the program for src, compiling it on first use.
func (c *compiler) compile(src string, mode compileMode) (*vm.Program, error) {
	key := src
	if mode == modeExpand {
		key = expandRoot + "\x00" + src
	}

	if program, ok := c.programs.load(key); ok {
		return program, nil
	}

	text := rewriteForced(src)
	bound := make(letNames)
	options := []expr.Option{
		expr.Env(hostEnv(mode)),
		expr.AllowUndefinedVariables(),
		expr.Patch(&templateCallPatcher{templates: c.templates, logger: c.logger}),
		expr.Patch(bound),
		expr.Patch(&scopePathPatcher{bound: bound}),
		expr.Patch(nilSafePatcher{}),
	}

	if mode == modeExpand {
		text = expandRoot + "(" + text + ")"
		options = append(options, expr.Patch(expandRootPatcher{}))
	}

	program, err := expr.Compile(text, options...)
	if err != nil {
		if mode == modeExpand {
			// Not a single expression (e.g. a let sequence); expand it as a
			// plain value.
			return c.compile(src, modeEvaluate)
		}

		return nil, ErrExprCompile.Wrap(errors.New(exprMessage(err))).
			With(slog.String("source", src))
	}

	c.logger.Trace("expression compiled",
		slog.String("source", src),
		slog.Bool("expand", mode == modeExpand))

	return c.programs.store(key, program), nil
}

// exprMessage returns the message of an expr-lang error without its
// source snippet.
func exprMessage(err error) string {
	var fe *file.Error
	if errors.As(err, &fe) {
		return fe.Message
	}

	return err.Error()
}
