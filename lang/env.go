package lang

// This file defines the host functions available to LG expressions. The
// functions are closures over one evaluation, built per scope, so no state
// is shared between evaluations.

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Host function names.
const (
	fnTemplate           = "template"
	fnFromFile           = "fromFile"
	fnIsTemplate         = "isTemplate"
	fnActivityAttachment = "ActivityAttachment"
	fnExpandText         = "expandText"
	fnExpandTemplate     = "expandTemplate"

	// fnLookup resolves a dotted scope path. Calls to it are only
	// generated by scopePathPatcher.
	fnLookup = "__lookup"
)

// hostFunctions are the names callable from every expression.
var hostFunctions = []string{
	fnTemplate,
	fnFromFile,
	fnIsTemplate,
	fnActivityAttachment,
	fnExpandText,
}

// HostFunctions returns the names of the functions callable from every
// expression, in addition to the expression language builtins.
func HostFunctions() []string { return slices.Clone(hostFunctions) }

// hostFunc is the signature shared by all host functions.
type hostFunc = func(args ...any) (any, error)

// hostEnv returns the environment used to compile expressions. Only the
// host function names are declared; variables are resolved at run time.
func hostEnv(mode compileMode) map[string]any {
	stub := hostFunc(func(...any) (any, error) { return nil, nil })

	env := make(map[string]any, len(hostFunctions)+2)
	for _, name := range hostFunctions {
		env[name] = stub
	}

	env[fnLookup] = stub

	if mode == modeExpand {
		env[fnExpandTemplate] = stub
	}

	return env
}

// env returns the run-time environment for scope s.
func (ev *evaluator) env(s *Scope) map[string]any {
	if env, ok := ev.envs[s]; ok {
		return env
	}

	env := s.vars()

	env[fnLookup] = hostFunc(func(args ...any) (any, error) {
		path, _ := args[0].(string)
		v, _ := s.Get(path)

		return v, nil
	})

	env[fnTemplate] = hostFunc(func(args ...any) (any, error) {
		name, rest, err := templateArgs(fnTemplate, args)
		if err != nil {
			return nil, err
		}

		return ev.call(s, name, rest)
	})

	env[fnFromFile] = hostFunc(func(args ...any) (any, error) {
		return ev.fromFile(s, args)
	})

	env[fnIsTemplate] = hostFunc(func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, ErrInvalidArgument.Wrapf(fnIsTemplate, " expects 1 argument")
		}

		name, _ := args[0].(string)
		_, ok := ev.templates[name]

		return ok, nil
	})

	env[fnActivityAttachment] = hostFunc(func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, ErrInvalidArgument.Wrapf(fnActivityAttachment, " expects 2 arguments")
		}

		return map[string]any{
			lgTypeKey:     "attachment",
			"contenttype": args[1],
			"content":     args[0],
		}, nil
	})

	env[fnExpandText] = hostFunc(func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, ErrInvalidArgument.Wrapf(fnExpandText, " expects 1 argument")
		}

		text, ok := args[0].(string)
		if !ok {
			return args[0], nil
		}

		return ev.evalInline(s, text, scanText)
	})

	if ev.expander != nil {
		env[fnExpandTemplate] = hostFunc(func(args ...any) (any, error) {
			name, rest, err := templateArgs(fnTemplate, args)
			if err != nil {
				return nil, err
			}

			values, err := ev.expander.call(s, name, rest)

			return expansion(values), err
		})
	}

	ev.envs[s] = env

	return env
}

func templateArgs(fn string, args []any) (string, []any, error) {
	if len(args) == 0 {
		return "", nil, ErrInvalidArgument.Wrapf(fn, " expects a template name")
	}

	name, ok := args[0].(string)
	if !ok {
		return "", nil, ErrInvalidArgument.Wrapf(fn, " expects a template name")
	}

	return name, args[1:], nil
}

// Formats accepted by fromFile.
const (
	fileEvaluated = "evaluated"
	fileRaw       = "raw"
	fileBinary    = "binary"
)

// fromFile loads a file relative to the source of the current template.
// In the evaluated format, expressions in the content are substituted.
func (ev *evaluator) fromFile(s *Scope, args []any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, ErrInvalidArgument.Wrapf(fnFromFile, " expects 1 or 2 arguments")
	}

	path, ok := args[0].(string)
	if !ok {
		return nil, ErrInvalidArgument.Wrapf(fnFromFile, " expects a path")
	}

	format := fileEvaluated
	if len(args) == 2 {
		format, _ = args[1].(string)
		format = strings.ToLower(format)
	}

	if !filepath.IsAbs(path) {
		if tpl := ev.current(); tpl != nil && tpl.Source() != "" {
			path = filepath.Join(filepath.Dir(tpl.Source()), path)
		}
	}

	switch format {
	case fileBinary:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ErrReadInput.Wrap(err)
		}

		return data, nil

	case fileRaw, fileEvaluated:
		content, err := readFile(path)
		if err != nil {
			return nil, ErrReadInput.Wrap(err)
		}

		if format == fileRaw {
			return content, nil
		}

		return ev.evalInline(s, content, scanMultiline)

	default:
		return nil, ErrInvalidArgument.Wrapf("unknown ", fnFromFile, " format '", format, "'")
	}
}
