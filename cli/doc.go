// Package cli contains the command line interface for lgen.
//
// # Usage
//
//	lgen [flags] <command> [args]
//
// Without a command, the arguments are passed to eval:
//
//	lgen greeting.lg Welcome --var user.name=Ann
//
// # Commands
//
//   - eval: evaluate a template or inline text (--text)
//   - expand: list every expansion of a template
//   - analyze: report the variables and templates a template references
//   - check: report diagnostics, failing if any is an error
//   - fmt: print sources in canonical form, or rewrite them with -w
//   - repl: interactive session with completion and history
//   - init: write the current flags to the configuration file
//
// # Configuration
//
// Flags may be set in a YAML file named config.yaml in the user
// configuration directory (for example ~/.config/lgen/config.yaml). Nested
// mappings join their keys with "-":
//
//	encoding: json
//	strict: true
//	log:
//	  level: debug
//	  pretty: false
//
// Command-line flags override config file values. The init command writes
// the file from the flags given on its command line.
//
// # Logging Options
//
//   - --log-level: minimum log level (trace, debug, info, warn, error)
//   - --log-format: log output format (json, text)
//   - --log-time: timestamp layout (a Go layout, a named layout such as
//     RFC3339 or Kitchen, or none)
//   - --log-caller: include caller information
//   - --log-pretty: colorized output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o lgen .
//
//   - --pprof-mode: enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: profile output directory (default ~/.cache/lgen/pprof)
package cli
