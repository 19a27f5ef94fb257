// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// # Basic Usage
//
//	logger := log.Make(os.Stderr)
//	logger.Info("templates loaded", slog.Int("count", 12))
//	logger.Error("evaluation failed", slog.Any("error", err))
//
// # Configuration
//
// A [Logger] is configured once, at creation, with functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelTrace),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
// [Logger.Wrap] derives a logger with different options, and [Logger.With]
// one that adds attributes to every message.
//
// # Levels
//
// Five levels are supported: [LevelTrace], [LevelDebug], [LevelInfo],
// [LevelWarn], and [LevelError]. Trace is below slog's Debug level and is
// used for step-by-step parser and evaluator output.
//
// # Output
//
// [FormatJSON] and [FormatText] select slog's JSON and text handlers. With
// [WithPretty] enabled (the default) both are replaced by a colorized
// handler: text becomes unquoted key=value pairs and JSON becomes an
// indented block. Colors are disabled automatically when the output is not a
// terminal.
//
// # Zero Value
//
// The zero [Logger] discards everything, so libraries can accept a Logger
// without requiring one.
//
// # Package Logger
//
// The package-level functions ([Info], [Error], ...) write to the logger
// returned by [Default], which [Config] and [SetDefault] replace.
package log
