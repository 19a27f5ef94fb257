// Package cmd implements the lgen subcommands: eval, expand, analyze, check,
// fmt, repl, and init.
//
// Commands read LG sources with [lang.ParseFile], or from standard input when
// the source is "-", and write results with [lang.Encode]. Settings shared by
// every command are held in [Globals].
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the YAML configuration file.
	ConfigIdentifier = "config"
)
