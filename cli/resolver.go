package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// loadConfig is a [kong.ConfigurationLoader] that reads a YAML configuration
// file.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(loadConfig, "/path/to/config.yaml")
//
// Keys name flags without the leading dashes. Nested mappings join their
// keys with "-", so both of these set --log-level:
//
//	log-level: debug
//
//	log:
//	  level: debug
//
// Underscores may be used in place of hyphens. Scalars are passed to kong as
// strings, and sequences are passed unchanged. An empty file yields an
// empty configuration.
//
// Command-line flags override config file values.
func loadConfig(r io.Reader) (kong.Resolver, error) {
	var doc map[string]any

	err := yaml.NewDecoder(r).Decode(&doc)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := make(config)
	cfg.flatten("", doc)

	return cfg, nil
}

// config implements [kong.Resolver] for flattened YAML configs.
type config map[string]any

// Validate implements [kong.Resolver].
func (config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (c config) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if value, ok := c[flag.Name]; ok {
		return value, nil
	}

	return nil, nil
}

// flatten stores each leaf of m in c, keyed by its path joined with "-".
func (c config) flatten(prefix string, m map[string]any) {
	for key, value := range m {
		key = strings.ReplaceAll(key, "_", "-")
		if prefix != "" {
			key = prefix + "-" + key
		}

		switch v := value.(type) {
		case map[string]any:
			c.flatten(key, v)

		case []any:
			// kong transcodes sequences into slice flags itself.
			c[key] = v

		case nil:

		default:
			c[key] = scalarString(v)
		}
	}
}

// scalarString formats v the way kong expects flag values on the command
// line.
func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
