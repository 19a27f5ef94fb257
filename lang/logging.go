package lang

import (
	"context"
	"log/slog"
	"reflect"
	"sort"

	"github.com/ardnew/lgen/log"
)

func sortedKeys[T any](m map[string]T) []string {
	if len(m) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func resultTypeName(value any) string {
	if value == nil {
		return "nil"
	}

	return reflect.TypeOf(value).String()
}

// traceCall logs a top-level call. The scope keys are only collected when
// trace logging is enabled.
func (ev *evaluator) traceCall(ctx context.Context, msg, name string, s *Scope) {
	if !ev.logger.Enabled(ctx, log.LevelTrace) {
		return
	}

	names := make(map[string]struct{}, len(s.global)+len(s.local))
	for key := range s.global {
		names[key] = struct{}{}
	}

	for key := range s.local {
		names[key] = struct{}{}
	}

	ev.logger.TraceContext(ctx, msg,
		slog.String("name", name),
		slog.Any("scope_keys", sortedKeys(names)),
		slog.Bool("strict", ev.opts.StrictMode),
		slog.String("line_break_style", ev.opts.LineBreakStyle.String()),
	)
}
