package lang

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ardnew/lgen/log"
)

func TestEvaluate_TraceScopeKeys(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		want  bool
	}{
		{"trace", log.LevelTrace, true},
		{"debug", log.LevelDebug, false},
		{"info", log.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := log.Make(&buf,
				log.WithLevel(tt.level),
				log.WithFormat(log.FormatJSON),
				log.WithPretty(false),
			)

			tpls := mustParse(t, "# T\n- ${y}", WithLogger(logger))

			scope := map[string]any{"y": 2, "z": 3}

			result, err := tpls.Evaluate(t.Context(), "T", scope)
			if err != nil {
				t.Fatalf("evaluate error: %v", err)
			}

			if result != 2 {
				t.Errorf("expected 2, got %v", result)
			}

			values, err := tpls.Expand(t.Context(), "T", scope)
			if err != nil {
				t.Fatalf("expand error: %v", err)
			}

			if len(values) != 1 {
				t.Errorf("expected one expansion, got %v", values)
			}

			out := buf.String()

			for _, msg := range []string{`"msg":"evaluate"`, `"msg":"expand"`} {
				if got := strings.Contains(out, msg); got != tt.want {
					t.Errorf("%s logged = %v, want %v", msg, got, tt.want)
				}
			}

			if got := strings.Contains(out, `"scope_keys":["y","z"]`); got != tt.want {
				t.Errorf("scope_keys logged = %v, want %v:\n%s", got, tt.want, out)
			}
		})
	}
}
