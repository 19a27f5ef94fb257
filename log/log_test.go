package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true

	os.Exit(m.Run())
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()

	var m map[string]any

	err := json.Unmarshal([]byte(line), &m)
	if err != nil {
		t.Fatalf("decode error: %v (%q)", err, line)
	}

	return m
}

func TestMake_Defaults(t *testing.T) {
	l := Make(nil)

	if l.Level() != DefaultLevel || l.Format() != DefaultFormat {
		t.Errorf("unexpected defaults: %s %s", l.Level(), l.Format())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithLevel(LevelWarn), WithPretty(false))

	l.Trace("trace")
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	if got := decodeLine(t, lines[0])["level"]; got != "WARN" {
		t.Errorf("expected WARN, got %v", got)
	}
}

func TestLogger_TraceLevelName(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithLevel(LevelTrace), WithPretty(false))
	l.TraceContext(t.Context(), "parse complete", slog.String("id", "a.lg"))

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["level"] != "TRACE" || m["msg"] != "parse complete" || m["id"] != "a.lg" {
		t.Errorf("unexpected record %v", m)
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatText), WithPretty(false), WithTimeLayout("none"))
	l.Info("evaluated", slog.String("name", "Greeting"))

	got := strings.TrimSpace(buf.String())
	if got != "level=INFO msg=evaluated name=Greeting" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestLogger_TimeLayout(t *testing.T) {
	tests := []struct {
		layout string
		check  func(string) bool
	}{
		{"none", func(s string) bool { return s == "" }},
		{"", func(s string) bool { return s == "" }},
		{"RFC3339Nano", func(s string) bool {
			_, err := time.Parse(time.RFC3339Nano, s)

			return err == nil
		}},
		{"2006", func(s string) bool { return len(s) == 4 }},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			var buf bytes.Buffer

			l := Make(&buf, WithTimeLayout(tt.layout), WithPretty(false))
			l.Info("x")

			ts, _ := decodeLine(t, strings.TrimSpace(buf.String()))["time"].(string)
			if !tt.check(ts) {
				t.Errorf("unexpected timestamp %q", ts)
			}
		})
	}
}

func TestLogger_Caller(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithCaller(true), WithPretty(false))
	l.Info("here")

	src, ok := decodeLine(t, strings.TrimSpace(buf.String()))["source"].(map[string]any)
	if !ok {
		t.Fatalf("expected source, got %s", buf.String())
	}

	if file, _ := src["file"].(string); !strings.HasSuffix(file, "log_test.go") {
		t.Errorf("expected caller in log_test.go, got %v", src["file"])
	}
}

func TestLogger_WithAndWrap(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithPretty(false)).With(slog.String("component", "lang"))
	l.Info("one")

	if got := decodeLine(t, strings.TrimSpace(buf.String()))["component"]; got != "lang" {
		t.Errorf("expected component attribute, got %v", got)
	}

	buf.Reset()

	w := l.Wrap(WithLevel(LevelError))
	w.Warn("dropped")
	w.Error("kept")

	if w.Level() != LevelError || strings.Contains(buf.String(), "dropped") {
		t.Errorf("unexpected output %q", buf.String())
	}

	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected error record, got %q", buf.String())
	}
}

func TestLogger_ZeroValue(t *testing.T) {
	var l Logger

	l.Trace("nothing")
	l.Error("nothing")
	l = l.With(slog.Int("n", 1)).WithGroup("g")

	if l.Enabled(t.Context(), LevelError) {
		t.Error("zero logger should not be enabled")
	}

	if l.Level() != DefaultLevel || l.Format() != DefaultFormat {
		t.Errorf("unexpected zero configuration %s %s", l.Level(), l.Format())
	}
}

func TestLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithPretty(false))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			l.Info("concurrent", slog.Int("i", i))
		})
	}

	wg.Wait()

	if n := strings.Count(buf.String(), "\n"); n != 20 {
		t.Errorf("expected 20 lines, got %d", n)
	}
}

func TestPrettyText(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatText), WithLevel(LevelTrace), WithTimeLayout("none")).
		With(slog.String("id", "a.lg")).
		WithGroup("call")

	l.Trace("evaluate",
		slog.String("name", "T"),
		slog.Bool("strict", false),
		slog.Int("depth", 2),
		slog.Any("missing", nil),
		slog.Group("opts", slog.String("style", "markdown")))

	want := "level=TRACE msg=evaluate id=a.lg call.name=T call.strict=false " +
		"call.depth=2 call.missing=null call.opts.style=markdown\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestPrettyBlock(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatJSON), WithTimeLayout("none"))
	l.Warn("slow", slog.Duration("took", time.Second), slog.Any("error", errors.New("boom")))

	want := "{\n  level: WARN,\n  msg: slow,\n  took: 1s,\n  error: boom\n}\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"info+2", Level(slog.LevelInfo + 2)},
		{"bogus", DefaultLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q): expected %s, got %s", tt.input, tt.want, got)
		}
	}

	var l Level
	if err := l.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat(" TEXT ") != FormatText || ParseFormat("json") != FormatJSON {
		t.Error("unexpected format parse")
	}

	if ParseFormat("xml") != DefaultFormat {
		t.Error("unknown format should yield the default")
	}

	var f Format
	if err := f.UnmarshalText([]byte("xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNames(t *testing.T) {
	if got := slices.Collect(Levels()); !slices.Equal(got, []string{"trace", "debug", "info", "warn", "error"}) {
		t.Errorf("unexpected levels %v", got)
	}

	if got := slices.Collect(Formats()); !slices.Equal(got, []string{"json", "text"}) {
		t.Errorf("unexpected formats %v", got)
	}
}

func TestPackageLogger(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })

	var buf bytes.Buffer

	SetDefault(Make(&buf, WithPretty(false), WithLevel(LevelDebug)))

	Debug("debug message", slog.String("key", "value"))
	InfoContext(t.Context(), "info message")
	Trace("hidden")

	out := buf.String()
	if !strings.Contains(out, `"msg":"debug message"`) || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("unexpected output %s", out)
	}

	if !strings.Contains(out, "info message") || strings.Contains(out, "hidden") {
		t.Errorf("unexpected output %s", out)
	}

	l := Config(WithLevel(LevelTrace))
	if l.Level() != LevelTrace || Default().Level() != LevelTrace {
		t.Error("Config should update the package-level logger")
	}
}
