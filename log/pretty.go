package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Colors of the pretty handler. They honor [color.NoColor], which is set
// when the output is not a terminal or NO_COLOR is present.
var (
	keyColor      = color.New(color.FgHiBlack)
	stringColor   = color.New(color.FgCyan)
	numberColor   = color.New(color.FgYellow)
	trueColor     = color.New(color.FgGreen)
	falseColor    = color.New(color.FgRed)
	durationColor = color.New(color.FgMagenta)
	timeColor     = color.New(color.FgBlue)
	nullColor     = color.New(color.FgHiBlack)
)

func levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return color.New(color.FgGreen)
	case level >= slog.LevelDebug:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgMagenta)
	}
}

// prettyHandler writes colorized records, either as one line of key=value
// pairs or as an indented JSON-like block.
type prettyHandler struct {
	opts       *slog.HandlerOptions
	formatTime FormatTime
	mu         *sync.Mutex
	w          io.Writer
	block      bool
	attrs      []slog.Attr // attributes from WithAttrs, keys qualified
	prefix     string      // group prefix for later attributes
}

func newPrettyHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	formatTime FormatTime,
	block bool,
) *prettyHandler {
	return &prettyHandler{
		opts:       opts,
		formatTime: formatTime,
		mu:         &sync.Mutex{},
		w:          w,
		block:      block,
	}
}

// Enabled implements slog.Handler.
func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}

	return level >= minLevel
}

// WithAttrs implements slog.Handler.
func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], qualify(h.prefix, attrs)...)

	return &c
}

// WithGroup implements slog.Handler.
func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.prefix = h.prefix + name + "."

	return &c
}

// Handle implements slog.Handler.
func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs()+4)

	if !r.Time.IsZero() && h.formatTime != nil {
		if ts := h.formatTime(r.Time); ts != "" {
			fields = append(fields, slog.Time(slog.TimeKey, r.Time))
		}
	}

	fields = append(fields, slog.Any(slog.LevelKey, r.Level))

	if h.opts.AddSource {
		if src := r.Source(); src != nil {
			fields = append(fields, slog.String(slog.SourceKey, src.File+":"+strconv.Itoa(src.Line)))
		}
	}

	fields = append(fields, slog.String(slog.MessageKey, r.Message))
	fields = append(fields, h.attrs...)

	var own []slog.Attr

	r.Attrs(func(a slog.Attr) bool {
		own = append(own, a)

		return true
	})

	fields = append(fields, qualify(h.prefix, own)...)

	buf := new(bytes.Buffer)
	if h.block {
		h.writeBlock(buf, fields)
	} else {
		h.writeLine(buf, fields)
	}

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

// qualify resolves attrs and flattens groups into dotted keys.
func qualify(prefix string, attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))

	for _, a := range attrs {
		a.Value = a.Value.Resolve()

		if a.Equal(slog.Attr{}) {
			continue
		}

		if a.Value.Kind() == slog.KindGroup {
			sub := prefix
			if a.Key != "" {
				sub += a.Key + "."
			}

			out = append(out, qualify(sub, a.Value.Group())...)

			continue
		}

		a.Key = prefix + a.Key
		out = append(out, a)
	}

	return out
}

func (h *prettyHandler) writeLine(buf *bytes.Buffer, fields []slog.Attr) {
	for i, a := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(keyColor.Sprint(a.Key))
		buf.WriteByte('=')
		buf.WriteString(h.value(a.Value))
	}
}

func (h *prettyHandler) writeBlock(buf *bytes.Buffer, fields []slog.Attr) {
	buf.WriteString("{\n")

	for i, a := range fields {
		buf.WriteString("  ")
		buf.WriteString(keyColor.Sprint(a.Key))
		buf.WriteString(": ")
		buf.WriteString(h.value(a.Value))

		if i < len(fields)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	buf.WriteByte('}')
}

// value renders v unquoted in the color of its kind.
func (h *prettyHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return stringColor.Sprint(v.String())

	case slog.KindInt64:
		return numberColor.Sprint(strconv.FormatInt(v.Int64(), 10))

	case slog.KindUint64:
		return numberColor.Sprint(strconv.FormatUint(v.Uint64(), 10))

	case slog.KindFloat64:
		return numberColor.Sprint(strconv.FormatFloat(v.Float64(), 'g', -1, 64))

	case slog.KindBool:
		if v.Bool() {
			return trueColor.Sprint("true")
		}

		return falseColor.Sprint("false")

	case slog.KindDuration:
		return durationColor.Sprint(v.Duration().String())

	case slog.KindTime:
		if h.formatTime == nil {
			return timeColor.Sprint(v.Time().String())
		}

		return timeColor.Sprint(h.formatTime(v.Time()))

	case slog.KindAny:
		switch x := v.Any().(type) {
		case slog.Level:
			return levelColor(x).Sprint(strings.ToUpper(Level(x).String()))
		case nil:
			return nullColor.Sprint("null")
		case error:
			return falseColor.Sprint(x.Error())
		default:
			return stringColor.Sprint(fmt.Sprint(x))
		}

	default:
		return stringColor.Sprint(v.String())
	}
}
