package lang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Output encodings accepted by [Encode].
const (
	EncodingText = "text"
	EncodingJSON = "json"
	EncodingYAML = "yaml"
)

// Encodings lists the names accepted by [Encode].
var Encodings = []string{EncodingText, EncodingJSON, EncodingYAML}

// Stringify renders a value the way it appears when concatenated into text.
// A nil value renders as "null"; objects and lists render as JSON.
func Stringify(v any) string { return stringify(v) }

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}

	return fmt.Sprint(v)
}

// truthy reports whether a condition value selects its branch: anything
// but null, false, and numeric zero.
func truthy(v any) bool {
	if v == nil {
		return false
	}

	if b, ok := v.(bool); ok {
		return b
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	default:
		return true
	}
}

// Encode writes v to w in the named encoding. An indent of zero selects the
// compact form of JSON and YAML.
//
// The text encoding writes one line per diagnostic or expanded value, and
// [Stringify] for anything else.
func Encode(ctx context.Context, w io.Writer, v any, encoding string, indent int) error {
	switch strings.ToLower(encoding) {
	case EncodingJSON:
		return encodeJSON(w, v, indent)
	case EncodingYAML:
		return encodeYAML(ctx, w, v, indent)
	case EncodingText, "":
		return encodeText(w, v)
	default:
		return ErrInvalidOption.Wrapf("unknown encoding '", encoding, "'")
	}
}

func encodeJSON(w io.Writer, v any, indent int) error {
	var (
		data []byte
		err  error
	)

	if indent > 0 {
		data, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

func encodeYAML(ctx context.Context, w io.Writer, v any, indent int) error {
	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts, yaml.Indent(indent))
	} else {
		opts = append(opts, yaml.Flow(true))
	}

	data, err := yaml.MarshalContext(ctx, v, opts...)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, string(data))

	return err
}

func encodeText(w io.Writer, v any) error {
	switch x := v.(type) {
	case []*Diagnostic:
		for _, d := range x {
			if _, err := fmt.Fprintln(w, d.String()); err != nil {
				return err
			}
		}

		return nil

	case []any:
		for _, item := range x {
			if _, err := fmt.Fprintln(w, stringify(item)); err != nil {
				return err
			}
		}

		return nil

	case *AnalyzerResult:
		return x.writeText(w)

	default:
		_, err := fmt.Fprintln(w, stringify(v))

		return err
	}
}

func (r *AnalyzerResult) writeText(w io.Writer) error {
	sections := []struct {
		title string
		items []string
	}{
		{"variables", r.Variables},
		{"templates", r.TemplateReferences},
	}

	for _, s := range sections {
		if _, err := fmt.Fprintln(w, s.title+":"); err != nil {
			return err
		}

		for _, item := range s.items {
			if _, err := fmt.Fprintln(w, "  "+item); err != nil {
				return err
			}
		}
	}

	return nil
}

// Format writes the source of t in canonical LG syntax: imports first, then
// option lines, then each template separated by a blank line.
func (t *Templates) Format(_ context.Context, w io.Writer) error {
	var b strings.Builder

	for _, imp := range t.Imports {
		b.WriteString("[" + imp.Description + "](" + imp.ID + ")\n")
	}

	for _, opt := range t.Options {
		b.WriteString("> !# " + opt + "\n")
	}

	for i, tpl := range t.Templates {
		if i > 0 || b.Len() > 0 {
			b.WriteByte('\n')
		}

		b.WriteString("# " + tpl.Signature() + "\n")

		if body := strings.TrimRight(tpl.Body, " \t\r\n"); body != "" {
			b.WriteString(body)
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())

	return err
}
