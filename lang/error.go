package lang

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrParse             = NewError("parse failed")
	ErrReadInput         = NewError("failed to read input")
	ErrDiagnostics       = NewError("templates contain errors")
	ErrImportResolve     = NewError("failed to resolve import")
	ErrImportLoop        = NewError("import loop detected")
	ErrTemplateNotExist  = NewError("template does not exist")
	ErrTemplateExists    = NewError("template already exists")
	ErrDuplicateTemplate = NewError("duplicate template definition")
	ErrLoopDetected      = NewError("loop detected")
	ErrArgumentMismatch  = NewError("argument count mismatch")
	ErrExprCompile       = NewError("expression compilation failed")
	ErrExprEvaluate      = NewError("expression evaluation failed")
	ErrNullExpression    = NewError("expression evaluated to null")
	ErrReadOnlyScope     = NewError("scope is read-only")
	ErrIndexOutOfRange   = NewError("index out of range")
	ErrInvalidOption     = NewError("invalid option")
	ErrInvalidArgument   = NewError("invalid argument")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	attrs []slog.Attr // Attributes for structured logging
	base  *Error      // Sentinel this error was derived from
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	// Build error message using the first available format,
	// depending on which fields are set:
	//
	//   1. "<msg>: <err>" // base and wrapped error both set
	//   2. "<msg>"        // wrapped error is nil
	//   3. "<err>"        // base error message is empty
	//   4. ""             // no fields are set
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel e was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e == t || (e.base != nil && e.base == t.root())
}

func (e *Error) root() *Error {
	if e.base != nil {
		return e.base
	}

	return e
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		attrs: e.attrs, // Share attrs
		base:  e.root(),
	}
}

// Wrapf creates a new Error wrapping a message built from the given parts.
func (e *Error) Wrapf(parts ...string) *Error {
	return e.Wrap(errors.New(strings.Join(parts, "")))
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
		base:  e.root(),
	}
}

// ParseError reports an unrecoverable lexer failure.
type ParseError struct {
	Source  string // The original source input
	ID      string // Source identifier
	Message string
	Line    int // 1-based
	Column  int // 1-based
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var buf strings.Builder

	buf.WriteString("parse error")

	if e.ID != "" {
		buf.WriteString(" in ")
		buf.WriteString(e.ID)
	}

	buf.WriteString(" at line ")
	buf.WriteString(strconv.Itoa(e.Line))
	buf.WriteString(", column ")
	buf.WriteString(strconv.Itoa(e.Column))
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	buf.WriteRune('\n')
	buf.WriteString(e.snippet())

	return buf.String()
}

// Unwrap lets errors.Is match [ErrParse].
func (e *ParseError) Unwrap() error { return ErrParse }

// snippet shows the offending line with a marker under the column.
func (e *ParseError) snippet() string {
	lines := strings.Split(e.Source, "\n")
	if e.Line <= 0 || e.Line > len(lines) {
		return ""
	}

	var src strings.Builder

	src.WriteString("  ")
	src.WriteString(strconv.Itoa(e.Line))
	src.WriteString(" | ")
	src.WriteString(strings.ToValidUTF8(lines[e.Line-1], "?"))
	src.WriteRune('\n')

	// +5 accounts for: 2 leading spaces + " | " (3 chars)
	padding := strings.Repeat(" ", len(strconv.Itoa(e.Line))+5)
	if e.Column > 0 {
		padding += strings.Repeat(" ", e.Column-1)
	}

	src.WriteString(padding + "^\n")

	return src.String()
}
