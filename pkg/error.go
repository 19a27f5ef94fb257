package pkg

import "strings"

// Error is a list of independent failures, such as one per input file of a
// batch command. It is nil when nothing failed.
type Error []error

// MakeError collects the non-nil errors of errs.
// Nil is returned if every error is nil.
func MakeError(errs ...error) Error {
	var e Error

	for _, err := range errs {
		if err != nil {
			e = append(e, err)
		}
	}

	return e
}

// Error joins the messages of all errors with "; ".
func (e Error) Error() string {
	var sb strings.Builder

	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}

		sb.WriteString(err.Error())
	}

	return sb.String()
}

// Add appends err unless it is nil.
func (e Error) Add(err error) Error {
	if err == nil {
		return e
	}

	return append(e, err)
}

// Unwrap returns the contained errors, so [errors.Is] and [errors.As] match
// any of them.
func (e Error) Unwrap() []error {
	return e
}

// OrNil returns e as an error, or nil when e is empty.
func (e Error) OrNil() error {
	if len(e) == 0 {
		return nil
	}

	return e
}
