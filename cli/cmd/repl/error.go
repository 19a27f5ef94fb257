package repl

import "errors"

// Sentinel errors.
var (
	ErrNoSource      = errors.New("no source loaded")
	ErrInvalidSource = errors.New("source contains errors")
	ErrOutOfBounds   = errors.New("index out of range")
	ErrEditDeclined  = errors.New("decline edit")
	ErrNoTemplate    = errors.New("template name required")
	ErrUnknownCmd    = errors.New("unknown command")
)
