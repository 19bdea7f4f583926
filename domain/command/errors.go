package command

import "errors"

// Domain errors for command parsing.
var (
	// ErrEmpty indicates an empty or whitespace-only command line.
	ErrEmpty = errors.New("empty command")

	// ErrUnparsable indicates the shell lexer rejected the command line.
	ErrUnparsable = errors.New("unparsable command")
)
