package classifier

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mattn/go-shellwords"

	"github.com/felixgeelhaar/toolgate/domain/command"
)

// operatorRunes are the runes the shell lexer stops at when unquoted.
const operatorRunes = ";&|<>"

// Line breaks separate commands just like ";".
var newlines = strings.NewReplacer("\r\n", ";", "\n", ";", "\r", ";")

// Parse tokenizes a command line and splits it into segments at shell
// control operators and redirections. Quoting and backslash escapes follow
// POSIX shell rules. Environment variables and command substitutions are
// left unexpanded.
func Parse(raw string) (command.Pipeline, error) {
	line := newlines.Replace(raw)
	if strings.TrimSpace(line) == "" {
		return command.Pipeline{}, command.ErrEmpty
	}

	var pipeline command.Pipeline
	rest := []rune(line)
	for len(rest) > 0 {
		parser := shellwords.NewParser()
		parser.ParseEnv = false
		parser.ParseBacktick = false

		args, err := parser.Parse(string(rest))
		if err != nil {
			return command.Pipeline{}, fmt.Errorf("%w: %v", command.ErrUnparsable, err)
		}
		if len(args) > 0 {
			pipeline.Segments = append(pipeline.Segments, command.Segment(args))
		}
		if parser.Position < 0 {
			break
		}

		if len(args) == 0 && len(pipeline.Segments) == 0 {
			return command.Pipeline{}, fmt.Errorf("%w: operator without a command", command.ErrUnparsable)
		}

		rest = rest[parser.Position:]
		op, n := readOperator(rest)
		if n == 0 {
			return command.Pipeline{}, fmt.Errorf("%w: unexpected %q", command.ErrUnparsable, string(rest[0]))
		}
		pipeline.Operators = append(pipeline.Operators, op)
		rest = rest[n:]
	}

	if len(pipeline.Segments) == 0 {
		return command.Pipeline{}, command.ErrEmpty
	}
	if len(pipeline.Operators) >= len(pipeline.Segments) {
		last := pipeline.Operators[len(pipeline.Operators)-1]
		if last != ";" && last != "&" {
			return command.Pipeline{}, fmt.Errorf("%w: dangling %q", command.ErrUnparsable, last)
		}
	}

	return pipeline, nil
}

// readOperator consumes an optional file-descriptor number followed by a
// run of operator runes, returning the operator and the runes consumed.
func readOperator(rs []rune) (string, int) {
	i := 0
	for i < len(rs) && unicode.IsDigit(rs[i]) {
		i++
	}
	start := i
	for i < len(rs) && strings.ContainsRune(operatorRunes, rs[i]) {
		i++
	}
	if i == start {
		return "", 0
	}
	return string(rs[start:i]), i
}

// isRedirect reports whether op redirects input or output.
func isRedirect(op string) bool {
	return strings.ContainsAny(op, "<>")
}
