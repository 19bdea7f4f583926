package command

import (
	"path/filepath"
	"strings"
)

// Segment is one pipeline stage: the tokens between two control operators.
type Segment []string

// Name returns the base name of the command word, so "/bin/rm" is "rm".
func (s Segment) Name() string {
	if len(s) == 0 {
		return ""
	}
	return filepath.Base(s[0])
}

// Args returns the tokens after the command word.
func (s Segment) Args() []string {
	if len(s) < 2 {
		return nil
	}
	return s[1:]
}

// String joins the tokens with single spaces.
func (s Segment) String() string {
	return strings.Join(s, " ")
}

// Pipeline is a tokenized command line.
type Pipeline struct {
	// Segments are the pipeline stages in order.
	Segments []Segment

	// Operators are the control operators found between segments,
	// including redirections.
	Operators []string
}

// HasRedirect reports whether the pipeline redirects input or output.
func (p Pipeline) HasRedirect() bool {
	for _, op := range p.Operators {
		if strings.ContainsAny(op, "<>") {
			return true
		}
	}
	return false
}
