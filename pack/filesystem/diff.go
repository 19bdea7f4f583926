package filesystem

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is how many unchanged lines are kept around each change.
const diffContext = 3

// unifiedDiff renders a line diff between old and updated with unchanged
// runs collapsed to diffContext lines on either side.
func unifiedDiff(path, old, updated string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, updated)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	sb.WriteString("--- a" + path + "\n")
	sb.WriteString("+++ b" + path + "\n")

	for i, d := range diffs {
		text := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			writePrefixed(&sb, "+", text)
		case diffmatchpatch.DiffDelete:
			writePrefixed(&sb, "-", text)
		case diffmatchpatch.DiffEqual:
			head, tail := diffContext, diffContext
			if i == 0 {
				head = 0
			}
			if i == len(diffs)-1 {
				tail = 0
			}
			if len(text) <= head+tail {
				writePrefixed(&sb, " ", text)
				continue
			}
			writePrefixed(&sb, " ", text[:head])
			sb.WriteString("@@\n")
			writePrefixed(&sb, " ", text[len(text)-tail:])
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(strings.TrimSuffix(s, "\n"), "\n")
}

func writePrefixed(sb *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		sb.WriteString(prefix)
		sb.WriteString(strings.TrimSuffix(line, "\n"))
		sb.WriteString("\n")
	}
}
