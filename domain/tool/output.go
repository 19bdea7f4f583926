package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OutputKind tags the content of an Output.
type OutputKind string

const (
	OutputText OutputKind = "text"
	OutputJSON OutputKind = "json"
)

// Output is the final, bounded result of one invocation.
type Output struct {
	Kind    OutputKind `json:"kind"`
	Content string     `json:"content"`
}

// TextOutput creates a text output.
func TextOutput(content string) Output {
	return Output{Kind: OutputText, Content: content}
}

// JSONOutput encodes v into a JSON output. HTML characters are left
// unescaped so the encoded size tracks the content size.
func JSONOutput(v any) (Output, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Output{}, fmt.Errorf("marshal output: %w", err)
	}
	return Output{Kind: OutputJSON, Content: string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))}, nil
}

// Len returns the content length in bytes.
func (o Output) Len() int {
	return len(o.Content)
}
