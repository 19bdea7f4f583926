package process

import "strings"

// DefaultBufferLines is the number of lines kept per output stream.
const DefaultBufferLines = 1024

// RingBuffer keeps the most recent lines up to a fixed capacity.
// Pushing onto a full buffer evicts the oldest line.
type RingBuffer struct {
	lines []string
	start int
	size  int
}

// NewRingBuffer creates a buffer holding at most capacity lines.
// A non-positive capacity uses DefaultBufferLines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferLines
	}
	return &RingBuffer{lines: make([]string, capacity)}
}

// Push appends a line.
func (r *RingBuffer) Push(line string) {
	if r.size < len(r.lines) {
		r.lines[(r.start+r.size)%len(r.lines)] = line
		r.size++
		return
	}
	r.lines[r.start] = line
	r.start = (r.start + 1) % len(r.lines)
}

// Lines returns the buffered lines, oldest first.
func (r *RingBuffer) Lines() []string {
	out := make([]string, r.size)
	for i := range out {
		out[i] = r.lines[(r.start+i)%len(r.lines)]
	}
	return out
}

// Len returns the number of buffered lines.
func (r *RingBuffer) Len() int { return r.size }

// Cap returns the capacity.
func (r *RingBuffer) Cap() int { return len(r.lines) }

// String joins the buffered lines with newlines.
func (r *RingBuffer) String() string {
	return strings.Join(r.Lines(), "\n")
}
