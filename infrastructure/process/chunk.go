package process

import (
	"bytes"
	"time"
)

// Stream identifies which pipe a chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// String returns "stdout" or "stderr".
func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Chunk is one line of output stamped with its arrival time.
type Chunk struct {
	Stream Stream
	Text   string
	At     time.Time
}

// maxLineBytes bounds a single unterminated line.
const maxLineBytes = 64 * 1024

// lineWriter splits a byte stream into lines and pushes them onto a
// channel shared by both streams, so a single consumer sees chunks in
// arrival order.
type lineWriter struct {
	stream  Stream
	out     chan<- Chunk
	partial []byte
}

func newLineWriter(stream Stream, out chan<- Chunk) *lineWriter {
	return &lineWriter{stream: stream, out: out}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)

	start := 0
	for {
		i := bytes.IndexByte(w.partial[start:], '\n')
		if i < 0 {
			break
		}
		line := w.partial[start : start+i]
		w.emit(string(bytes.TrimSuffix(line, []byte("\r"))))
		start += i + 1
	}
	w.partial = append(w.partial[:0], w.partial[start:]...)

	if len(w.partial) >= maxLineBytes {
		w.flush()
	}
	return len(p), nil
}

// flush emits any unterminated trailing line.
func (w *lineWriter) flush() {
	if len(w.partial) == 0 {
		return
	}
	w.emit(string(w.partial))
	w.partial = w.partial[:0]
}

func (w *lineWriter) emit(text string) {
	w.out <- Chunk{Stream: w.stream, Text: text, At: time.Now()}
}
