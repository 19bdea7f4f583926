package relay

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// ErrClosed is returned by Write after End.
var ErrClosed = errors.New("relay closed")

// Relay forwards chunks to a downstream sink until its trigger is cancelled.
type Relay struct {
	out     tool.Sink
	cancels *Cancellations
	trigger string

	mu    sync.Mutex
	ended bool
}

// New creates a Relay for triggerID. A nil cancels registry never cancels.
func New(out tool.Sink, cancels *Cancellations, triggerID string) *Relay {
	if out == nil {
		out = tool.Discard
	}
	return &Relay{out: out, cancels: cancels, trigger: triggerID}
}

// Write forwards chunk, or returns tool.ErrCancelled without forwarding
// once the trigger has been cancelled.
func (r *Relay) Write(chunk string) error {
	if r.cancels != nil && r.cancels.IsCancelled(r.trigger) {
		return fmt.Errorf("%w: trigger %s", tool.ErrCancelled, r.trigger)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return ErrClosed
	}
	return r.out.Write(chunk)
}

// End closes the relay. Further calls are no-ops.
func (r *Relay) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return nil
	}
	r.ended = true
	return r.out.End()
}

// WriterSink writes chunks to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, chunk)
	return err
}

func (s *WriterSink) End() error { return nil }

// BufferSink collects chunks in memory.
type BufferSink struct {
	mu     sync.Mutex
	chunks []string
	ended  bool
}

func (s *BufferSink) Write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *BufferSink) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return nil
}

// Chunks returns a copy of everything written.
func (s *BufferSink) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks...)
}

// String concatenates everything written.
func (s *BufferSink) String() string {
	return strings.Join(s.Chunks(), "")
}

// Ended reports whether End was called.
func (s *BufferSink) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
