package tool

// Sink receives incremental tool output. Writes are ordered; End is the
// terminal signal for one description or one invocation.
type Sink interface {
	Write(chunk string) error
	End() error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(string) error { return nil }
func (discard) End() error         { return nil }
