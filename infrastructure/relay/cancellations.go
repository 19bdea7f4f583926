// Package relay carries incremental tool output to an observer and tracks
// out-of-band cancellation of tool invocations by trigger id.
package relay

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// maxFinished bounds how many cleared triggers are remembered so that a
// late Cancel for them is ignored.
const maxFinished = 1024

// Cancellations records which triggers have been cancelled.
type Cancellations struct {
	mu        sync.Mutex
	cancelled map[string]struct{}
	watchers  map[string]map[uint64]context.CancelCauseFunc
	nextID    uint64

	finished      map[string]struct{}
	finishedOrder []string
}

// NewCancellations creates an empty registry.
func NewCancellations() *Cancellations {
	return &Cancellations{
		cancelled: make(map[string]struct{}),
		watchers:  make(map[string]map[uint64]context.CancelCauseFunc),
		finished:  make(map[string]struct{}),
	}
}

// Begin marks triggerID as in use again after an earlier Clear, so that
// Cancel applies to it.
func (c *Cancellations) Begin(triggerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.finished, triggerID)
}

// Cancel marks triggerID cancelled and cancels every context derived for it.
// Cancelling a trigger that was already cleared does nothing.
func (c *Cancellations) Cancel(triggerID string) {
	c.mu.Lock()
	if _, done := c.finished[triggerID]; done {
		c.mu.Unlock()
		return
	}
	c.cancelled[triggerID] = struct{}{}
	watchers := c.watchers[triggerID]
	delete(c.watchers, triggerID)
	c.mu.Unlock()

	for _, cancel := range watchers {
		cancel(tool.ErrCancelled)
	}
}

// IsCancelled reports whether triggerID has been cancelled.
func (c *Cancellations) IsCancelled(triggerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cancelled[triggerID]
	return ok
}

// Checker returns a poll function for triggerID.
func (c *Cancellations) Checker(triggerID string) func() bool {
	return func() bool {
		return c.IsCancelled(triggerID)
	}
}

// Clear forgets triggerID once its invocation has finished.
func (c *Cancellations) Clear(triggerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancelled, triggerID)
	delete(c.watchers, triggerID)

	if _, ok := c.finished[triggerID]; ok {
		return
	}
	c.finished[triggerID] = struct{}{}
	c.finishedOrder = append(c.finishedOrder, triggerID)
	if len(c.finishedOrder) > maxFinished {
		delete(c.finished, c.finishedOrder[0])
		c.finishedOrder = c.finishedOrder[1:]
	}
}

// WithContext derives a context that is cancelled with cause
// tool.ErrCancelled when triggerID is cancelled. The returned CancelFunc
// releases the watcher.
func (c *Cancellations) WithContext(parent context.Context, triggerID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	c.mu.Lock()
	if _, ok := c.cancelled[triggerID]; ok {
		c.mu.Unlock()
		cancel(tool.ErrCancelled)
		return ctx, func() {}
	}
	c.nextID++
	id := c.nextID
	if c.watchers[triggerID] == nil {
		c.watchers[triggerID] = make(map[uint64]context.CancelCauseFunc)
	}
	c.watchers[triggerID][id] = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if w := c.watchers[triggerID]; w != nil {
			delete(w, id)
			if len(w) == 0 {
				delete(c.watchers, triggerID)
			}
		}
		c.mu.Unlock()
		cancel(context.Canceled)
	}
}
