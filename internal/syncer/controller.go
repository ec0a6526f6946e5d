package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/vinylaudio/annotator/pkg/log"
)

// DefaultQuietPeriod is how long the controller waits after the last edit
// before flushing the snippet list to durable storage.
const DefaultQuietPeriod = 3 * time.Second

type State string

const (
	StateIdle    State = "idle"
	StateDirty   State = "dirty"
	StatePending State = "pending"
	StateFailed  State = "failed"
)

// FlushFunc writes the current full snippet list for the selected audio in
// one batched operation. It reads the state itself so the flush always
// carries the latest revision, not the one that armed the timer.
type FlushFunc func(ctx context.Context) error

// Controller debounces local snippet mutations into durable writes. It is a
// timer-driven state machine (idle -> dirty -> pending -> idle|failed), not
// a queue: only one timer is ever armed, re-arming replaces it, and a flush
// that finishes after further mutations arrived must not clear the dirty
// flag. While anything is unflushed the exit guard stays raised; a rejected
// flush keeps it raised and waits for the next edit or a manual retry, there
// is no automatic retry loop.
type Controller struct {
	quiet time.Duration
	flush FlushFunc

	mu       sync.Mutex
	state    State
	revision uint64
	timer    *time.Timer
	errMsg   string
}

func NewController(quiet time.Duration, flush FlushFunc) *Controller {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Controller{
		quiet: quiet,
		flush: flush,
		state: StateIdle,
	}
}

// MarkDirty records a mutation and (re)arms the quiet-period timer.
func (c *Controller) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.revision++
	if c.state != StatePending {
		c.state = StateDirty
	}
	c.armLocked()
}

// Retry re-arms the debounce after a failed flush without registering a new
// revision. A no-op unless the controller is in the failed state.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFailed {
		return
	}
	c.state = StateDirty
	c.armLocked()
}

// SetQuietPeriod changes the debounce window. An armed timer keeps its
// original deadline; the next arm uses the new window.
func (c *Controller) SetQuietPeriod(quiet time.Duration) {
	if quiet <= 0 {
		return
	}
	c.mu.Lock()
	c.quiet = quiet
	c.mu.Unlock()
}

// Stop disarms the timer. Unflushed edits are lost, which is the documented
// page-reload behavior; the guard exists to make that an explicit choice.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GuardRaised reports whether abandoning the session needs confirmation.
// Lifted only by a fulfilled flush.
func (c *Controller) GuardRaised() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle
}

// ErrorMessage returns the surfaced message of the last rejected flush, or
// empty once a flush has fulfilled.
func (c *Controller) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.onQuiet)
}

func (c *Controller) onQuiet() {
	c.mu.Lock()
	if c.state == StatePending {
		// A flush is still in flight; try again after another quiet period.
		c.armLocked()
		c.mu.Unlock()
		return
	}
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	started := c.revision
	c.state = StatePending
	c.mu.Unlock()

	err := c.flush(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		log.Error("Snippet sync flush failed: %v", err)
		c.state = StateFailed
		c.errMsg = "Update snippets failed"
		return
	}
	if c.revision != started {
		// Edits arrived while the flush was reading; they belong to the
		// next cycle.
		c.state = StateDirty
		c.armLocked()
		return
	}
	c.state = StateIdle
	c.errMsg = ""
}
