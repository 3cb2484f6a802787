package radio

import (
	"context"
	"sync"
)

// Controller owns the scheduler's lifecycle so start/stop can be driven
// from the web surface and the CLI alike.
type Controller struct {
	mu     sync.Mutex
	sched  *Scheduler
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController wraps a stopped scheduler.
func NewController(sched *Scheduler) *Controller {
	return &Controller{sched: sched}
}

// Start launches the loop. Returns false when it is already running.
func (c *Controller) Start(parent context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		c.sched.Run(ctx)
		close(done)
	}(c.done)
	return true
}

// Stop cancels the loop and waits for it to wind down. Returns false when
// it was not running.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return false
	}
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	cancel()
	<-done
	return true
}

// Skip forwards a skip signal to the scheduler.
func (c *Controller) Skip() {
	c.sched.Skip()
}

// Running reports whether the loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Subscribe registers a destination on the underlying scheduler.
func (c *Controller) Subscribe(id string, d Destination) {
	c.sched.Subscribe(id, d)
}

// Unsubscribe removes a destination from the underlying scheduler.
func (c *Controller) Unsubscribe(id string) {
	c.sched.Unsubscribe(id)
}

// Destinations reports how many delivery destinations are registered. A loop
// with none idles without cycling.
func (c *Controller) Destinations() int {
	return c.sched.destinationCount()
}
