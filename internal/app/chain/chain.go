// Package chain serializes engine operations into a single FIFO execution
// chain and issues the resulting transport commands.
package chain

import (
	"context"
	"sync"
)

// Chain runs operations strictly one after another in submission order.
// It is the single-writer discipline of the engine: an operation holds the
// turn until its outcome is known, later operations wait, none are dropped
// or coalesced. There is no mid-flight cancellation of a running operation;
// a caller abandoning its wait releases its slot without running.
type Chain struct {
	mu   sync.Mutex
	tail chan struct{}
}

// New creates an empty chain.
func New() *Chain {
	return &Chain{}
}

// Do schedules op after every previously scheduled operation and runs it.
// It returns op's error, or the context error when the caller gives up
// waiting for its turn (op does not run in that case, and the chain order
// for later operations is preserved).
func (c *Chain) Do(ctx context.Context, op func(context.Context) error) error {
	c.mu.Lock()
	prev := c.tail
	done := make(chan struct{})
	c.tail = done
	c.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Release the slot only once the predecessor finishes, so a
			// successor can never overtake it.
			go func() {
				<-prev
				close(done)
			}()
			return ctx.Err()
		}
	}

	defer close(done)
	return op(ctx)
}
