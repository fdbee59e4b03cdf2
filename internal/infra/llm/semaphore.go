package llm

import "context"

// Semaphore bounds in-flight model calls. The hosted endpoint is the scarce
// resource, so the digest, rank and email stages share one budget instead of
// each bringing their own.
type Semaphore chan struct{}

// NewSemaphore creates a semaphore admitting n concurrent holders.
func NewSemaphore(n int) Semaphore {
	if n <= 0 {
		n = 1
	}
	return make(Semaphore, n)
}

// Acquire blocks until a slot frees up or the context ends. A context that
// is already done never takes a slot, even when one is free.
func (s Semaphore) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s Semaphore) Release() {
	<-s
}
