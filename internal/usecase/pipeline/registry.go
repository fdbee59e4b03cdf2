package pipeline

import (
	"context"
	"sync"
)

// registry tracks in-flight runs so the request plane can cancel them by id.
type registry struct {
	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
}

func newRegistry() *registry {
	return &registry{cancels: make(map[int64]context.CancelFunc)}
}

func (r *registry) add(runID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[runID] = cancel
}

func (r *registry) remove(runID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, runID)
}

// cancel fires the run's cancel function and reports whether the run was
// active. The entry stays registered until the run itself finishes, so a
// second cancel is a harmless repeat.
func (r *registry) cancel(runID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
