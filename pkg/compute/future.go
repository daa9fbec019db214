package compute

import (
	"context"
	"errors"
	"sync"
)

// ErrNotDone is returned by Result when the future has not completed.
var ErrNotDone = errors.New("compute: future is not done")

type future struct {
	mu        sync.Mutex
	done      bool
	cancelled bool
	value     any
	err       error
	callbacks []func()
	doneCh    chan struct{}
	cancelFn  func() // cancels the job contexts; set by the grid before dispatch
}

func newFuture() *future {
	return &future{doneCh: make(chan struct{})}
}

// complete records the outcome exactly once and fires the registered
// callbacks outside the lock.
func (f *future) complete(value any, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.doneCh)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (f *future) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Cancel marks the future cancelled and interrupts its jobs. Returns false if
// the future already completed. Idempotent.
func (f *future) Cancel() bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	alreadyCancelled := f.cancelled
	f.cancelled = true
	cancelFn := f.cancelFn
	f.mu.Unlock()

	if !alreadyCancelled && cancelFn != nil {
		cancelFn()
	}
	return true
}

func (f *future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		return nil, ErrNotDone
	}
	return f.value, f.err
}

func (f *future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.doneCh:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnDone registers a completion callback. If the future already completed the
// callback runs immediately on the calling goroutine.
func (f *future) OnDone(fn func()) {
	f.mu.Lock()
	if !f.done {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn()
}
