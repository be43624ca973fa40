package core

import (
	"runtime"
	"sync/atomic"
)

// permit is a binary semaphore gating whether a channel may accept a new
// frame. Acquire blocks the foreground context; Release is a plain atomic
// store so it is safe to call from interrupt context.
type permit struct {
	avail uint32
}

// Acquire blocks until the permit is available and takes it.
func (p *permit) Acquire() {
	for !atomic.CompareAndSwapUint32(&p.avail, 1, 0) {
		runtime.Gosched()
	}
}

// TryAcquire takes the permit if it is available without blocking.
func (p *permit) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&p.avail, 1, 0)
}

// Release makes the permit available. Interrupt-safe.
func (p *permit) Release() {
	atomic.StoreUint32(&p.avail, 1)
}

// Available reports whether the permit could be taken right now.
func (p *permit) Available() bool {
	return atomic.LoadUint32(&p.avail) == 1
}

// Reset forces the permit to a known count (0 or 1). Only used while the
// channel holds no in-flight transfer.
func (p *permit) Reset(count uint32) {
	atomic.StoreUint32(&p.avail, count)
}
