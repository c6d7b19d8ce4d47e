// Package sync provides synchronization primitives usable before the Go
// runtime's scheduler is available. sync.Mutex assumes a live goroutine
// scheduler to park and wake blocked goroutines; that scheduler does not
// exist yet in the freestanding bootloader and kernel initial stage, so
// critical sections there use a spinning test-and-set lock instead.
package sync

import "sync/atomic"

// Spinlock is a simple test-and-set mutual-exclusion primitive. The boot
// path in scope never runs with more than one active thread of execution,
// so contention never actually occurs; the lock exists so that the frame
// allocator's state stays correct if future multi-CPU bring-up starts
// calling into the same code from more than one core.
type Spinlock struct {
	state uint32
}

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// Lock acquires the spinlock, busy-waiting until it becomes available.
func (l *Spinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&l.state, unlocked, locked) {
	}
}

// Unlock releases the spinlock.
func (l *Spinlock) Unlock() {
	atomic.StoreUint32(&l.state, unlocked)
}

// TryLock attempts to acquire the spinlock without blocking, returning
// whether it succeeded.
func (l *Spinlock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&l.state, unlocked, locked)
}
