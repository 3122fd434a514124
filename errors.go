// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// Programmer errors: returned as -1/-2 from the offending syscall. The
// caller made an invalid request; retrying with the same arguments will
// fail again.
var (
	// ErrInvalidShare is returned by SetCPUShare for share <= 0 or
	// share above the share cap.
	ErrInvalidShare = errors.New("nanokern: cpu share must be in 1..80")
	// ErrShareCapExceeded is returned by SetCPUShare when the requested
	// share would push the stride set's total above SHAREMAX.
	ErrShareCapExceeded = errors.New("nanokern: cpu share would exceed the stride cap")
	// ErrNotOurChild is returned by ThreadJoin when no task in the
	// caller's LWP group matches the requested id.
	ErrNotOurChild = errors.New("nanokern: no such lwp in this group")
	// ErrRWReentry is returned when a task already holding a reader-
	// writer lock (in either role) tries to acquire it again.
	ErrRWReentry = errors.New("nanokern: rwlock re-entry by current owner")
	// ErrRWDirectoryFull is returned by AcquireReadLock when the reader
	// directory has no free slot.
	ErrRWDirectoryFull = errors.New("nanokern: rwlock reader directory full")
	// ErrRWNotHeld is returned by Release{Read,Write}Lock when the
	// caller does not currently hold the lock it is releasing.
	ErrRWNotHeld = errors.New("nanokern: rwlock release without matching acquire")
	// ErrXemQueueFull is returned by XemWait when the semaphore's FIFO
	// of waiters is already at capacity (XEMQSIZE).
	ErrXemQueueFull = errors.New("nanokern: xem waiter queue full")
)

// Resource-exhaustion errors: no free slot existed at the moment of the
// call. All wrap iox.ErrWouldBlock, the same backpressure signal the
// teacher package uses for a full or empty queue — "no capacity right
// now" is the same condition whether the pool is a queue or a task
// table.
var (
	ErrNoFreeTask     = fmt.Errorf("nanokern: no free task slot: %w", iox.ErrWouldBlock)
	ErrNoFreeLock     = fmt.Errorf("nanokern: no free pool lock: %w", iox.ErrWouldBlock)
	ErrNoStackAddress = fmt.Errorf("nanokern: no free lwp stack region: %w", iox.ErrWouldBlock)
)

// IsWouldBlock reports whether err signals temporary capacity
// exhaustion (try again once something frees up), as opposed to a
// programmer error. Delegates to [iox.IsWouldBlock] for wrapped-error
// support, so ErrNoFreeTask and friends are recognized.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsProgrammerError reports whether err is one of the fixed set of
// caller-must-fix-its-arguments errors this package returns.
func IsProgrammerError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidShare),
		errors.Is(err, ErrShareCapExceeded),
		errors.Is(err, ErrNotOurChild),
		errors.Is(err, ErrRWReentry),
		errors.Is(err, ErrRWDirectoryFull),
		errors.Is(err, ErrRWNotHeld),
		errors.Is(err, ErrXemQueueFull):
		return true
	default:
		return false
	}
}

// invariant panics with msg if cond is false. Used for scheduler
// invariant violations rather than user-triggerable errors: sleep of a
// nil task, sleep or wakeup with the kernel lock not held, exit of
// init, QPush of a non-anchor task, and freeing a task that is not a
// Zombie. There is no check for the scheduler being invoked while a
// task is Running, and no CPU-id check.
func invariant(cond bool, msg string) {
	if !cond {
		panic("nanokern: " + msg)
	}
}
