// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package spinlock provides the kernel's mutual-exclusion primitive and
// its interrupt-discipline accounting.
//
// There is no real CPU to disable interrupts on inside a hosted Go
// runtime, so Acquire/Release track a nesting depth that callers are expected
// to honor as "no preemption point below here" — the invariant that
// matters is that scheduler-visible state is only read or written while
// a Lock is held, not the mechanism by which concurrent access is
// prevented.
package spinlock

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Lock is a test-and-set mutual exclusion primitive with an attached
// interrupt-disable depth counter, mirroring xv6's acquire/release plus
// pushcli/popcli pairing. It also satisfies sync.Locker so it can back
// a sync.Cond for the sleep/wakeup channels in sleep.go.
type Lock struct {
	held  atomix.Bool
	depth atomix.Int32
	name  string
}

// New returns an unheld Lock identified by name (used only in panic
// messages).
func New(name string) *Lock {
	return &Lock{name: name}
}

// Acquire spins until the lock is obtained and bumps the interrupt
// disable depth.
func (l *Lock) Acquire() {
	sw := spin.Wait{}
	for !l.held.CompareAndSwapAcqRel(false, true) {
		sw.Once()
	}
	l.depth.AddAcqRel(1)
}

// Release clears the lock and pops one level of interrupt-disable
// depth. Panics if the caller does not hold it.
func (l *Lock) Release() {
	if !l.Holding() {
		panic("spinlock: " + l.name + ": release of unheld lock")
	}
	l.depth.AddAcqRel(-1)
	l.held.StoreRelease(false)
}

// Holding reports whether the lock is currently held by anyone.
//
// This is a simulation of xv6's single-CPU-owner holding check: since
// nanokern serializes all scheduler-state transitions behind one Lock,
// "held by anyone" and "held by the caller" coincide for every call site
// in this module.
func (l *Lock) Holding() bool {
	return l.held.LoadAcquire()
}

// Depth returns the current interrupt-disable nesting depth.
func (l *Lock) Depth() int32 {
	return l.depth.LoadAcquire()
}

// Lock is Acquire under the name sync.Locker expects.
func (l *Lock) Lock() { l.Acquire() }

// Unlock is Release under the name sync.Locker expects.
func (l *Lock) Unlock() { l.Release() }
