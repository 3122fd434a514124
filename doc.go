// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nanokern implements the scheduling core of a pedagogical
// operating-system kernel: a two-tier process/LWP scheduler and the
// synchronization primitives built on top of it.
//
// The scheduler combines a 3-level multilevel feedback queue (MLFQ)
// with a stride-scheduled CPU share reservation over the same pool of
// runnable task groups. Light-weight processes (LWPs) let a group of
// tasks that share one address space be scheduled as a single MLFQ or
// stride citizen while round-robining internally. A counting semaphore
// (xem) and a writer-exclusive reader-writer lock are built from the
// kernel's sleep/wakeup channels and a small pool of kernel locks.
//
// # Quick Start
//
// Construct a kernel with the default policy constants, fork a task,
// and drive the decision engine directly — no goroutine required:
//
//	k := nanokern.New(64).Build()
//	child, err := k.Fork(k.Init(), "worker", nil)
//	if err != nil {
//	    // handle resource exhaustion
//	}
//	k.Tick()
//	picked := k.Scheduler().Pick()
//
// # Live Mode
//
// To run tasks as real goroutines under the scheduler's control, supply
// a body function to Fork or ThreadCreate and start the per-CPU loop:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go k.Run(ctx)
//
//	member, err := k.ThreadCreate(anchor, func(t *nanokern.Task) {
//	    defer k.ThreadExit(t, 0)
//	    // ... LWP body ...
//	})
//
// # Synchronization Primitives
//
// xem is a counting semaphore with strict FIFO wakeup order among
// waiters on the same xem:
//
//	var x nanokern.Xem
//	k.XemInit(&x, 1)
//	if err := k.XemWait(&x, self); err != nil {
//	    // ErrXemQueueFull: too many waiters already queued
//	}
//	defer k.XemUnlock(&x)
//
// RWLock is writer-exclusive, many-reader, built from two xems:
//
//	var rw nanokern.RWLock
//	k.RWLockInit(&rw)
//	if err := k.AcquireReadLock(&rw, reader); err == nil {
//	    defer k.ReleaseReadLock(&rw, reader)
//	    // ... read ...
//	}
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic counters with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU-pause
// busy-wait loops, and [code.hybscloud.com/iox] for the semantic
// classification of capacity-exhaustion errors.
package nanokern
