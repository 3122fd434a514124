// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import (
	"context"
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"

	"github.com/emberkernel/nanokern/internal/spinlock"
)

// Channel tag bases. Each kind of rendezvous gets its own high-bit
// range so a wait() channel, a thread_join channel, and an xem's
// waiter-queue channel can never collide even though they all share
// the one Channel namespace (types.go's Channel doc comment).
const (
	waitChannelBase Channel = 0x5741_0000_0000_0000
	joinChannelBase Channel = 0x4A4F_0000_0000_0000
	xemChannelBase  Channel = 0x5845_0000_0000_0000
)

func parentWaitChannel(p *Task) Channel { return waitChannelBase + Channel(p.ID) }
func threadJoinChannel(t *Task) Channel { return joinChannelBase + Channel(t.ID) }
func xemChannel(x *Xem) Channel         { return xemChannelBase + Channel(uint32(x.LockIdx)) }

// Kernel is the top-level façade: the task table, the two-tier
// scheduler, and a lazily-bound pool of locks backing xem and rwlock,
// all serialized behind one spinlock.Lock — the same "one big lock"
// discipline xv6's ptable.lock uses, generalized here to also guard
// semaphore and rwlock state so Sleep/Wakeup can use a single
// sync.Cond for every rendezvous in the kernel.
type Kernel struct {
	lock *spinlock.Lock
	cond *sync.Cond

	tt    *taskTable
	sched *Scheduler
	p     policy

	initTask *Task

	poolLocks []spinlock.Lock
	poolUsed  []bool

	// stepDone carries the id of whatever live-mode task just
	// paused (voluntary Yield) or exited, so Run knows when it is
	// safe to pick again. Buffered by one so a task that exits
	// without ever yielding doesn't have to wait for Run to be
	// listening yet.
	stepDone chan ThreadID
}

func newKernel(p policy) *Kernel {
	tt := newTaskTable(p.nproc, nil)
	k := &Kernel{
		tt:        tt,
		sched:     newScheduler(tt, p),
		p:         p,
		lock:      spinlock.New("kernel"),
		poolLocks: make([]spinlock.Lock, roundToPow2(p.nproc)),
		poolUsed:  make([]bool, roundToPow2(p.nproc)),
		stepDone:  make(chan ThreadID, 1),
	}
	k.cond = sync.NewCond(k.lock)

	init, err := k.tt.alloc("init")
	if err != nil {
		panic("nanokern: task table too small to hold init")
	}
	init.Anchor = init
	init.state = Runnable
	k.sched.QPush(init)
	k.initTask = init
	return k
}

// Scheduler exposes the decision engine for direct inspection in
// decision-engine-mode tests and callers that want to drive Pick/Tick
// themselves instead of using Run.
func (k *Kernel) Scheduler() *Scheduler { return k.sched }

// Init returns the init task, the ultimate reparent target for
// orphaned children (syscall-level equivalent of pid 1).
func (k *Kernel) Init() *Task { return k.initTask }

// Tick advances the scheduler's clock by one, running the periodic
// boost when due. Safe to call concurrently with Run; takes the
// kernel lock itself.
func (k *Kernel) Tick() uint64 {
	k.lock.Acquire()
	defer k.lock.Release()
	return k.sched.Tick()
}

// bindPoolLock lazily assigns x a lock from the shared pool the first
// time any xem operation touches it. Must be called with k.lock held.
func (k *Kernel) bindPoolLock(x *Xem) error {
	if x.LockIdx >= 0 {
		return nil
	}
	for i, used := range k.poolUsed {
		if !used {
			k.poolUsed[i] = true
			x.LockIdx = int32(i)
			return nil
		}
	}
	return ErrNoFreeLock
}

// Fork implements syscall 2 (fork): allocate a task and mint an address
// space for it, copying from parent when parent is non-nil. Per
// spec.md §4.B, Fork inherits LWP grouping from the caller: if parent
// is itself an LWP member (non-anchor), the child joins parent's group
// — sharing its AddrSpace and getting the next free LWP index, per the
// group's existing scheduling slot, rather than becoming independently
// schedulable — instead of xv6-public's `fork()`, which always deep-
// copies the address space via `copyuvm` regardless of `oproc` and
// only inherits grouping for scheduling purposes; this module's Task
// (unlike xv6's `proc`) models LWP address-space sharing as identity of
// the `AddrSpace` handle, so a grouped Fork shares it directly rather
// than minting a redundant copy. Otherwise the child becomes its own
// anchor and is pushed onto the scheduler as a new one-member LWP
// group. If body is non-nil, Fork also spawns the goroutine that will
// run it once Run's baton reaches this task (live mode); a nil body
// leaves the task purely decision-engine-driven.
func (k *Kernel) Fork(parent *Task, name string, body func(*Task)) (*Task, error) {
	k.lock.Acquire()
	defer k.lock.Release()

	group := groupAnchor(parent)

	t, err := k.tt.alloc(name)
	if err != nil {
		return nil, err
	}
	t.Parent = parent

	if group != nil {
		idx, idxErr := nextLWPIndex(k.tt, group)
		if idxErr != nil {
			t.state = Zombie
			k.tt.free(t)
			return nil, idxErr
		}
		t.Anchor = group
		t.AddrSpace = group.AddrSpace
		t.Sz, t.HeapTop = group.Sz, group.HeapTop
		t.LWPIndex = idx
		t.StackBase = lwpStackBase(idx)
		t.StackSz = lwpStackSpan
		t.state = Runnable
		// Not QPush'd: only the group anchor is ever MLFQ/stride-linked.
	} else {
		var parentAddr any
		if parent != nil {
			parentAddr = parent.AddrSpace
			t.Sz = parent.Sz
			t.HeapTop = parent.HeapTop
			if t.HeapTop > t.Sz {
				t.Sz = t.HeapTop // spec.md §4.B: clone size = max(sz, hpsz)
			}
		}
		addr, addrErr := k.tt.addrs.New(t.Sz, parentAddr)
		if addrErr != nil {
			t.state = Zombie
			k.tt.free(t)
			return nil, addrErr
		}
		t.Anchor = t
		t.AddrSpace = addr
		t.state = Runnable
		k.sched.QPush(t)
	}

	if body != nil {
		t.body = body
		t.turn = make(chan struct{})
		t.exit = make(chan struct{})
		go k.runBody(t)
	}
	return t, nil
}

// groupAnchor returns parent's LWP group anchor if parent is itself a
// non-anchor LWP member (xv6's `cur.oproc != null`), or nil if parent
// is nil or already a top-level anchor — the fork-inherits-grouping
// test spec.md §4.B names.
func groupAnchor(parent *Task) *Task {
	if parent != nil && parent.Anchor != nil && parent.Anchor != parent {
		return parent.Anchor
	}
	return nil
}

// Exit implements syscall 3: reparent t's children to init, retire t
// to Zombie, unlink it from the scheduler, and wake its parent's Wait.
// Panics if t is init — init exiting is unrecoverable by definition.
func (k *Kernel) Exit(t *Task, retval int) {
	k.lock.Acquire()
	defer k.lock.Release()
	invariant(t != k.initTask, "exit of init")

	for _, c := range k.tt.children(t) {
		c.Parent = k.initTask
	}
	t.RetVal = retval
	t.state = Zombie
	k.sched.QPop(t)
	if t.exit != nil {
		close(t.exit)
	}
	if t.Parent != nil {
		k.Wakeup(parentWaitChannel(t.Parent))
	}
}

// Wait implements syscall 4: block until a child of parent becomes a
// Zombie, reap it, and return its id and exit code. Returns
// ErrNotOurChild if parent has no children at all (matching xv6's
// wait() returning -1 on an empty child set instead of blocking
// forever).
func (k *Kernel) Wait(parent *Task) (id ThreadID, retval int, err error) {
	k.lock.Acquire()
	defer k.lock.Release()
	for {
		children := k.tt.children(parent)
		if len(children) == 0 {
			return 0, 0, ErrNotOurChild
		}
		for _, c := range children {
			if c.state == Zombie {
				id, retval = c.ID, c.RetVal
				k.tt.free(c)
				return id, retval, nil
			}
		}
		if parent.killed.LoadAcquire() {
			return 0, 0, ErrNotOurChild
		}
		k.Sleep(parent, parentWaitChannel(parent))
	}
}

// Yield implements syscall 22 from inside a live-mode task's own
// goroutine: demote one MLFQ level if the allotment is spent, hand
// the baton back to Run, and block until Run schedules this task
// again. In decision-engine mode (t.turn == nil) this only does the
// scheduler-state half — there is no goroutine to suspend.
func (k *Kernel) Yield(t *Task) {
	k.lock.Acquire()
	k.sched.Yield(t)
	k.lock.Release()
	if t.turn != nil {
		k.stepDone <- t.ID
		<-t.turn
	}
}

// GetLev implements syscall 23.
func (k *Kernel) GetLev(t *Task) int {
	k.lock.Acquire()
	defer k.lock.Release()
	return k.sched.GetLevel(t)
}

// SetCPUShare implements syscall 24.
func (k *Kernel) SetCPUShare(t *Task, share int) error {
	k.lock.Acquire()
	defer k.lock.Release()
	return k.sched.SetCPUShare(t, share)
}

// runBody is the live-mode goroutine every forked or thread_create'd
// task with a non-nil body runs in: wait for the first baton, run the
// body to completion, then signal Run that this task is done so the
// next Pick can proceed. A body that never calls ThreadExit/Exit is
// force-retired to Zombie here so Run never waits on a task that
// simply fell off the end of its function.
func (k *Kernel) runBody(t *Task) {
	<-t.turn
	t.body(t)
	k.lock.Acquire()
	if t.state != Zombie {
		t.state = Zombie
		k.sched.QPop(t)
	}
	k.lock.Release()
	k.stepDone <- t.ID
}

// Run drives the live-mode per-CPU loop: tick the clock, pick the
// next schedulable task group (resolving to a specific LWP member via
// NextLWP when the anchor has siblings), hand it the baton, and wait
// for it to pause or exit before picking again. While it waits, the
// loop keeps ticking the clock once a millisecond, so a body that never
// yields is still charged for the ticks it occupies. Returns when ctx
// is canceled.
//
// Only one task body ever executes concurrently with this loop's own
// bookkeeping — the baton is the single-CPU discipline xv6 gets for
// free from having one hardware thread; here it is enforced by
// construction instead.
//
// Every idle round (nothing schedulable) calls spin.Wait's Once and
// then iox.Backoff's Wait; the backoff is reset as soon as a pick
// succeeds — the "spin, then back off" shape the teacher's own queues
// use under contention, applied here to picking rather than to a
// single CAS.
func (k *Kernel) Run(ctx context.Context) {
	sw := spin.Wait{}
	backoff := iox.Backoff{}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		k.lock.Acquire()
		k.sched.Tick()
		cur := k.sched.Pick()
		if cur == nil {
			k.lock.Release()
			sw.Once()
			backoff.Wait()
			continue
		}
		backoff.Reset()
		member := cur
		if m := k.NextLWP(cur); m != nil {
			member = m
		}
		member.state = Running
		turn, noBody := member.turn, member.turn == nil
		k.lock.Release()

		if noBody {
			k.lock.Acquire()
			if member.state == Running {
				member.state = Runnable
			}
			k.lock.Release()
			continue
		}

		turn <- struct{}{}
		ticker := time.NewTicker(time.Millisecond)
	waiting:
		for {
			select {
			case <-k.stepDone:
				break waiting
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				k.Tick()
			}
		}
		ticker.Stop()
	}
}
