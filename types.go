// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import "code.hybscloud.com/atomix"

// Fixed policy constants. These give the observable scheduling policy;
// see Builder for how to override them per Kernel instance.
const (
	// NPROCDefault is the default task table size.
	NPROCDefault = 64
	// XEMQSIZE is the fixed capacity of an xem's waiter FIFO and of the
	// reader-write lock's reader directory. Part of the stable ABI —
	// xem_t and rwlock_t ship arrays of exactly this length.
	XEMQSIZE = 128
	// SHAREMAX is the upper bound on the sum of stride shares.
	SHAREMAX = 80
	// GTICKETS is the ticket pool stride passes are computed against.
	GTICKETS = 10000
	// Q0, Q1, Q2 are the per-level quanta, in ticks.
	Q0, Q1, Q2 = 5, 10, 20
	// Q0ALTMT, Q1ALTMT are the per-level allotments, in ticks, before
	// QDown demotes a task to the next level.
	Q0ALTMT, Q1ALTMT = 20, 40
	// BSTPRD is the boost period: every BSTPRD ticks, every task at
	// level 1 or 2 is migrated back to level 0.
	BSTPRD = 200
	// SSTICKS is the stride engine's quantum, in ticks.
	SSTICKS = 5
	// unassignedIdx is the intrusive-list sentinel meaning "not linked."
	unassignedIdx = -1
)

// ThreadID identifies a task. Stable ABI type for user programs — a
// plain unsigned 32-bit integer, per spec.
type ThreadID uint32

// Channel is an opaque sleep/wakeup rendezvous key. Wakeups match by
// equality only; the namespace is shared across all sleepers, and the
// while(cond) re-check pattern in Sleep/Sleept tolerates spurious
// same-channel collisions.
type Channel uint64

// State is a task's place in its lifecycle.
type State int

const (
	Unused State = iota
	Embryo
	Sleeping // covers both of xv6's SLEEPING and TJOINING; see SleepReason
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Embryo:
		return "EMBRYO"
	case Sleeping:
		return "SLEEPING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// SleepReason distinguishes a thread-join sleep from a plain one, the
// Design Notes' "single sleeping state plus a reason enum" realization
// of xv6's SLEEPING/TJOINING split. Wakeup matches both alike; the
// scheduler's eligibility check (schedulable) does not: a SleepJoin
// sleeper may still be picked, a SleepNormal one may not.
type SleepReason int

const (
	sleepReasonNone SleepReason = iota
	SleepNormal
	SleepJoin
)

// Task is one task-table slot. Zero value is an Unused slot.
type Task struct {
	ID   ThreadID
	Name string

	// state transitions require Kernel.lock held; see kernel.go
	state State

	Parent *Task // for Wait
	Anchor *Task // scheduling anchor: self for non-LWPs

	// Address space bookkeeping. AddrSpace is an opaque handle from the
	// injected AddressSpace collaborator; nanokern never interprets it.
	AddrSpace any
	Sz        uint64 // user image size
	HeapTop   uint64 // hpsz: break point
	StackSz   uint64 // sksz: per-LWP stack region size

	// selfIdx is this task's fixed slot index in the owning taskTable,
	// used as the arena index for the intrusive MLFQ/stride lists.
	selfIdx int

	// MLFQ fields. Level -1 means "stride-managed, not in any MLFQ list."
	Level        int8
	elapsed      int
	mlfqPrev     int
	mlfqNext     int
	mlfqLinked   bool
	strideLinked bool

	// Stride fields.
	Share      int
	Pass       uint64
	Tickets    uint64
	strideNext int

	// LWP fields.
	LWPIndex  int // 0 for the anchor
	StackBase uint64
	RetVal    int
	schIdx    int // anchor-only: last-picked intra-group index memo

	// Blocking.
	chanWait Channel
	reason   SleepReason

	killed atomix.Bool

	// Live-mode plumbing (nil in decision-engine mode).
	body func(*Task)
	turn chan struct{}
	exit chan struct{}
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// Killed reports whether Kill has been called on this task.
func (t *Task) Killed() bool { return t.killed.LoadAcquire() }

// IsLWP reports whether t is a non-anchor member of an LWP group.
func (t *Task) IsLWP() bool { return t.Anchor != nil && t.Anchor != t }

// schedulable reports whether the scheduler may pick t: either plainly
// runnable, or asleep specifically on a thread-join wait, which spec.md
// §4.C's nextmlfq/§4.D's nextproc both name as eligible alongside
// Runnable for continuity purposes.
func schedulable(t *Task) bool {
	if t == nil {
		return false
	}
	return t.state == Runnable || (t.state == Sleeping && t.reason == SleepJoin)
}

// Xem is the counting semaphore ABI type. Field layout is stable: user
// programs on the other side of a syscall boundary see exactly this
// shape.
type Xem struct {
	Value   int32
	LockIdx int32
	Queue   [XEMQSIZE]ThreadID
	Front   int
	Rear    int
	count   int // number of valid entries in Queue; not part of the wire ABI
}

// RWLock is the reader-writer lock ABI type: two xems, a reader
// directory, and owner bookkeeping.
type RWLock struct {
	Lock      Xem
	WriteLock Xem
	Queue     [XEMQSIZE]ThreadID // reader directory; 0 = empty slot
	Readers   int
	WLOwner   ThreadID
}
