// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import "code.hybscloud.com/atomix"

// Scheduler is the two-tier MLFQ-over-stride decision engine
// (components C and D). All of its state is protected by the owning
// Kernel's lock; every method here assumes that lock is already held by
// the caller, exactly as spec.md §5 requires for ptable.lock.
//
// The three MLFQ levels and the stride set are arena-indexed intrusive
// lists: Task.mlfqPrev/mlfqNext/strideNext store sibling slot indices,
// with unassignedIdx (-1) as the list-end sentinel. There is no
// separate node allocation and no cyclic ownership, per spec.md §9's
// Design Notes.
type Scheduler struct {
	tt *taskTable
	p  policy

	// MLFQ: one doubly linked list per level.
	mlfqHead     [3]int
	mlfqTail     [3]int
	lastPickedID int // selfIdx of the last task nextmlfq returned, unassignedIdx if none

	// Stride: one singly linked list over share>0 anchors.
	strideHead       int
	shares           int    // sum of member shares, <= p.sharemax
	mlfqPass         uint64 // virtual pass of "the MLFQ pseudo-citizen"
	lastPickedStride int    // selfIdx of the last stride pick, unassignedIdx if none

	_    pad
	tick atomix.Uint64
	_    pad
}

func newScheduler(tt *taskTable, p policy) *Scheduler {
	return &Scheduler{
		tt:               tt,
		p:                p,
		mlfqHead:         [3]int{unassignedIdx, unassignedIdx, unassignedIdx},
		mlfqTail:         [3]int{unassignedIdx, unassignedIdx, unassignedIdx},
		lastPickedID:     unassignedIdx,
		strideHead:       unassignedIdx,
		lastPickedStride: unassignedIdx,
	}
}

func (s *Scheduler) at(idx int) *Task {
	if idx == unassignedIdx {
		return nil
	}
	return &s.tt.slots[idx]
}

// Tick advances the scheduler's virtual clock by one, charges whichever
// task is currently continuity-picked (the MLFQ or stride citizen the
// last Pick returned) for the tick, and runs the periodic boost when
// the clock crosses a BSTPRD boundary. This mirrors xv6's timer trap
// calling mlfqelpsd() on every tick regardless of whether the running
// task ever calls yield() itself — Kernel.Yield (syscall 22) can still
// drive QDown early for a voluntary give-up, but the allotment/quantum
// counters must advance on their own even if no task ever yields.
func (s *Scheduler) Tick() uint64 {
	n := s.tick.AddAcqRel(1)
	s.chargeCurrent()
	if s.p.bstprd > 0 && n%uint64(s.p.bstprd) == 0 {
		s.QBoost()
	}
	return n
}

// chargeCurrent advances whichever task the last Pick continuity-
// selected by one tick of actual runtime: an MLFQ citizen goes through
// QDown so a spent allotment demotes it one level; a stride citizen's
// own Pass is charged last.Tickets, the same per-tick rate the MLFQ
// pseudo-citizen's mlfqPass already accrues in NextProc's else branch,
// so a ssticks-long continuity run costs the stride task exactly
// ssticks per-tick charges rather than the single lump NextProc applies
// at the moment it freshly picks the task — without this, a share's
// actual tick proportion would skew far above its configured percentage
// (the fresh pick's own lump charge already covers its first tick, so
// only elapsed>0 continuity ticks are charged here; otherwise the
// first tick would be double-billed).
func (s *Scheduler) chargeCurrent() {
	if last := s.at(s.lastPickedStride); last != nil && last.strideLinked {
		if last.elapsed > 0 {
			last.Pass += last.Tickets
		}
		last.elapsed++
		return
	}
	if last := s.at(s.lastPickedID); last != nil && last.mlfqLinked {
		s.QDown(last)
	}
}

// Now returns the current tick count.
func (s *Scheduler) Now() uint64 { return s.tick.LoadAcquire() }

// Pick selects the next task-group anchor to run: the stride engine's
// NextProc either returns a stride citizen directly or delegates to
// NextMLFQ, per spec.md §4.D.
func (s *Scheduler) Pick() *Task {
	return s.NextProc()
}

// GetLevel returns a task's MLFQ level, or -1 if it is stride-managed.
// Syscall 23 (getlev).
func (s *Scheduler) GetLevel(t *Task) int {
	return int(t.Level)
}

// Yield implements syscall 22: demote the current task one level (if
// its allotment is exhausted) and mark it Runnable so the next Pick
// can move on. The caller is expected to have already decremented
// whatever per-slice tick budget it is tracking.
func (s *Scheduler) Yield(cur *Task) {
	if cur.Level >= 0 {
		s.QDown(cur)
	}
	if cur.state == Running {
		cur.state = Runnable
	}
}
