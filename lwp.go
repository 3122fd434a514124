// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

// Component E: light-weight processes. An LWP group is one anchor
// task (the original Fork'd task, Anchor == itself) plus zero or more
// member tasks sharing its AddrSpace (Anchor pointing at the group's
// anchor). Only the anchor is ever linked into the MLFQ or stride
// lists — members round-robin inside the slice the scheduler grants
// the group, selected by NextLWP.

// lwpPageSize and lwpStackPages mirror xv6's PGSIZE and the fixed
// 2-page stack thread_create carves out for every LWP.
const (
	lwpPageSize   = 4096
	lwpStackPages = 2
	lwpStackSpan  = lwpStackPages * lwpPageSize
	// lwpStackTop stands in for KERNBASE: the high-address end of the
	// region thread_create carves LWP stacks down from.
	lwpStackTop = 0x8000_0000
)

// lwpStackBase returns the deterministic stack-region base address for
// LWP index idx, mirroring xv6's
// PGROUNDUP(KERNBASE - (lwpidx+1)*2*PGSIZE): each index owns a fixed,
// non-overlapping 2-page window, so the same idx always maps to the
// same address whether it is being carved for the first time or reused
// after a ThreadJoin freed it.
func lwpStackBase(idx int) uint64 {
	return lwpStackTop - uint64(idx+1)*lwpStackSpan
}

// ThreadCreate implements syscall 25 (xv6's thread_create): allocate a
// new task sharing anchor's address space, assign it the smallest LWP
// index not currently in use within the group, carve its deterministic
// 2-page stack region, and mark it Runnable. Returns ErrNoStackAddress
// if every index in the group's table-sized range is taken. If body is
// non-nil the member gets its own live-mode goroutine exactly like a
// Fork'd task.
func (k *Kernel) ThreadCreate(anchor *Task, body func(*Task)) (*Task, error) {
	k.lock.Acquire()
	defer k.lock.Release()

	idx, err := nextLWPIndex(k.tt, anchor)
	if err != nil {
		return nil, err
	}

	t, err := k.tt.alloc(anchor.Name)
	if err != nil {
		return nil, err
	}
	t.Parent = anchor.Parent
	t.Anchor = anchor
	t.AddrSpace = anchor.AddrSpace
	t.Sz, t.HeapTop = anchor.Sz, anchor.HeapTop
	t.LWPIndex = idx
	t.StackBase = lwpStackBase(idx)
	t.StackSz = lwpStackSpan
	t.state = Runnable

	if body != nil {
		t.body = body
		t.turn = make(chan struct{})
		t.exit = make(chan struct{})
		go k.runBody(t)
	}
	return t, nil
}

// ThreadExit implements syscall 26: reparent any of t's own children to
// t's anchor (an LWP has no business willing its children to init, since
// it isn't a top-level task), retire t to Zombie, and wake whoever is
// joined on it. Does not touch t's AddrSpace — taskTable.free only
// releases the address space when the freed task is not an LWP member,
// since the anchor (or a sibling) may still be running in it.
func (k *Kernel) ThreadExit(t *Task, retval int) {
	k.lock.Acquire()
	defer k.lock.Release()

	anchor := t.Anchor
	if anchor == nil {
		anchor = t
	}
	for _, c := range k.tt.children(t) {
		c.Parent = anchor
	}

	t.RetVal = retval
	t.state = Zombie
	if t.exit != nil {
		close(t.exit)
	}
	k.Wakeup(threadJoinChannel(t))
}

// ThreadJoin implements syscall 27: block until the LWP identified by
// id, a member of caller's own group, becomes a Zombie, then reap it
// and return its exit code. Returns ErrNotOurChild if id does not name
// a current member of caller's group.
func (k *Kernel) ThreadJoin(caller *Task, id ThreadID) (retval int, err error) {
	group := caller.Anchor
	if group == nil {
		group = caller
	}

	k.lock.Acquire()
	defer k.lock.Release()
	for {
		target := findLWPMember(k.tt, group, id)
		if target == nil {
			return 0, ErrNotOurChild
		}
		if target.state == Zombie {
			retval = target.RetVal
			k.tt.free(target)
			return retval, nil
		}
		if caller.killed.LoadAcquire() {
			return 0, ErrNotOurChild
		}
		k.Sleept(caller, threadJoinChannel(target), SleepJoin)
	}
}

// NextLWP selects which member of anchor's group should actually run
// the slice the scheduler just granted the group, round-robining
// using anchor.schIdx as a memo of the last LWPIndex picked. Returns
// anchor itself if it has no live members (the common, non-LWP case)
// or if none of its members are currently schedulable.
//
// Run calls this with the kernel lock already held; a single-goroutine
// decision-engine-mode caller may call it directly, the same way
// Scheduler's Pick/Tick are used unlocked in that mode.
func (k *Kernel) NextLWP(anchor *Task) *Task {
	members := k.tt.siblings(anchor)
	if len(members) <= 1 {
		return anchor
	}

	startAt := 0
	for i, m := range members {
		if m.LWPIndex == anchor.schIdx {
			startAt = (i + 1) % len(members)
			break
		}
	}
	for i := 0; i < len(members); i++ {
		m := members[(startAt+i)%len(members)]
		if m.state == Runnable {
			anchor.schIdx = m.LWPIndex
			return m
		}
	}
	return anchor
}

// nextLWPIndex returns the smallest LWP index not currently held by a
// living member of anchor's group (the anchor itself occupies index 0
// and is never reassigned), mirroring xv6's thread_create scan of a
// used-index bitmap rather than a monotonically increasing counter —
// this is what lets a joined LWP's index, and the stack region derived
// from it, be handed to the next thread_create in the same group.
func nextLWPIndex(tt *taskTable, anchor *Task) (int, error) {
	used := make([]bool, len(tt.slots)+1)
	for _, m := range tt.siblings(anchor) {
		if m.LWPIndex < len(used) {
			used[m.LWPIndex] = true
		}
	}
	for i := 1; i < len(used); i++ {
		if !used[i] {
			return i, nil
		}
	}
	return 0, ErrNoStackAddress
}

// findLWPMember returns the member of anchor's group (anchor itself
// excluded, matching xv6's thread_join not allowing joining the
// group's own creator) with the given id, or nil.
func findLWPMember(tt *taskTable, anchor *Task, id ThreadID) *Task {
	for _, m := range tt.siblings(anchor) {
		if m != anchor && m.ID == id {
			return m
		}
	}
	return nil
}

// GrowProc implements xv6's growproc: adjust p's logical heap break by
// n bytes (negative shrinks). Per spec.md §4.E, only the group anchor's
// HeapTop is authoritative — growing from any LWP member redirects to
// its anchor so every sibling observes the same break. Real page-table
// manipulation is a Non-goal (task.go's AddressSpace is opaque); this
// keeps only the bookkeeping a caller needs to reason about heap
// growth.
func (k *Kernel) GrowProc(p *Task, n int) error {
	k.lock.Acquire()
	defer k.lock.Release()

	target := p.Anchor
	if target == nil {
		target = p
	}

	next := int64(target.HeapTop) + int64(n)
	if next < 0 {
		next = 0
	}
	target.HeapTop = uint64(next)
	if target.HeapTop > target.Sz {
		target.Sz = target.HeapTop
	}
	return nil
}
