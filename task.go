// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import "code.hybscloud.com/atomix"

// AddressSpace is the external collaborator the task table asks to
// mint and release an address-space handle. nanokern treats the
// returned handle as opaque; page tables, demand paging, and the rest
// of memory management are out of scope (spec.md §1 Non-goals) and live
// entirely on the other side of this seam.
type AddressSpace interface {
	// New allocates an address space of at least size bytes, copying
	// from parent if non-nil (fork semantics).
	New(size uint64, parent any) (any, error)
	// Free releases an address space handle.
	Free(any)
}

// nullAddressSpace is the AddressSpace every Kernel uses (Builder has
// no option to supply another): it mints inert handles so the scheduler
// core can be exercised without a real memory manager wired in.
type nullAddressSpace struct{}

func (nullAddressSpace) New(size uint64, parent any) (any, error) { return new(struct{}), nil }
func (nullAddressSpace) Free(any)                                 {}

// taskTable is the fixed-capacity task array (component B). All
// state-changing operations require the Kernel's scheduler lock held.
type taskTable struct {
	_       pad
	nextID  atomix.Uint64
	_       pad
	slots   []Task
	addrs   AddressSpace
	initTID ThreadID
}

func newTaskTable(nproc int, addrs AddressSpace) *taskTable {
	if addrs == nil {
		addrs = nullAddressSpace{}
	}
	tt := &taskTable{slots: make([]Task, nproc), addrs: addrs}
	for i := range tt.slots {
		tt.slots[i].selfIdx = i
		tt.slots[i].mlfqPrev, tt.slots[i].mlfqNext = unassignedIdx, unassignedIdx
		tt.slots[i].strideNext = unassignedIdx
	}
	return tt
}

// alloc scans for an Unused slot, transitions it to Embryo, and assigns
// a fresh id. Returns ErrNoFreeTask if the table is full.
func (tt *taskTable) alloc(name string) (*Task, error) {
	for i := range tt.slots {
		if tt.slots[i].state == Unused {
			t := &tt.slots[i]
			idx := t.selfIdx
			*t = Task{}
			t.selfIdx = idx
			t.mlfqPrev, t.mlfqNext = unassignedIdx, unassignedIdx
			t.strideNext = unassignedIdx
			t.ID = ThreadID(tt.nextID.AddAcqRel(1))
			t.Name = name
			t.state = Embryo
			return t, nil
		}
	}
	return nil, ErrNoFreeTask
}

// free returns a Zombie task's slot to Unused. Panics if t is not
// Zombie: freeing a live task is an invariant violation, not a
// programmer error a caller can usefully recover from.
func (tt *taskTable) free(t *Task) {
	invariant(t.state == Zombie, "free of non-zombie task")
	if t.AddrSpace != nil && !t.IsLWP() {
		tt.addrs.Free(t.AddrSpace)
	}
	idx := t.selfIdx
	*t = Task{}
	t.selfIdx = idx
	t.mlfqPrev, t.mlfqNext = unassignedIdx, unassignedIdx
	t.strideNext = unassignedIdx
}

// byID returns the slot with the given id, or nil.
func (tt *taskTable) byID(id ThreadID) *Task {
	for i := range tt.slots {
		if tt.slots[i].state != Unused && tt.slots[i].ID == id {
			return &tt.slots[i]
		}
	}
	return nil
}

// children returns every task whose Parent is p.
func (tt *taskTable) children(p *Task) []*Task {
	var out []*Task
	for i := range tt.slots {
		if tt.slots[i].Parent == p {
			out = append(out, &tt.slots[i])
		}
	}
	return out
}

// siblings returns every task sharing anchor's LWP group, anchor
// included.
func (tt *taskTable) siblings(anchor *Task) []*Task {
	var out []*Task
	for i := range tt.slots {
		t := &tt.slots[i]
		if t.state == Unused {
			continue
		}
		if t == anchor || t.Anchor == anchor {
			out = append(out, t)
		}
	}
	return out
}
