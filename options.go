// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

// policy bundles the tunables spec.md §4.C/§4.D treat as design-level
// constants. Builder lets a caller override them per Kernel instance;
// the package-level constants in types.go remain the documented
// defaults.
type policy struct {
	nproc            int
	q0, q1, q2       int
	q0altmt, q1altmt int
	bstprd           int
	ssticks          int
	sharemax         int
	gtickets         uint64
}

// Builder configures and constructs a Kernel with a fluent API, mirroring
// the teacher package's queue Builder: sensible defaults, explicit
// overrides only where a caller needs a non-default policy.
//
// Example:
//
//	k := nanokern.New(128).Quantum(5, 10, 20).Boost(200).ShareCap(80).Build()
type Builder struct {
	p policy
}

// New creates a Builder for a Kernel with the given task table size.
// Panics if nproc < 2.
func New(nproc int) *Builder {
	if nproc < 2 {
		panic("nanokern: nproc must be >= 2")
	}
	return &Builder{p: policy{
		nproc:    nproc,
		q0:       Q0,
		q1:       Q1,
		q2:       Q2,
		q0altmt:  Q0ALTMT,
		q1altmt:  Q1ALTMT,
		bstprd:   BSTPRD,
		ssticks:  SSTICKS,
		sharemax: SHAREMAX,
		gtickets: GTICKETS,
	}}
}

// Quantum overrides the per-level MLFQ quanta (ticks before preemption
// within a level).
func (b *Builder) Quantum(q0, q1, q2 int) *Builder {
	b.p.q0, b.p.q1, b.p.q2 = q0, q1, q2
	return b
}

// Allotment overrides the per-level MLFQ allotments (total ticks in a
// level before QDown demotes).
func (b *Builder) Allotment(q0altmt, q1altmt int) *Builder {
	b.p.q0altmt, b.p.q1altmt = q0altmt, q1altmt
	return b
}

// Boost overrides the MLFQ boost period, in ticks.
func (b *Builder) Boost(period int) *Builder {
	b.p.bstprd = period
	return b
}

// StrideQuantum overrides the stride engine's per-pick quantum, in
// ticks.
func (b *Builder) StrideQuantum(ticks int) *Builder {
	b.p.ssticks = ticks
	return b
}

// ShareCap overrides SHAREMAX, the ceiling on the sum of stride shares.
func (b *Builder) ShareCap(max int) *Builder {
	b.p.sharemax = max
	return b
}

// Build constructs the Kernel.
func (b *Builder) Build() *Kernel {
	return newKernel(b.p)
}

// pad is cache-line padding, used on Kernel's hot global counters
// (tick clock, next-id allocator) to avoid false sharing between the
// CPU driving Tick and goroutines reading Task state concurrently —
// the same layout discipline the teacher package applies to its queue
// head/tail indices.
type pad [64]byte

// roundToPow2 rounds n up to the next power of 2. Used to size the xem
// pool.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
