// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import "testing"

func newTestScheduler(nproc int) (*Scheduler, *taskTable) {
	tt := newTaskTable(nproc, nil)
	p := policy{
		nproc: nproc, q0: Q0, q1: Q1, q2: Q2,
		q0altmt: Q0ALTMT, q1altmt: Q1ALTMT, bstprd: BSTPRD,
		ssticks: SSTICKS, sharemax: SHAREMAX, gtickets: GTICKETS,
	}
	return newScheduler(tt, p), tt
}

func forceAnchor(tt *taskTable, name string) *Task {
	t, err := tt.alloc(name)
	if err != nil {
		panic(err)
	}
	t.Anchor = t
	t.state = Runnable
	return t
}

func TestQPushStartsAtLevel0(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	if p.Level != 0 {
		t.Fatalf("Level: got %d, want 0", p.Level)
	}
	if !p.mlfqLinked {
		t.Fatalf("mlfqLinked: got false, want true")
	}
	if got := s.NextMLFQ(); got != p {
		t.Fatalf("NextMLFQ: got %v, want %v", got, p)
	}
}

func TestQDownDemotesAfterAllotment(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)

	for i := 0; i < Q0ALTMT-1; i++ {
		if r := s.QDown(p); r != 1 {
			t.Fatalf("QDown(%d): got %d, want 1 (not yet demoted)", i, r)
		}
	}
	if r := s.QDown(p); r != 0 {
		t.Fatalf("QDown at allotment boundary: got %d, want 0 (demoted)", r)
	}
	if p.Level != 1 {
		t.Fatalf("Level after demotion: got %d, want 1", p.Level)
	}
	if p.elapsed != 0 {
		t.Fatalf("elapsed after demotion: got %d, want 0", p.elapsed)
	}
}

func TestQDownNoFurtherThanLevel2(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	s.QMove(p, 2)
	for i := 0; i < Q0ALTMT*4; i++ {
		s.QDown(p)
	}
	if p.Level != 2 {
		t.Fatalf("Level: got %d, want 2 (floor)", p.Level)
	}
}

func TestQBoostResetsToLevel0(t *testing.T) {
	s, tt := newTestScheduler(8)
	a := forceAnchor(tt, "a")
	b := forceAnchor(tt, "b")
	s.QPush(a)
	s.QPush(b)
	s.QMove(a, 2)
	s.QMove(b, 1)

	s.QBoost()

	if a.Level != 0 || b.Level != 0 {
		t.Fatalf("levels after boost: got %d,%d, want 0,0", a.Level, b.Level)
	}
	if a.elapsed != 0 || b.elapsed != 0 {
		t.Fatalf("elapsed after boost: got %d,%d, want 0,0", a.elapsed, b.elapsed)
	}
}

func TestNextMLFQRoundRobinsWithinLevel(t *testing.T) {
	s, tt := newTestScheduler(8)
	a := forceAnchor(tt, "a")
	b := forceAnchor(tt, "b")
	s.QPush(a)
	s.QPush(b)

	// a has exhausted its quantum this slice; NextMLFQ must move on to b.
	a.elapsed = Q0
	if got := s.NextMLFQ(); got != a {
		// first call still returns a: lastPickedID is unassignedIdx, so
		// NextMLFQ scans from the head of level 0, which is a.
		t.Fatalf("first NextMLFQ: got %v, want %v", got, a)
	}
	if got := s.NextMLFQ(); got != b {
		t.Fatalf("second NextMLFQ (a's quantum spent): got %v, want %v", got, b)
	}
}

func TestQMoveRejectsOutOfRangeLevel(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	s.QMove(p, 1)
	if r := s.QMove(p, 5); r != -1 {
		t.Fatalf("QMove out of range: got %d, want -1", r)
	}
	if p.Level != 1 {
		t.Fatalf("Level after rejected QMove: got %d, want unchanged 1", p.Level)
	}
}

// TestTickDrivesMLFQDemotionAndBoost exercises spec.md's scenario 1: a
// lone CPU-bound task stays at level 0 until its allotment is spent,
// demotes one level at a time as further ticks land, and is boosted
// back to level 0 once BSTPRD ticks have passed — all driven purely by
// Scheduler.Tick, not by any direct QDown/QMove call.
func TestTickDrivesMLFQDemotionAndBoost(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	if got := s.NextMLFQ(); got != p {
		t.Fatalf("NextMLFQ: got %v, want %v", got, p)
	}

	for i := 0; i < Q0ALTMT; i++ {
		s.Tick()
	}
	if p.Level != 1 {
		t.Fatalf("Level after %d ticks: got %d, want 1", Q0ALTMT, p.Level)
	}

	for i := 0; i < Q1ALTMT; i++ {
		s.Tick()
	}
	if p.Level != 2 {
		t.Fatalf("Level after %d further ticks: got %d, want 2", Q1ALTMT, p.Level)
	}

	for ticked := Q0ALTMT + Q1ALTMT; ticked < BSTPRD; ticked++ {
		s.Tick()
	}
	if p.Level != 0 {
		t.Fatalf("Level after %d total ticks: got %d, want 0 (boosted)", BSTPRD, p.Level)
	}
}

func TestQPopRemovesFromMLFQ(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	s.QPop(p)
	if p.mlfqLinked {
		t.Fatalf("mlfqLinked after QPop: got true, want false")
	}
	if got := s.NextMLFQ(); got != nil {
		t.Fatalf("NextMLFQ after QPop of sole member: got %v, want nil", got)
	}
}
