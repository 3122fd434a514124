// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import "testing"

func TestSetCPUShareRejectsOutOfRange(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)

	if err := s.SetCPUShare(p, 0); err != ErrInvalidShare {
		t.Fatalf("share=0: got %v, want ErrInvalidShare", err)
	}
	if err := s.SetCPUShare(p, SHAREMAX+1); err != ErrInvalidShare {
		t.Fatalf("share=SHAREMAX+1: got %v, want ErrInvalidShare", err)
	}
}

func TestSetCPUShareRejectsOverCap(t *testing.T) {
	s, tt := newTestScheduler(8)
	a := forceAnchor(tt, "a")
	b := forceAnchor(tt, "b")
	s.QPush(a)
	s.QPush(b)

	if err := s.SetCPUShare(a, 60); err != nil {
		t.Fatalf("SetCPUShare(a, 60): %v", err)
	}
	if err := s.SetCPUShare(b, 30); err != ErrShareCapExceeded {
		t.Fatalf("SetCPUShare(b, 30) over cap: got %v, want ErrShareCapExceeded", err)
	}
	// Room for exactly 20 more.
	if err := s.SetCPUShare(b, 20); err != nil {
		t.Fatalf("SetCPUShare(b, 20) at cap: %v", err)
	}
}

func TestSetCPUShareMovesOutOfMLFQ(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	if err := s.SetCPUShare(p, 10); err != nil {
		t.Fatalf("SetCPUShare: %v", err)
	}
	if p.mlfqLinked {
		t.Fatalf("mlfqLinked after SetCPUShare: got true, want false")
	}
	if !p.strideLinked {
		t.Fatalf("strideLinked after SetCPUShare: got false, want true")
	}
	if p.Level != -1 {
		t.Fatalf("Level after SetCPUShare: got %d, want -1", p.Level)
	}
}

func TestNextProcTieGoesToMLFQThenAlternates(t *testing.T) {
	s, tt := newTestScheduler(8)
	stride := forceAnchor(tt, "stride")
	best := forceAnchor(tt, "best-effort")
	s.QPush(best)
	if err := s.SetCPUShare(stride, 50); err != nil {
		t.Fatalf("SetCPUShare: %v", err)
	}

	// A freshly admitted stride task's pass starts equal to the MLFQ
	// pseudo-citizen's pass (both 0): a tie, which resolves to the MLFQ
	// side per the "newcomers cannot leapfrog" rule (strict <, not <=).
	if got := s.NextProc(); got != best {
		t.Fatalf("first NextProc (tie): got %v, want best-effort task", got)
	}
	// Charging the MLFQ pseudo-citizen's pass now puts the stride task
	// strictly ahead, so it is picked next.
	if got := s.NextProc(); got != stride {
		t.Fatalf("second NextProc: got %v, want stride task", got)
	}
	// Continuity: the stride task keeps running until its quantum (ssticks) is spent.
	if got := s.NextProc(); got != stride {
		t.Fatalf("third NextProc (continuity): got %v, want stride task", got)
	}
}

// TestTickDrivesStrideShareOverThousandTicks exercises spec.md's
// scenario 2: one task holds a 20% stride share, the other is plain
// MLFQ (share 0). Driving Scheduler.Tick/Pick for 1000 rounds, the
// stride task should receive between 180 and 220 of them, with the
// MLFQ task taking the rest.
func TestTickDrivesStrideShareOverThousandTicks(t *testing.T) {
	s, tt := newTestScheduler(8)
	mlfqTask := forceAnchor(tt, "best-effort")
	strideTask := forceAnchor(tt, "stride")
	s.QPush(mlfqTask)
	if err := s.SetCPUShare(strideTask, 20); err != nil {
		t.Fatalf("SetCPUShare: %v", err)
	}

	strideTicks := 0
	const rounds = 1000
	for i := 0; i < rounds; i++ {
		s.Tick()
		if got := s.Pick(); got == strideTask {
			strideTicks++
		}
	}
	if strideTicks < 180 || strideTicks > 220 {
		t.Fatalf("stride ticks over %d rounds: got %d, want 180..220", rounds, strideTicks)
	}
}

func TestSetCPUShareReducesShareCountOnReassignment(t *testing.T) {
	s, tt := newTestScheduler(8)
	p := forceAnchor(tt, "a")
	s.QPush(p)
	if err := s.SetCPUShare(p, 40); err != nil {
		t.Fatalf("SetCPUShare(40): %v", err)
	}
	if err := s.SetCPUShare(p, 10); err != nil {
		t.Fatalf("SetCPUShare(10): %v", err)
	}
	if s.shares != 10 {
		t.Fatalf("shares after reassignment: got %d, want 10", s.shares)
	}
}
