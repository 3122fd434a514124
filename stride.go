// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

// SetCPUShare implements syscall 24: reserve share percent of the CPU
// for p's group, moving it out of MLFQ and into the stride set. Returns
// ErrInvalidShare for share outside 1..80, ErrShareCapExceeded if the
// new total would exceed the policy's share cap.
func (s *Scheduler) SetCPUShare(p *Task, share int) error {
	if share <= 0 || share > s.p.sharemax {
		return ErrInvalidShare
	}
	newTotal := s.shares - p.Share + share
	if newTotal > s.p.sharemax {
		return ErrShareCapExceeded
	}

	switch {
	case p.mlfqLinked:
		s.unlinkMLFQ(p)
	case p.strideLinked:
		s.unlinkStride(p)
		s.shares -= p.Share
	}

	// Newcomers cannot leapfrog: start at min(current stride minimum,
	// the MLFQ pseudo-citizen's pass).
	pass := s.mlfqPass
	if min, ok := s.minPass(); ok && min < pass {
		pass = min
	}

	p.Share = share
	p.Level = -1
	p.Pass = pass
	p.Tickets = uint64(s.p.gtickets) / uint64(share)
	p.elapsed = 0
	s.linkStride(p)
	s.shares += share
	return nil
}

// NextProc selects the next task-group to run across both scheduling
// tiers:
//
//  1. if the last-picked stride task still has unused quantum, keep
//     running it;
//  2. otherwise find the schedulable stride member with the minimum
//     pass;
//  3. if that minimum is strictly below the MLFQ pseudo-citizen's pass,
//     charge the stride citizen and pick it;
//  4. otherwise delegate to NextMLFQ and charge the pseudo-citizen.
func (s *Scheduler) NextProc() *Task {
	if last := s.at(s.lastPickedStride); last != nil && last.strideLinked && schedulable(last) {
		if last.elapsed < s.p.ssticks {
			return last
		}
	}

	cand, min, ok := s.minPassCandidate()
	if ok && min < s.mlfqPass {
		cand.Pass += cand.Tickets
		cand.elapsed = 0
		s.lastPickedStride = cand.selfIdx
		return cand
	}

	picked := s.NextMLFQ()
	// Guarded per spec.md §4.D: shares==100 is unreachable given
	// sharemax<=80, but a hosted scheduler should not panic on an
	// arithmetic edge a policy misconfiguration could still reach.
	if s.shares < 100 {
		s.mlfqPass += uint64(s.p.gtickets) / uint64(100-s.shares)
	}
	s.lastPickedStride = unassignedIdx
	return picked
}

// minPass returns the minimum pass value currently in the stride set,
// and whether the set is non-empty.
func (s *Scheduler) minPass() (uint64, bool) {
	_, min, ok := s.minPassCandidate()
	return min, ok
}

// minPassCandidate scans the stride set for the schedulable member with
// the lowest pass, resolving ties to the first one encountered in list
// order (spec.md §4.D's tie-break rule).
func (s *Scheduler) minPassCandidate() (*Task, uint64, bool) {
	var best *Task
	var bestPass uint64
	for idx := s.strideHead; idx != unassignedIdx; {
		t := s.at(idx)
		if schedulable(t) && (best == nil || t.Pass < bestPass) {
			best, bestPass = t, t.Pass
		}
		idx = t.strideNext
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestPass, true
}

func (s *Scheduler) linkStride(p *Task) {
	p.strideNext = s.strideHead
	p.strideLinked = true
	s.strideHead = p.selfIdx
}

func (s *Scheduler) unlinkStride(p *Task) {
	if s.strideHead == p.selfIdx {
		s.strideHead = p.strideNext
	} else {
		for idx := s.strideHead; idx != unassignedIdx; {
			cur := s.at(idx)
			if cur.strideNext == p.selfIdx {
				cur.strideNext = p.strideNext
				break
			}
			idx = cur.strideNext
		}
	}
	p.strideNext = unassignedIdx
	p.strideLinked = false
	if s.lastPickedStride == p.selfIdx {
		s.lastPickedStride = unassignedIdx
	}
}
