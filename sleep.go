// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

// Component F: sleep/wakeup channels, realized as a single sync.Cond
// bound to the kernel's one big lock (kernel.go's Kernel.lock/cond).
// xv6's sleep(chan, lk) releases an arbitrary caller-supplied lock and
// reacquires it on wakeup; here the lock is always the kernel lock, so
// Sleep is just the Cond.Wait idiom with a channel-and-state recheck
// loop guarding against the lost-wakeup and spurious-wakeup cases.

// Sleep implements xv6's sleep(): block the current task on chan until
// a matching Wakeup. Must be called with the kernel lock held; it is
// released for the duration of the wait and reacquired before
// returning, exactly as sync.Cond.Wait does.
func (k *Kernel) Sleep(t *Task, ch Channel) {
	k.sleep(t, ch, SleepNormal)
}

// Sleept is Sleep with an explicit SleepReason, used by ThreadJoin to
// mark a join-wait as schedulable-for-continuity (see schedulable in
// types.go) rather than a plain block.
func (k *Kernel) Sleept(t *Task, ch Channel, reason SleepReason) {
	k.sleep(t, ch, reason)
}

func (k *Kernel) sleep(t *Task, ch Channel, reason SleepReason) {
	invariant(t != nil, "sleep of nil task")
	invariant(k.lock.Holding(), "sleep without kernel lock held")

	t.chanWait = ch
	t.reason = reason
	t.state = Sleeping
	for t.state == Sleeping && t.chanWait == ch && !t.killed.LoadAcquire() {
		k.cond.Wait()
	}
	if t.killed.LoadAcquire() && t.state == Sleeping && t.chanWait == ch {
		t.state = Runnable
		t.chanWait = 0
		t.reason = sleepReasonNone
	}
}

// Wakeup implements xv6's wakeup(): move every task sleeping on ch to
// Runnable and broadcast, so each of their sleep() loops re-checks its
// condition. Matches any sleeper regardless of SleepReason — a plain
// Sleep and a Sleept on the same channel are woken together.
func (k *Kernel) Wakeup(ch Channel) {
	invariant(k.lock.Holding(), "wakeup without kernel lock held")
	woke := false
	for i := range k.tt.slots {
		t := &k.tt.slots[i]
		if t.state == Sleeping && t.chanWait == ch {
			t.state = Runnable
			t.chanWait = 0
			t.reason = sleepReasonNone
			woke = true
		}
	}
	if woke {
		k.cond.Broadcast()
	}
}

// Kill marks t as killed and, if it is currently sleeping, wakes it so
// its next scheduling opportunity can unwind. Mirrors xv6's kill()
// nudging a sleeping victim back onto the run list instead of leaving
// it parked forever.
func (k *Kernel) Kill(t *Task) {
	k.lock.Acquire()
	defer k.lock.Release()
	t.killed.StoreRelease(true)
	if t.state == Sleeping {
		t.state = Runnable
		t.chanWait = 0
		t.reason = sleepReasonNone
		k.cond.Broadcast()
	}
}
