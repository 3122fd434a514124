// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

// Component G: xem, a counting semaphore whose waiter queue is a
// fixed-capacity FIFO (types.go's Xem.Queue) rather than a generic
// wait list, so a waiter's position is its guarantee of wake order —
// the dequeue side only ever pops the front.
//
// Every xem lazily binds one lock from Kernel's pool the first time
// any operation touches it (Kernel.bindPoolLock), mirroring a kernel
// that ships a fixed array of spinlocks and hands them out on demand
// rather than embedding one per semaphore. XemInit is normally that
// first operation. A binding is never returned to the pool.

// XemInit implements syscall 28: initialize x to value and bind it a
// pool lock. Returns ErrNoFreeLock if the pool is exhausted.
func (k *Kernel) XemInit(x *Xem, value int32) error {
	k.lock.Acquire()
	defer k.lock.Release()
	*x = Xem{Value: value, LockIdx: -1}
	return k.bindPoolLock(x)
}

// XemWait implements syscall 29 (xv6's xem_wait): decrement x's value;
// if it goes negative, enqueue self in FIFO order and block until self
// reaches the front and is popped by a matching XemUnlock. Returns
// ErrXemQueueFull if the waiter queue is already at capacity, in which
// case x's value is restored as if the call never happened.
func (k *Kernel) XemWait(x *Xem, self *Task) error {
	k.lock.Acquire()
	defer k.lock.Release()
	if err := k.bindPoolLock(x); err != nil {
		return err
	}

	x.Value--
	if x.Value >= 0 {
		return nil
	}
	if x.count >= XEMQSIZE {
		x.Value++
		return ErrXemQueueFull
	}
	x.Queue[x.Rear] = self.ID
	x.Rear = (x.Rear + 1) % XEMQSIZE
	x.count++

	ch := xemChannel(x)
	for xemQueued(x, self.ID) {
		if !self.killed.LoadAcquire() {
			k.sleep(self, ch, SleepNormal)
			continue
		}
		// sleep returns at once for a killed task; a killed waiter keeps
		// its place and waits on the cond until an XemUnlock wakes it.
		self.chanWait, self.reason, self.state = ch, SleepNormal, Sleeping
		for self.state == Sleeping && self.chanWait == ch {
			k.cond.Wait()
		}
	}
	return nil
}

// XemUnlock implements syscall 30 (xv6's xem_unlock): increment x's
// value and, if anyone is queued, pop the front waiter and wake it.
func (k *Kernel) XemUnlock(x *Xem) error {
	k.lock.Acquire()
	defer k.lock.Release()
	if err := k.bindPoolLock(x); err != nil {
		return err
	}

	x.Value++
	if x.count > 0 {
		x.Queue[x.Front] = 0
		x.Front = (x.Front + 1) % XEMQSIZE
		x.count--
		k.Wakeup(xemChannel(x))
	}
	return nil
}

// xemQueued reports whether id is still present among x's count live
// entries starting at Front. A waiter loops on this rather than on a
// generic "was I woken" flag so that spurious wakeups of other waiters
// on the same channel (every queued task shares one Channel value)
// just re-sleep instead of racing to consume the unlock.
func xemQueued(x *Xem, id ThreadID) bool {
	for i, idx := 0, x.Front; i < x.count; i, idx = i+1, (idx+1)%XEMQSIZE {
		if x.Queue[idx] == id {
			return true
		}
	}
	return false
}
