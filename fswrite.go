// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern

import "os"

// ThreadSafePWrite writes data to f at off, holding rw's write lock
// for the duration of the call. This is the supplemented feature
// xv6-public's usertests thread_safe_guard exercises: a shared
// log/output file that every LWP in a group may append to, made safe
// by wrapping the write in the same rwlock syscalls a user program
// would call directly.
func ThreadSafePWrite(k *Kernel, rw *RWLock, self *Task, f *os.File, data []byte, off int64) (int, error) {
	if err := k.AcquireWriteLock(rw, self); err != nil {
		return 0, err
	}
	defer k.ReleaseWriteLock(rw, self)
	return f.WriteAt(data, off)
}
