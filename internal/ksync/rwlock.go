package ksync

import "github.com/arjunsahu/corekernel/internal/core"

// RWLock is a fair reader-writer lock: readers run concurrently,
// writers need exclusive access, and priority alternates adaptively so
// that a long run of one side never starves the other.
type RWLock struct {
	lock *Lock
	cond *Cond

	activeReaders  uint
	waitingReaders uint
	waitingWriters uint
	writer         *Thread
	consecReaders  uint
	consecWriters  uint
}

// NewRWLock creates an unheld reader-writer lock.
func NewRWLock() *RWLock {
	return &RWLock{lock: NewLock(), cond: NewCond()}
}

// SharedAcquire acquires the lock for reading, blocking if a writer
// holds it or if writers are waiting and readers have run
// core.MaxConsecutiveReaders times in a row.
func (r *RWLock) SharedAcquire(self *Thread) {
	r.lock.Acquire(self)
	r.waitingReaders++

	for r.writer != nil || (r.waitingWriters > 0 && r.consecReaders >= core.MaxConsecutiveReaders) {
		r.cond.Wait(self, r.lock)
	}

	if r.consecWriters > 0 {
		r.consecWriters = 0
	}
	r.consecReaders++

	r.waitingReaders--
	r.activeReaders++
	r.lock.Release(self)
}

// SharedTryAcquire acquires the lock for reading without blocking,
// reporting whether it succeeded.
func (r *RWLock) SharedTryAcquire(self *Thread) bool {
	r.lock.Acquire(self)
	defer r.lock.Release(self)

	if r.writer != nil || r.waitingWriters > 0 {
		return false
	}
	r.activeReaders++
	return true
}

// ExclusiveTryAcquire acquires the lock for writing without blocking,
// reporting whether it succeeded. It bypasses the fairness counters:
// a failed try never registers as a waiting writer.
func (r *RWLock) ExclusiveTryAcquire(self *Thread) bool {
	r.lock.Acquire(self)
	defer r.lock.Release(self)

	if r.writer != nil || r.activeReaders > 0 {
		return false
	}
	r.writer = self
	return true
}

// SharedRelease releases a reader's hold on the lock.
func (r *RWLock) SharedRelease(self *Thread) {
	r.lock.Acquire(self)
	r.activeReaders--
	if r.activeReaders == 0 {
		r.cond.Broadcast(self, r.lock)
	}
	r.lock.Release(self)
}

// SharedToExclusive atomically converts a reader's hold into a
// writer's hold.
func (r *RWLock) SharedToExclusive(self *Thread) {
	r.lock.Acquire(self)
	r.activeReaders--
	r.waitingWriters++

	for r.activeReaders > 0 || r.writer != nil {
		r.cond.Wait(self, r.lock)
	}

	r.waitingWriters--
	r.writer = self
	r.lock.Release(self)
}

// ExclusiveAcquire acquires the lock for writing, blocking if another
// writer holds it, readers are active, or writers have run
// core.MaxConsecutiveWriters times in a row while readers wait.
func (r *RWLock) ExclusiveAcquire(self *Thread) {
	r.lock.Acquire(self)
	r.waitingWriters++

	for r.writer != nil || r.activeReaders > 0 ||
		(r.consecWriters >= core.MaxConsecutiveWriters && r.waitingReaders > 0) {
		r.cond.Wait(self, r.lock)
	}

	if r.consecReaders > 0 {
		r.consecReaders = 0
	}
	r.consecWriters++

	r.waitingWriters--
	r.writer = self
	r.lock.Release(self)
}

// ExclusiveRelease releases a writer's hold on the lock. self must be
// the current writer.
func (r *RWLock) ExclusiveRelease(self *Thread) {
	r.lock.Acquire(self)
	r.writer = nil
	r.cond.Broadcast(self, r.lock)
	r.lock.Release(self)
}

// ExclusiveToShared atomically converts a writer's hold into a
// reader's hold. self must be the current writer.
func (r *RWLock) ExclusiveToShared(self *Thread) {
	r.lock.Acquire(self)
	r.writer = nil
	r.activeReaders++
	r.lock.Release(self)
}

// IsWriter reports whether self is the current writer.
func (r *RWLock) IsWriter(self *Thread) bool {
	r.lock.Acquire(self)
	defer r.lock.Release(self)
	return r.writer == self
}
