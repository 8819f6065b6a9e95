package ksync

// Lock can be held by at most one thread at a time. It is a
// specialization of a binary semaphore that additionally tracks its
// holder and supports priority donation: if a thread with higher
// priority than the holder tries to acquire a held lock, its priority
// is donated to the holder, and transitively to whatever lock the
// holder is itself waiting on.
type Lock struct {
	holder          *Thread
	donatedPriority int
	sem             *Semaphore
}

// NewLock creates an unheld lock.
func NewLock() *Lock {
	return &Lock{donatedPriority: NoDonation, sem: NewSemaphore(1)}
}

// Acquire acquires the lock, blocking until it is available. self must
// not already hold the lock.
func (l *Lock) Acquire(self *Thread) {
	schedulerMu.Lock()
	if l.holder != nil {
		self.desiredLock = l
		if !mlfqs {
			acqPriority := self.currPriority
			if acqPriority > l.holder.currPriority {
				// The chain ends at the first lock whose holder is not
				// itself waiting, or whose holder is mid-handoff (the
				// lock was released but its next owner has not run yet).
				for cur := l; cur != nil && cur.holder != nil; {
					donatePriorityLocked(cur, acqPriority)
					cur = cur.holder.desiredLock
				}
			}
		}
	}
	schedulerMu.Unlock()

	l.sem.Down(self)

	schedulerMu.Lock()
	l.holder = self
	self.desiredLock = nil
	self.heldLocks = append(self.heldLocks, l)
	schedulerMu.Unlock()
}

// donatePriorityLocked raises lock's holder to priority and records the
// donation. schedulerMu must already be held.
func donatePriorityLocked(lock *Lock, priority int) {
	holder := lock.holder
	if priority > holder.currPriority {
		holder.currPriority = priority
	}
	if lock.donatedPriority == NoDonation {
		holder.numDonations++
	}
	lock.donatedPriority = priority
	holder.removeHeldLock(lock)
	holder.pushFrontHeldLock(lock)
}

// TryAcquire acquires the lock without blocking, reporting whether it
// succeeded.
func (l *Lock) TryAcquire(self *Thread) bool {
	if !l.sem.TryDown(self) {
		return false
	}
	schedulerMu.Lock()
	l.holder = self
	self.heldLocks = append(self.heldLocks, l)
	schedulerMu.Unlock()
	return true
}

// Release releases the lock, which must be held by self. If priority
// was donated for this lock, self's effective priority becomes the
// donation recorded on the lock now at the front of its held-lock list
// (the one most recently donated to), or its own base priority if no
// donations remain.
func (l *Lock) Release(self *Thread) {
	schedulerMu.Lock()
	self.removeHeldLock(l)

	if !mlfqs && self.numDonations > 0 && l.donatedPriority != NoDonation {
		self.numDonations--
		if self.numDonations == 0 {
			self.currPriority = self.ownedPriority
		} else {
			self.currPriority = self.heldLocks[0].donatedPriority
		}
	}

	l.holder = nil
	l.donatedPriority = NoDonation
	schedulerMu.Unlock()

	l.sem.Up(self)
}

// HeldBy reports whether self currently holds the lock.
func (l *Lock) HeldBy(self *Thread) bool {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	return l.holder == self
}
