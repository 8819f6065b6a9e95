// Package ksync implements the kernel's scheduling-aware synchronization
// primitives: a counting semaphore, a lock with nested priority
// donation, a Mesa-style condition variable, and a fair reader-writer
// lock built on top of them.
//
// A hardware kernel identifies the running thread through CPU-local
// state and makes donation bookkeeping atomic by disabling interrupts.
// Go has neither: every blocking call here takes the calling
// goroutine's *Thread explicitly, and schedulerMu stands in for
// interrupt masking, serializing updates to thread priority and
// lock-ownership fields.
package ksync

import "sync"

// NoDonation is the donated-priority value carried by a lock that has
// no active donation.
const NoDonation = -1

// schedulerMu serializes all priority and lock-ownership bookkeeping,
// the Go analogue of disabling interrupts around scheduler state.
var schedulerMu sync.Mutex

// mlfqs reports whether the multi-level feedback queue scheduler is
// active. Priority donation is suppressed while it is: the MLFQS
// recomputes priorities on its own schedule and donation would fight
// it.
var mlfqs bool

// SetMLFQS toggles the scheduler mode. It is not safe to call while
// locks are contended.
func SetMLFQS(enabled bool) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	mlfqs = enabled
}

func mlfqsEnabled() bool {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	return mlfqs
}

// Thread is a minimal stand-in for a schedulable thread of control: the
// state priority donation needs to operate on.
type Thread struct {
	Name string

	currPriority  int
	ownedPriority int
	numDonations  int
	desiredLock   *Lock
	heldLocks     []*Lock // donated-to locks first, then acquisition order
}

// NewThread creates a thread with the given base priority.
func NewThread(name string, priority int) *Thread {
	return &Thread{Name: name, currPriority: priority, ownedPriority: priority}
}

// Priority returns the thread's current effective priority, including
// any donation.
func (t *Thread) Priority() int {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	return t.currPriority
}

// SetPriority changes the thread's base priority. If no lock currently
// donates to this thread, the change takes effect immediately;
// otherwise it is recorded and will apply once all donations are
// released.
func (t *Thread) SetPriority(priority int) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	t.ownedPriority = priority
	if t.numDonations == 0 {
		t.currPriority = priority
	}
}

func (t *Thread) removeHeldLock(l *Lock) {
	for i, held := range t.heldLocks {
		if held == l {
			t.heldLocks = append(t.heldLocks[:i], t.heldLocks[i+1:]...)
			return
		}
	}
}

func (t *Thread) pushFrontHeldLock(l *Lock) {
	t.heldLocks = append([]*Lock{l}, t.heldLocks...)
}
