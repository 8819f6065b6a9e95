package ksync

import (
	"sort"
	"sync"
)

// Cond is a Mesa-style condition variable: signaling and waking are
// not atomic, so callers must recheck their condition in a loop after
// Wait returns. It is always used together with a Lock that the
// caller holds.
type Cond struct {
	mu      sync.Mutex
	waiters []*condWaiter
}

type condWaiter struct {
	thread *Thread
	sem    *Semaphore
}

// NewCond creates an empty condition variable.
func NewCond() *Cond {
	return &Cond{}
}

// Wait atomically releases lock and blocks until signaled, then
// reacquires lock before returning. lock must be held by self.
func (c *Cond) Wait(self *Thread, lock *Lock) {
	w := &condWaiter{thread: self, sem: NewSemaphore(0)}
	c.mu.Lock()
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	lock.Release(self)
	w.sem.Down(self)
	lock.Acquire(self)
}

// Signal wakes the highest-priority waiter, if any. lock must be held
// by self.
func (c *Cond) Signal(self *Thread, lock *Lock) {
	c.mu.Lock()
	if len(c.waiters) == 0 {
		c.mu.Unlock()
		return
	}
	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].thread.Priority() > c.waiters[j].thread.Priority()
	})
	w := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.mu.Unlock()

	w.sem.Up(self)
}

// Broadcast wakes every waiter. lock must be held by self.
func (c *Cond) Broadcast(self *Thread, lock *Lock) {
	for {
		c.mu.Lock()
		empty := len(c.waiters) == 0
		c.mu.Unlock()
		if empty {
			return
		}
		c.Signal(self, lock)
	}
}
