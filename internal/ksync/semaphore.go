package ksync

import (
	"sort"
	"sync"
)

// Semaphore is a counting semaphore with priority-ordered wakeup:
// Up always wakes the highest-priority waiter, not just the oldest.
type Semaphore struct {
	mu      sync.Mutex
	value   uint
	waiters []*semaWaiter
}

type semaWaiter struct {
	thread *Thread
	ready  chan struct{}
}

// NewSemaphore creates a semaphore with the given initial value.
func NewSemaphore(value uint) *Semaphore {
	return &Semaphore{value: value}
}

// Down waits for the semaphore to become positive and decrements it.
func (s *Semaphore) Down(self *Thread) {
	for {
		s.mu.Lock()
		if s.value > 0 {
			s.value--
			s.mu.Unlock()
			return
		}
		w := &semaWaiter{thread: self, ready: make(chan struct{})}
		s.waiters = append(s.waiters, w)
		s.mu.Unlock()
		<-w.ready
	}
}

// TryDown decrements the semaphore without blocking if it is positive,
// and reports whether it did.
func (s *Semaphore) TryDown(self *Thread) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value > 0 {
		s.value--
		return true
	}
	return false
}

// Up increments the semaphore and wakes the highest-priority waiter,
// if any.
func (s *Semaphore) Up(self *Thread) {
	s.mu.Lock()
	s.value++
	if len(s.waiters) > 0 {
		sort.SliceStable(s.waiters, func(i, j int) bool {
			return s.waiters[i].thread.Priority() > s.waiters[j].thread.Priority()
		})
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.mu.Unlock()
		close(w.ready)
		return
	}
	s.mu.Unlock()
}
