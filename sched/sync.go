package sched

import (
	"fmt"

	"github.com/joeycumines/go-nachos/machine"
)

// Semaphore is a counting semaphore built directly on Thread sleep/wake,
// per spec §2's "Synchronization primitives (implied)... built on thread
// sleep/wake; specified only where used."
type Semaphore struct {
	name  string
	value int
	queue []*Thread
	s     *Scheduler
}

// NewSemaphore constructs a Semaphore with the given name (for
// diagnostics) and initial value.
func NewSemaphore(s *Scheduler, name string, value int) *Semaphore {
	return &Semaphore{name: name, value: value, s: s}
}

// P (wait/acquire) decrements the value, blocking the calling thread if it
// would go negative.
func (sem *Semaphore) P() {
	old := sem.s.controller.SetMask(machine.MaskOff)
	defer sem.s.controller.SetMask(old)

	for sem.value == 0 {
		sem.queue = append(sem.queue, sem.s.current)
		sem.s.Sleep()
	}
	sem.value--
}

// V (signal/release) increments the value, waking one waiter if any are
// queued.
func (sem *Semaphore) V() {
	old := sem.s.controller.SetMask(machine.MaskOff)
	defer sem.s.controller.SetMask(old)

	sem.value++
	if len(sem.queue) > 0 {
		t := sem.queue[0]
		sem.queue = sem.queue[1:]
		sem.s.ReadyToRun(t)
	}
}

// Lock is a non-reentrant mutual-exclusion lock built on a binary
// Semaphore, matching the conventional Nachos Lock-on-Semaphore
// construction.
type Lock struct {
	name  string
	sem   *Semaphore
	owner *Thread
	s     *Scheduler
}

// NewLock constructs an unheld Lock.
func NewLock(s *Scheduler, name string) *Lock {
	return &Lock{name: name, sem: NewSemaphore(s, name+".sem", 1), s: s}
}

// Acquire blocks until the lock is held by the calling thread. Panics on
// reentrant acquisition by the same thread, a precondition violation.
func (l *Lock) Acquire() {
	if l.owner == l.s.current && l.owner != nil {
		panic(fmt.Sprintf("sched: lock %q reacquired by owner", l.name))
	}
	l.sem.P()
	l.owner = l.s.current
}

// Release hands the lock back. Panics if the caller does not hold it.
func (l *Lock) Release() {
	if l.owner != l.s.current {
		panic(fmt.Sprintf("sched: lock %q released by non-owner", l.name))
	}
	l.owner = nil
	l.sem.V()
}

// IsHeldByCurrentThread reports whether the calling thread owns the lock.
func (l *Lock) IsHeldByCurrentThread() bool { return l.owner == l.s.current }

// Condition is a condition variable associated with a Lock, following the
// Mesa-style semantics conventional in Nachos: Signal wakes at most one
// waiter, and the caller must hold the associated Lock around all three
// operations.
type Condition struct {
	name  string
	lock  *Lock
	queue []*Thread
	s     *Scheduler
}

// NewCondition constructs a Condition guarded by lock.
func NewCondition(s *Scheduler, name string, lock *Lock) *Condition {
	return &Condition{name: name, lock: lock, s: s}
}

// Wait releases the associated lock, blocks until Signal or Broadcast, then
// reacquires the lock before returning. Panics if the caller does not hold
// the lock.
func (c *Condition) Wait() {
	if !c.lock.IsHeldByCurrentThread() {
		panic(fmt.Sprintf("sched: wait on %q without holding its lock", c.name))
	}

	old := c.s.controller.SetMask(machine.MaskOff)
	c.queue = append(c.queue, c.s.current)
	c.lock.Release()
	c.s.Sleep()
	c.s.controller.SetMask(old)

	c.lock.Acquire()
}

// Signal wakes one waiter, if any. Panics if the caller does not hold the
// lock.
func (c *Condition) Signal() {
	if !c.lock.IsHeldByCurrentThread() {
		panic(fmt.Sprintf("sched: signal on %q without holding its lock", c.name))
	}
	if len(c.queue) == 0 {
		return
	}
	old := c.s.controller.SetMask(machine.MaskOff)
	t := c.queue[0]
	c.queue = c.queue[1:]
	c.s.ReadyToRun(t)
	c.s.controller.SetMask(old)
}

// Broadcast wakes every waiter. Panics if the caller does not hold the
// lock.
func (c *Condition) Broadcast() {
	if !c.lock.IsHeldByCurrentThread() {
		panic(fmt.Sprintf("sched: broadcast on %q without holding its lock", c.name))
	}
	old := c.s.controller.SetMask(machine.MaskOff)
	waiters := c.queue
	c.queue = nil
	for _, t := range waiters {
		c.s.ReadyToRun(t)
	}
	c.s.controller.SetMask(old)
}
