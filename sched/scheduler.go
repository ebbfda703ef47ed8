package sched

import (
	"fmt"
	"runtime"

	"github.com/joeycumines/go-nachos/internal/pqueue"
	"github.com/joeycumines/go-nachos/machine"
)

// Scheduler owns the ready queue and drives context switches between
// Thread instances on top of a machine.Controller. It implements
// machine.Dispatcher so the controller can request a yield from within
// OneTick without importing this package.
type Scheduler struct {
	controller *machine.Controller
	policy     Policy

	ready *pqueue.Queue[*Thread]

	current             *Thread
	threadToBeDestroyed *Thread

	userProgramEnabled bool

	logger schedulerLogger
}

var _ machine.Dispatcher = (*Scheduler)(nil)

// NewScheduler constructs a Scheduler bound to controller. The caller is
// responsible for wiring the Dispatcher back into the controller, e.g.
// controller.SetDispatcher(scheduler), since construction order between
// the two is otherwise circular.
func NewScheduler(controller *machine.Controller, opts ...SchedulerOption) *Scheduler {
	cfg := resolveSchedulerOptions(opts)
	s := &Scheduler{
		controller:         controller,
		policy:             cfg.policy,
		userProgramEnabled: cfg.userProgramEnabled,
		logger:             newSchedulerLogger(cfg.logger),
	}
	s.ready = pqueue.New(s.readyKey)
	return s
}

// SetPolicy changes the ready-queue discipline. Per spec, Policy is
// process-wide and mutable only before simulation starts; callers must not
// change it once threads exist in the ready queue.
func (s *Scheduler) SetPolicy(p Policy) { s.policy = p }

// Policy returns the active dispatch policy.
func (s *Scheduler) Policy() Policy { return s.policy }

// Current returns the currently running thread, or nil before Bootstrap.
func (s *Scheduler) Current() *Thread { return s.current }

func (s *Scheduler) readyKey(t *Thread) int64 {
	switch s.policy {
	case PriorityNonPreemptive, PriorityPreemptive:
		return int64(t.priority)
	case SJFNonPreemptive, SJFPreemptive:
		return int64(t.timeLeft)
	default: // FCFS, RoundRobin: pure FIFO
		return 0
	}
}

func (s *Scheduler) requireMasked(op string) {
	if s.controller.GetMask() != machine.MaskOff {
		panic(fmt.Sprintf("sched: %s requires interrupts masked", op))
	}
}

// shouldISwitch implements the table in spec §4.5: false under FCFS/RR/
// *_NP; PRIO_P compares priority (smaller wins); SJF_P compares timeLeft
// (smaller wins). Equality never preempts.
func (s *Scheduler) shouldISwitch(current, candidate *Thread) bool {
	switch s.policy {
	case PriorityPreemptive:
		return candidate.priority < current.priority
	case SJFPreemptive:
		return candidate.timeLeft < current.timeLeft
	default:
		return false
	}
}

// ReadyToRun marks t Ready and inserts it into the ready queue. Callable
// only with interrupts masked.
func (s *Scheduler) ReadyToRun(t *Thread) {
	s.requireMasked("readyToRun")
	t.setStatus(Ready)
	s.ready.Push(t)
	s.logger.readied(t)
}

// FindNextToRun pops the next thread the policy says should run, or
// returns ok=false if the ready queue is empty.
func (s *Scheduler) FindNextToRun() (t *Thread, ok bool) {
	return s.ready.Pop()
}

// Bootstrap installs the calling goroutine itself as the scheduler's
// initial Running thread, with no separate goroutine spawned for it. Every
// Scheduler needs exactly one bootstrap thread before any Fork: Nachos'
// own main() plays this role, continuing to execute kernel code as
// "thread zero" until it yields, sleeps, or finishes like any other
// thread.
func (s *Scheduler) Bootstrap(name string, priority Priority, burst machine.Tick) *Thread {
	if s.current != nil {
		panic("sched: bootstrap called after a thread already exists")
	}
	t := &Thread{
		name:      name,
		priority:  priority,
		timeLeft:  burst,
		status:    Running,
		scheduler: s,
		resume:    make(chan struct{}, 1),
	}
	s.current = t
	s.logger.forked(t, "bootstrap")
	return t
}

// Fork creates a new Thread running runnable, with the given name,
// priority, and estimated burst (used by SJF policies), and schedules it
// according to the policy's fork-time preemption rule (spec §4.5).
func (s *Scheduler) Fork(name string, priority Priority, burst machine.Tick, runnable func()) *Thread {
	if s.current == nil {
		panic("sched: fork called before Bootstrap")
	}

	old := s.controller.SetMask(machine.MaskOff)
	defer s.controller.SetMask(old)

	t := &Thread{
		name:      name,
		priority:  priority,
		timeLeft:  burst,
		status:    JustCreated,
		scheduler: s,
		runnable:  runnable,
		resume:    make(chan struct{}, 1),
	}
	go t.run()

	switch {
	case s.controller.InHandler() && s.shouldISwitch(s.current, t):
		s.ready.Push(t)
		t.setStatus(Ready)
		s.controller.YieldOnReturn()
		s.logger.forked(t, "yield-on-return")
	case s.shouldISwitch(s.current, t):
		prev := s.current
		prev.setStatus(Ready)
		s.ready.Push(prev)
		t.setStatus(Ready)
		s.ready.Push(t)
		next, _ := s.FindNextToRun()
		s.run(next)
		s.logger.forked(t, "immediate-preempt")
	default:
		s.ready.Push(t)
		t.setStatus(Ready)
		s.logger.forked(t, "ready")
	}

	return t
}

// run performs the context switch to next, blocking the calling
// (outgoing) thread until it is itself switched back in - unless the
// outgoing thread is being destroyed, in which case its goroutine is
// terminated immediately after the handoff (via runtime.Goexit), so that
// at most one thread's code is ever progressing, per the single-threaded
// invariant in spec §5. A destroying thread must reach this point with no
// further shared-state mutations pending on its stack.
//
// If user-program support is enabled, the outgoing thread's user state is
// saved immediately before the handoff, and a thread's own user state is
// restored immediately after it is switched back in - save before the
// handoff, restore after resumption, matching spec §4.5's run() step for
// callers with an attached UserState.
func (s *Scheduler) run(next *Thread) {
	s.requireMasked("run")

	prev := s.current
	if s.userProgramEnabled && prev != nil && prev.userState != nil {
		prev.userState.Save()
	}

	next.setStatus(Running)
	s.current = next
	s.logger.switched(prev, next)

	next.resume <- struct{}{}

	if prev != nil && prev.destroying {
		runtime.Goexit()
	}

	<-prev.resume

	if s.userProgramEnabled && prev.userState != nil {
		prev.userState.Restore()
	}

	if s.threadToBeDestroyed != nil {
		s.logger.destroyed(s.threadToBeDestroyed)
		s.threadToBeDestroyed = nil
	}
}

// Yield implements machine.Dispatcher: masks interrupts, and if a
// successor is ready, moves the current thread to Ready and switches to
// it.
func (s *Scheduler) Yield() {
	old := s.controller.SetMask(machine.MaskOff)
	defer s.controller.SetMask(old)

	next, ok := s.FindNextToRun()
	if !ok {
		return
	}
	cur := s.current
	cur.setStatus(Ready)
	s.ready.Push(cur)
	s.run(next)
}

// Sleep blocks the current thread until woken by a future ReadyToRun.
// Requires interrupts already masked by the caller (e.g. a semaphore's P).
func (s *Scheduler) Sleep() {
	s.requireMasked("sleep")

	cur := s.current
	cur.setStatus(Blocked)

	for {
		next, ok := s.FindNextToRun()
		if !ok {
			s.controller.Idle()
			if s.controller.Halted() {
				// Nothing will ever wake this thread: the simulation
				// has naturally terminated while it was blocked (or
				// finishing). Stop its goroutine rather than spin.
				runtime.Goexit()
			}
			continue
		}
		s.run(next)
		return
	}
}

// Finish terminates the current thread. It never returns: the calling
// goroutine is torn down by runtime.Goexit inside the context switch
// performed by Sleep, once a successor has been found.
//
// Finish deliberately does not restore the interrupt mask via defer: the
// goroutine that calls it will not execute any further code of its own.
func (s *Scheduler) Finish() {
	s.controller.SetMask(machine.MaskOff)

	cur := s.current
	cur.destroying = true
	s.threadToBeDestroyed = cur
	s.Sleep()
}
