package sched

import "github.com/joeycumines/go-nachos/machine"

// Priority ranks a thread under the priority policies; numerically smaller
// is more urgent, Max (0) being highest.
type Priority int

const (
	PriorityMax  Priority = 0
	PriorityNorm Priority = 1
	PriorityMin  Priority = 2
)

// Status is a Thread's position in its lifecycle.
type Status int

const (
	JustCreated Status = iota
	Running
	Ready
	Blocked
)

func (s Status) String() string {
	switch s {
	case JustCreated:
		return "just-created"
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// UserState is the seam an external collaborator (an address-space /
// user-register-file implementation) attaches to a Thread so that it
// participates in context switches, per the Thread.{userRegisters[],
// addrSpace?} fields and run()'s save/restore step: Save is called on the
// outgoing thread immediately before a switch away from it; Restore is
// called on a thread immediately before it resumes execution, including
// its very first dispatch. Both run with interrupts already masked and
// only when the owning Scheduler was constructed with
// WithUserProgramSupport(true).
type UserState interface {
	Save()
	Restore()
}

// Thread is a cooperative kernel thread. Instances are created only via
// Scheduler.Fork (or Scheduler.Bootstrap, for the initial thread); at most one Thread may be Status Running at any instant
// (the uniprocessor invariant), enforced by the Scheduler's rendezvous.
type Thread struct {
	name     string
	priority Priority
	timeLeft machine.Tick
	status   Status

	scheduler *Scheduler
	runnable  func()
	userState UserState

	// resume is the rendezvous channel: a send wakes this thread's
	// goroutine, which is blocked receiving from it whenever the thread
	// is not Running. Grounded on microbatch's jobCh/batchCh ping/pong
	// handshake.
	resume chan struct{}

	destroying bool
}

// Name returns the thread's name, for diagnostics.
func (t *Thread) Name() string { return t.name }

// Priority returns the thread's static priority.
func (t *Thread) Priority() Priority { return t.priority }

// TimeLeft returns the thread's estimated remaining burst, used by the SJF
// policies. Nothing in this package updates it automatically; callers
// running under SJF are expected to decrement it as ticks are billed.
func (t *Thread) TimeLeft() machine.Tick { return t.timeLeft }

// SetTimeLeft updates the thread's estimated remaining burst.
func (t *Thread) SetTimeLeft(tl machine.Tick) { t.timeLeft = tl }

// Status returns the thread's current lifecycle status.
func (t *Thread) Status() Status { return t.status }

func (t *Thread) setStatus(s Status) { t.status = s }

// UserState returns the thread's attached user-program state, or nil if
// none was set.
func (t *Thread) UserState() UserState { return t.userState }

// SetUserState attaches s as the thread's user-program state, consulted by
// the Scheduler's context switch logic when WithUserProgramSupport(true)
// was passed to NewScheduler. Typically called once, right after Fork.
func (t *Thread) SetUserState(s UserState) { t.userState = s }

// run is the goroutine body: wait to be scheduled in for the first time,
// restore any attached user state, execute the thread's runnable, then
// finish.
func (t *Thread) run() {
	<-t.resume
	if t.scheduler.userProgramEnabled && t.userState != nil {
		t.userState.Restore()
	}
	t.runnable()
	t.scheduler.Finish()
}
