package machine

import (
	"fmt"

	"github.com/joeycumines/go-nachos/internal/pqueue"
)

// Handler is a callback invoked by the Controller with the mask forced Off.
// Handlers must not call SetMask(MaskOn), block, or invoke the scheduler
// directly; they may schedule new interrupts, mark threads ready (via
// whatever Dispatcher-adjacent state the caller closes over) and request
// YieldOnReturn.
type Handler func()

// pendingInterrupt is the immutable record backing a scheduled interrupt.
// cancelled is the sole mutable field, per spec: a cancelled record stays in
// the queue but is silently skipped when dequeued.
type pendingInterrupt struct {
	handler   Handler
	when      Tick
	kind      Kind
	cancelled bool
}

// Handle is returned by Controller.Schedule; its only capability is Cancel.
type Handle struct {
	rec *pendingInterrupt
}

// Cancel marks the underlying pending interrupt cancelled. Safe to call
// more than once; safe to call after the interrupt has already fired (a
// no-op in that case).
func (h Handle) Cancel() {
	if h.rec != nil {
		h.rec.cancelled = true
	}
}

// Controller is the virtual-time interrupt controller: it owns the
// simulated clock, the pending-interrupt priority queue, the global mask,
// and the current execution mode.
type Controller struct {
	stats Statistics

	mask          Mask
	inHandler     bool
	yieldOnReturn bool
	mode          Mode

	pending *pqueue.Queue[*pendingInterrupt]

	systemTick Tick
	userTick   Tick
	timerTicks Tick

	dispatcher Dispatcher

	hasTimer bool // set by TimerDevice construction, read by checkIfDue
	halted   bool

	logger controllerLogger
}

// NewController constructs a Controller with mask Off, mode System, per
// spec's stated initial InterruptState.
func NewController(opts ...ControllerOption) *Controller {
	cfg := resolveControllerOptions(opts)

	c := &Controller{
		mask:       MaskOff,
		mode:       ModeSystem,
		systemTick: cfg.systemTick,
		userTick:   cfg.userTick,
		timerTicks: cfg.timerTicks,
		dispatcher: cfg.dispatcher,
		logger:     newControllerLogger(cfg.logger),
	}
	c.pending = pqueue.New(func(p *pendingInterrupt) int64 { return int64(p.when) })
	return c
}

// markHasTimer records that a TimerDevice exists, so checkIfDue can avoid
// busy-idling the machine on a lone timer interrupt.
func (c *Controller) markHasTimer() { c.hasTimer = true }

// SetDispatcher wires (or rewires) the scheduler-side yield callback after
// construction, for cases where the scheduler and controller must be built
// in either order.
func (c *Controller) SetDispatcher(d Dispatcher) { c.dispatcher = d }

// Stats returns a snapshot of the controller's monotonic counters.
func (c *Controller) Stats() Statistics { return c.stats }

// TimerTicks exposes the configured Round-Robin quantum / timer period.
func (c *Controller) TimerTicks() Tick { return c.timerTicks }

// TotalTicks returns the current virtual clock reading.
func (c *Controller) TotalTicks() Tick { return c.stats.TotalTicks }

// GetMode returns the controller's current execution mode.
func (c *Controller) GetMode() Mode { return c.mode }

// SetMode forces the execution mode, returning the previous value. Used by
// callers (the scheduler, primarily) that need to bracket a region of code
// as System or User.
func (c *Controller) SetMode(m Mode) Mode {
	old := c.mode
	c.mode = m
	return old
}

// GetMask returns the current interrupt mask.
func (c *Controller) GetMask() Mask { return c.mask }

// InHandler reports whether the controller is currently inside a handler
// invocation, i.e. whether a caller is itself executing from interrupt
// context. The scheduler uses this to decide between the "preempt
// immediately" and "preempt via YieldOnReturn" branches of Fork.
func (c *Controller) InHandler() bool { return c.inHandler }

// Schedule registers handler to run fromNow ticks in the future, tagged
// with kind. fromNow must be strictly positive: scheduling "now" or in the
// past is a precondition violation.
func (c *Controller) Schedule(handler Handler, fromNow Tick, kind Kind) Handle {
	if fromNow <= 0 {
		c.logger.preconditionViolation("schedule requires fromNow > 0")
		panic(fmt.Sprintf("machine: schedule requires fromNow > 0, got %d", fromNow))
	}
	rec := &pendingInterrupt{
		handler: handler,
		when:    c.stats.TotalTicks + fromNow,
		kind:    kind,
	}
	c.pending.Push(rec)
	c.logger.scheduled(rec)
	return Handle{rec: rec}
}

// Cancel marks handle's pending interrupt cancelled. Equivalent to calling
// Handle.Cancel directly; provided for symmetry with Schedule.
func (c *Controller) Cancel(h Handle) { h.Cancel() }

// SetMask installs new as the interrupt mask, returning the previous value.
//
// Enabling interrupts while a handler is running is forbidden: the call
// becomes a no-op (old mask is still returned) and is logged as an error,
// per spec. A transition from Off to On bills exactly one OneTick before
// returning.
func (c *Controller) SetMask(new Mask) Mask {
	old := c.mask
	if new == MaskOn && c.inHandler {
		c.logger.maskEnableDuringHandler()
		return old
	}
	c.mask = new
	if old == MaskOff && new == MaskOn {
		c.OneTick()
	}
	return old
}

// OneTick bills the cost of one kernel or user operation (depending on
// mode) to the clock, then dispatches every interrupt that is now due,
// holding the mask forced Off for the duration. On return, if a handler
// requested YieldOnReturn, the dispatcher (if any) is invoked to switch
// threads.
func (c *Controller) OneTick() {
	var cost Tick
	switch c.mode {
	case ModeSystem:
		cost = c.systemTick
		c.stats.SystemTicks += cost
	case ModeUser:
		cost = c.userTick
		c.stats.UserTicks += cost
	default:
		cost = c.systemTick
		c.stats.SystemTicks += cost
	}
	c.stats.TotalTicks += cost

	savedMask := c.mask
	c.mask = MaskOff
	for c.checkIfDue(false) {
	}
	c.mask = savedMask

	if c.yieldOnReturn {
		c.yieldOnReturn = false
		savedMode := c.mode
		c.mode = ModeSystem
		if c.dispatcher != nil {
			c.dispatcher.Yield()
		}
		c.mode = savedMode
	}
}

// YieldOnReturn requests that, once the currently running handler (or
// OneTick) unwinds, the running thread be preempted via the Dispatcher.
// Callable only from within a handler.
func (c *Controller) YieldOnReturn() { c.yieldOnReturn = true }

// checkIfDue pops and dispatches the head of the pending queue if it is due.
// advanceClock controls whether the clock is allowed to jump forward to
// reach a not-yet-due head (used by Idle), or whether a not-yet-due head
// should simply halt the drain loop (used by OneTick).
func (c *Controller) checkIfDue(advanceClock bool) bool {
	rec, ok := c.pending.Pop()
	if !ok {
		return false
	}

	if rec.when > c.stats.TotalTicks {
		if advanceClock {
			c.stats.IdleTicks += rec.when - c.stats.TotalTicks
			c.stats.TotalTicks = rec.when
		} else {
			c.pending.Push(rec)
			return false
		}
	}

	if c.mode == ModeIdle && c.hasTimer && c.pending.Len() == 0 {
		// Don't let the sole remaining (timer) interrupt busy-idle the
		// machine forever: reinsert and report nothing fired.
		c.pending.Push(rec)
		return false
	}

	if !rec.cancelled {
		c.inHandler = true
		savedMode := c.mode
		c.mode = ModeSystem
		c.logger.dispatching(rec)
		rec.handler()
		c.mode = savedMode
		c.inHandler = false
	}

	return true
}

// Idle is entered when the ready queue is empty and the current thread
// cannot continue. It advances the clock to the next pending interrupt (if
// any) and runs it; if nothing fires (the queue is empty, or the timer
// device's interrupt is the only one pending, see checkIfDue), the
// simulation has naturally terminated and Halt is invoked.
func (c *Controller) Idle() {
	c.mode = ModeIdle
	if c.checkIfDue(true) {
		for c.checkIfDue(false) {
		}
		c.yieldOnReturn = false
		c.mode = ModeSystem
		return
	}
	c.Halt()
}

// Halt prints final statistics. Unlike the original Nachos, it returns
// control to the caller instead of terminating the process outright,
// since embedding a hard os.Exit inside a library is inappropriate; callers
// that want process-exit semantics for a standalone binary should check
// Controller.Halted and exit themselves.
func (c *Controller) Halt() {
	c.halted = true
	c.logger.halted(c.stats)
}

// Halted reports whether Halt has been called.
func (c *Controller) Halted() bool { return c.halted }
