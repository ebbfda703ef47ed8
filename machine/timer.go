package machine

import "math/rand"

// TimerDevice periodically schedules an interrupt against a Controller. In
// random mode the delay is uniformly drawn from [1, 2*TimerTicks]; in fixed
// mode it is exactly TimerTicks. A realtime wall-clock mode exists in the
// original Nachos for didactic purposes but is explicitly out of scope:
// handlers in this package must never depend on wall time.
type TimerDevice struct {
	controller *Controller
	handler    Handler
	random     bool
	rng        *rand.Rand

	pending Handle
}

// NewTimerDevice constructs a TimerDevice and schedules its first
// interrupt immediately. handler is invoked on every tick; random controls
// jittered vs. fixed period scheduling, matching spec's Timer device
// constructor shape {handler, random, realtime}, realtime intentionally
// omitted.
func NewTimerDevice(controller *Controller, handler Handler, random bool, seed int64) *TimerDevice {
	t := &TimerDevice{
		controller: controller,
		handler:    handler,
		random:     random,
		rng:        rand.New(rand.NewSource(seed)),
	}
	controller.markHasTimer()
	t.reschedule()
	return t
}

// Cancel marks the currently pending timer interrupt cancelled, stopping
// future self-rescheduling from that interrupt (a cancelled timer device
// can still be recreated by calling NewTimerDevice again).
func (t *TimerDevice) Cancel() { t.pending.Cancel() }

func (t *TimerDevice) reschedule() {
	delay := t.controller.TimerTicks()
	if t.random {
		delay = Tick(1 + t.rng.Int63n(int64(2*t.controller.TimerTicks())))
	}
	t.pending = t.controller.Schedule(t.fire, delay, KindTimer)
}

// fire is the interrupt handler installed on the controller. Per spec,
// reschedule happens first so the next interrupt is queued even if the
// caller's handler performs a context switch.
func (t *TimerDevice) fire() {
	t.reschedule()
	if t.handler != nil {
		t.handler()
	}
}
