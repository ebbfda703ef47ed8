package machine

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// controllerOptions holds configuration accumulated from ControllerOption
// values, grounded on eventloop's loopOptions/resolveLoopOptions pattern.
type controllerOptions struct {
	systemTick Tick
	userTick   Tick
	timerTicks Tick
	logger     *logiface.Logger[*stumpy.Event]
	dispatcher Dispatcher
}

// ControllerOption configures a Controller created via NewController.
type ControllerOption interface {
	applyController(*controllerOptions)
}

type controllerOptionFunc func(*controllerOptions)

func (f controllerOptionFunc) applyController(o *controllerOptions) { f(o) }

// WithSystemTick overrides the cost billed to a System-mode oneTick.
func WithSystemTick(t Tick) ControllerOption {
	return controllerOptionFunc(func(o *controllerOptions) { o.systemTick = t })
}

// WithUserTick overrides the cost billed to a User-mode oneTick.
func WithUserTick(t Tick) ControllerOption {
	return controllerOptionFunc(func(o *controllerOptions) { o.userTick = t })
}

// WithTimerTicks overrides the Round-Robin quantum / timer period reported
// to devices that ask the controller for it.
func WithTimerTicks(t Tick) ControllerOption {
	return controllerOptionFunc(func(o *controllerOptions) { o.timerTicks = t })
}

// WithControllerLogger attaches a structured logger. When omitted, a no-op
// logger is used.
func WithControllerLogger(l *logiface.Logger[*stumpy.Event]) ControllerOption {
	return controllerOptionFunc(func(o *controllerOptions) { o.logger = l })
}

// WithDispatcher wires the scheduler-side Thread.yield callback, invoked
// from OneTick when yieldOnReturn is set (Idle clears yieldOnReturn without
// invoking it). See Dispatcher for why this is an interface rather than a
// direct import.
func WithDispatcher(d Dispatcher) ControllerOption {
	return controllerOptionFunc(func(o *controllerOptions) { o.dispatcher = d })
}

func resolveControllerOptions(opts []ControllerOption) *controllerOptions {
	cfg := &controllerOptions{
		systemTick: SystemTick,
		userTick:   UserTick,
		timerTicks: TimerTicks,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyController(cfg)
	}
	return cfg
}
