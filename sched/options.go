package sched

import "github.com/joeycumines/logiface"
import "github.com/joeycumines/stumpy"

// schedulerOptions holds configuration accumulated from SchedulerOption
// values, grounded on eventloop's loopOptions/resolveLoopOptions pattern.
type schedulerOptions struct {
	policy             Policy
	userProgramEnabled bool
	logger             *logiface.Logger[*stumpy.Event]
}

// SchedulerOption configures a Scheduler created via NewScheduler.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions)
}

type schedulerOptionFunc func(*schedulerOptions)

func (f schedulerOptionFunc) applyScheduler(o *schedulerOptions) { f(o) }

// WithPolicy sets the initial dispatch policy. Defaults to FCFS.
func WithPolicy(p Policy) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) { o.policy = p })
}

// WithUserProgramSupport enables save/restore of user CPU register state
// across context switches, per spec's run() description. Threads created
// in this mode are expected to carry user register state externally; this
// package only flips the flag that run() consults.
func WithUserProgramSupport(enabled bool) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) { o.userProgramEnabled = enabled })
}

// WithSchedulerLogger attaches a structured logger. When omitted, a no-op
// logger is used.
func WithSchedulerLogger(l *logiface.Logger[*stumpy.Event]) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) { o.logger = l })
}

func resolveSchedulerOptions(opts []SchedulerOption) *schedulerOptions {
	cfg := &schedulerOptions{policy: FCFS}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyScheduler(cfg)
	}
	return cfg
}
