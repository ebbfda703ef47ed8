package sched

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// schedulerLogger adapts a possibly-nil *logiface.Logger into the handful
// of call sites the Scheduler needs.
type schedulerLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

func newSchedulerLogger(l *logiface.Logger[*stumpy.Event]) schedulerLogger {
	if l == nil {
		l = logiface.New[*stumpy.Event]()
	}
	return schedulerLogger{l: l}
}

func (s schedulerLogger) forked(t *Thread, mode string) {
	s.l.Debug().
		Str("thread", t.name).
		Str("mode", mode).
		Log("fork")
}

func (s schedulerLogger) readied(t *Thread) {
	s.l.Trace().Str("thread", t.name).Log("ready")
}

func (s schedulerLogger) switched(prev, next *Thread) {
	e := s.l.Debug()
	if prev != nil {
		e = e.Str("from", prev.name)
	}
	e.Str("to", next.name).Log("context switch")
}

func (s schedulerLogger) destroyed(t *Thread) {
	s.l.Debug().Str("thread", t.name).Log("destroyed")
}
