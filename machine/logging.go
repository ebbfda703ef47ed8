package machine

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// controllerLogger adapts a possibly-nil *logiface.Logger into the handful
// of call sites the Controller needs, so every other method can log
// unconditionally instead of nil-checking.
type controllerLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

func newControllerLogger(l *logiface.Logger[*stumpy.Event]) controllerLogger {
	if l == nil {
		l = logiface.New[*stumpy.Event]()
	}
	return controllerLogger{l: l}
}

func (c controllerLogger) scheduled(rec *pendingInterrupt) {
	c.l.Debug().
		Str("kind", rec.kind.String()).
		Int64("when", int64(rec.when)).
		Log("scheduled interrupt")
}

func (c controllerLogger) dispatching(rec *pendingInterrupt) {
	c.l.Debug().
		Str("kind", rec.kind.String()).
		Int64("when", int64(rec.when)).
		Log("dispatching interrupt")
}

func (c controllerLogger) maskEnableDuringHandler() {
	c.l.Err().Log("setMask(On) ignored: a handler is currently running")
}

func (c controllerLogger) preconditionViolation(msg string) {
	c.l.Err().Log("precondition violation: " + msg)
}

func (c controllerLogger) halted(stats Statistics) {
	c.l.Info().
		Int64("totalTicks", int64(stats.TotalTicks)).
		Int64("systemTicks", int64(stats.SystemTicks)).
		Int64("userTicks", int64(stats.UserTicks)).
		Int64("idleTicks", int64(stats.IdleTicks)).
		Int64("numDiskReads", stats.NumDiskReads).
		Int64("numDiskWrites", stats.NumDiskWrites).
		Log("machine halted")
}
