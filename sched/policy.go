package sched

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects the ready-queue discipline and preemption rule used by a
// Scheduler.
type Policy int

const (
	FCFS Policy = iota
	RoundRobin
	PriorityNonPreemptive
	PriorityPreemptive
	SJFNonPreemptive
	SJFPreemptive
)

func (p Policy) String() string {
	switch p {
	case FCFS:
		return "FCFS"
	case RoundRobin:
		return "RR"
	case PriorityNonPreemptive:
		return "PRIO_NP"
	case PriorityPreemptive:
		return "PRIO_P"
	case SJFNonPreemptive:
		return "SJF_NP"
	case SJFPreemptive:
		return "SJF_P"
	default:
		return "unknown"
	}
}

// ErrInvalidPolicy is returned by ParsePolicy for an unrecognised name. Per
// spec, an invalid policy name must be reported to the caller before
// simulation starts, never after.
var ErrInvalidPolicy = errors.New("sched: invalid policy name")

// ParsePolicy maps a configuration-surface policy name to a Policy value.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FCFS":
		return FCFS, nil
	case "RR", "ROUND_ROBIN", "ROUNDROBIN":
		return RoundRobin, nil
	case "PRIO_NP", "PRIORITY_NP":
		return PriorityNonPreemptive, nil
	case "PRIO_P", "PRIORITY_P":
		return PriorityPreemptive, nil
	case "SJF_NP":
		return SJFNonPreemptive, nil
	case "SJF_P":
		return SJFPreemptive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}

// preemptsOnArrival reports whether this policy's shouldISwitch can ever
// fire at fork time (as opposed to only on timer interrupt, as RR does).
func (p Policy) preemptsOnArrival() bool {
	return p == PriorityPreemptive || p == SJFPreemptive
}
