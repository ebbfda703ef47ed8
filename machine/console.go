package machine

import (
	"fmt"
	"io"
)

// ConsoleDevice models two independent interrupt streams: a periodic read
// poll and a per-character write-completion interrupt.
type ConsoleDevice struct {
	controller *Controller

	source io.Reader
	sink   io.Writer

	readHandler  Handler
	writeHandler Handler

	putBusy    bool
	charAvail  bool
	incoming   byte
	readBuf    [1]byte
	readPoll   Handle
	writePend  Handle
	consoleTk  Tick
}

// ConsoleOption configures a ConsoleDevice at construction.
type ConsoleOption func(*ConsoleDevice)

// WithConsoleTicks overrides the ConsoleTime constant.
func WithConsoleTicks(t Tick) ConsoleOption {
	return func(c *ConsoleDevice) { c.consoleTk = t }
}

// NewConsoleDevice constructs a ConsoleDevice polling source for input and
// writing completions against sink. The read poll is scheduled
// immediately, matching the Timer device's self-scheduling convention.
func NewConsoleDevice(controller *Controller, source io.Reader, sink io.Writer, readHandler, writeHandler Handler, opts ...ConsoleOption) *ConsoleDevice {
	c := &ConsoleDevice{
		controller:   controller,
		source:       source,
		sink:         sink,
		readHandler:  readHandler,
		writeHandler: writeHandler,
		consoleTk:    ConsoleTime,
	}
	for _, o := range opts {
		o(c)
	}
	c.scheduleReadPoll()
	return c
}

func (c *ConsoleDevice) scheduleReadPoll() {
	c.readPoll = c.controller.Schedule(c.poll, c.consoleTk, KindConsoleRead)
}

// poll reschedules itself, then, if the input buffer is empty, attempts one
// byte from the source. EOF (or any read error) is treated as "no byte
// available", per spec's I/O-failure-on-console-polling handling.
func (c *ConsoleDevice) poll() {
	c.scheduleReadPoll()

	if c.charAvail {
		return
	}

	n, err := c.source.Read(c.readBuf[:])
	if err != nil || n == 0 {
		return
	}

	c.incoming = c.readBuf[0]
	c.charAvail = true
	c.controller.stats.NumConsoleCharsRead++
	if c.readHandler != nil {
		c.readHandler()
	}
}

// GetChar returns the buffered character, clearing charAvail. Returns
// ErrConsoleEmpty if nothing is buffered; this is a recoverable protocol
// error, not a precondition violation.
func (c *ConsoleDevice) GetChar() (byte, error) {
	if !c.charAvail {
		return 0, ErrConsoleEmpty
	}
	ch := c.incoming
	c.charAvail = false
	return ch, nil
}

// PutChar emits ch to the sink and schedules a write-completion interrupt.
// Returns ErrConsoleBusy if a write is already outstanding.
func (c *ConsoleDevice) PutChar(ch byte) error {
	if c.putBusy {
		return ErrConsoleBusy
	}
	if _, err := c.sink.Write([]byte{ch}); err != nil {
		return fmt.Errorf("machine: console write failed: %w", err)
	}
	c.putBusy = true
	c.writePend = c.controller.Schedule(c.completeWrite, c.consoleTk, KindConsoleWrite)
	return nil
}

func (c *ConsoleDevice) completeWrite() {
	c.putBusy = false
	c.controller.stats.NumConsoleCharsWritten++
	if c.writeHandler != nil {
		c.writeHandler()
	}
}
