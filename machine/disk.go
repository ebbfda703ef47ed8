package machine

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// DiskDevice models an asynchronous single-sector read/write device backed
// by a flat file, with seek + rotational + track-buffer latency billed in
// virtual ticks.
type DiskDevice struct {
	controller *Controller
	file       *os.File

	active     bool
	lastSector int
	bufferInit Tick

	seekTime     Tick
	rotationTime Tick
	numSectors   int
	spt          int // sectors per track
	sectorSize   int
	trackBuffer  bool

	pending Handle
}

// DiskOption configures a DiskDevice at construction.
type DiskOption func(*DiskDevice)

// WithDiskGeometry overrides the default NumSectors/SectorsPerTrack/
// SectorSize geometry.
func WithDiskGeometry(numSectors, sectorsPerTrack, sectorSize int) DiskOption {
	return func(d *DiskDevice) {
		d.numSectors = numSectors
		d.spt = sectorsPerTrack
		d.sectorSize = sectorSize
	}
}

// WithDiskTiming overrides the default SeekTime/RotationTime constants.
func WithDiskTiming(seekTime, rotationTime Tick) DiskOption {
	return func(d *DiskDevice) {
		d.seekTime = seekTime
		d.rotationTime = rotationTime
	}
}

// WithTrackBuffer enables the track-buffer latency optimisation described
// in the spec (disabled by default).
func WithTrackBuffer(enabled bool) DiskOption {
	return func(d *DiskDevice) { d.trackBuffer = enabled }
}

// NewDiskDevice opens (or creates) path as a backing file, validating or
// writing the 4-byte magic and zero-extending the sector area on first use.
func NewDiskDevice(controller *Controller, path string, opts ...DiskOption) (*DiskDevice, error) {
	d := &DiskDevice{
		controller:   controller,
		seekTime:     SeekTime,
		rotationTime: RotationTime,
		numSectors:   NumSectors,
		spt:          SectorsPerTrack,
		sectorSize:   SectorSize,
		lastSector:   0,
	}
	for _, o := range opts {
		o(d)
	}

	f, created, err := openOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("machine: %w: %v", ErrDiskIO, err)
	}
	d.file = f

	if created {
		if err := d.initBackingFile(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("machine: %w: %v", ErrDiskIO, err)
		}
	} else if err := d.validateMagic(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return d, nil
}

func openOrCreate(path string) (f *os.File, created bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if !os.IsNotExist(statErr) {
			return nil, false, statErr
		}
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		return f, true, err
	}
	f, err = os.OpenFile(path, os.O_RDWR, 0o600)
	return f, false, err
}

func (d *DiskDevice) initBackingFile() error {
	var magicBuf [4]byte
	binary.BigEndian.PutUint32(magicBuf[:], diskMagic)
	if _, err := d.file.WriteAt(magicBuf[:], 0); err != nil {
		return err
	}
	lastOffset := int64(4) + int64(d.numSectors)*int64(d.sectorSize) - 1
	if _, err := d.file.WriteAt([]byte{0}, lastOffset); err != nil {
		return err
	}
	return nil
}

func (d *DiskDevice) validateMagic() error {
	var magicBuf [4]byte
	if _, err := d.file.ReadAt(magicBuf[:], 0); err != nil && err != io.EOF {
		return fmt.Errorf("machine: %w: %v", ErrDiskIO, err)
	}
	if binary.BigEndian.Uint32(magicBuf[:]) != diskMagic {
		return fmt.Errorf("machine: %w: bad magic in backing file", ErrDiskIO)
	}
	return nil
}

func (d *DiskDevice) offsetOf(sector int) int64 {
	return 4 + int64(sector)*int64(d.sectorSize)
}

// Close releases the backing file.
func (d *DiskDevice) Close() error { return d.file.Close() }

// ReadRequest synchronously reads sector into buf[off:off+SectorSize], then
// schedules completion to run handler after the computed latency. Requires
// no outstanding request and a sector within range; both are precondition
// violations.
func (d *DiskDevice) ReadRequest(sector int, buf []byte, off int, handler Handler) {
	d.beginRequest(sector)
	n, err := d.file.ReadAt(buf[off:off+d.sectorSize], d.offsetOf(sector))
	if err != nil && err != io.EOF {
		panic(fmt.Sprintf("machine: disk read I/O failure: %v", err))
	}
	_ = n
	d.controller.stats.NumDiskReads++
	latency := d.computeLatency(sector, false)
	d.updateLast(sector)
	d.completeRequest(latency, handler)
}

// WriteRequest synchronously writes buf[off:off+SectorSize] to sector, then
// schedules completion to run handler after the computed latency.
func (d *DiskDevice) WriteRequest(sector int, buf []byte, off int, handler Handler) {
	d.beginRequest(sector)
	if _, err := d.file.WriteAt(buf[off:off+d.sectorSize], d.offsetOf(sector)); err != nil {
		panic(fmt.Sprintf("machine: disk write I/O failure: %v", err))
	}
	d.controller.stats.NumDiskWrites++
	latency := d.computeLatency(sector, true)
	d.updateLast(sector)
	d.completeRequest(latency, handler)
}

func (d *DiskDevice) beginRequest(sector int) {
	if d.active {
		panic("machine: disk request while active")
	}
	if sector < 0 || sector >= d.numSectors {
		panic(fmt.Sprintf("machine: disk sector %d out of range [0,%d)", sector, d.numSectors))
	}
	d.active = true
}

// completeRequest schedules the completion interrupt. updateLast has
// already run against the issue-time clock, per spec §4.3; only clearing
// active and invoking the caller's handler happen at fire time.
func (d *DiskDevice) completeRequest(latency Tick, handler Handler) {
	d.pending = d.controller.Schedule(func() {
		d.active = false
		if handler != nil {
			handler()
		}
	}, latency, KindDisk)
}

func (d *DiskDevice) track(sector int) int { return sector / d.spt }

func moduloDiff(to, from, spt int) int {
	return ((to % spt) - (from % spt) + spt) % spt
}

// computeLatency implements the seek + rotation + transfer model from the
// spec, including the track-buffer optimisation when enabled.
func (d *DiskDevice) computeLatency(newSector int, writing bool) Tick {
	seek := Tick(abs(d.track(newSector)-d.track(d.lastSector))) * d.seekTime

	now := d.controller.TotalTicks()

	if !writing && seek == 0 && d.trackBuffer {
		arrival := now
		sectorAtArrival := int(arrival / d.rotationTime)
		if d.sweptPast(newSector, d.bufferInit, arrival, sectorAtArrival) {
			return d.rotationTime
		}
	}

	arrival := now + seek
	var rotation Tick
	if d.rotationTime > 0 {
		over := arrival % d.rotationTime
		if over > 0 {
			rotation += d.rotationTime - over
		}
	}

	timeAfter := now + seek + rotation
	var sectorAt int
	if d.rotationTime > 0 {
		sectorAt = int(timeAfter / d.rotationTime)
	}
	rotation += Tick(moduloDiff(newSector, sectorAt, d.spt)) * d.rotationTime

	return seek + rotation + d.rotationTime
}

// sweptPast reports whether the rotating head crossed newSector's angular
// position between bufferInit and arrival, the condition under which the
// track-buffer optimisation applies.
func (d *DiskDevice) sweptPast(newSector int, bufferInit, arrival Tick, sectorAtArrival int) bool {
	if d.rotationTime <= 0 {
		return false
	}
	sectorAtInit := int(bufferInit / d.rotationTime)
	swept := moduloDiff(sectorAtArrival, sectorAtInit, d.spt)
	target := moduloDiff(newSector, sectorAtInit, d.spt)
	return arrival > bufferInit && target <= swept
}

func (d *DiskDevice) updateLast(newSector int) {
	seek := Tick(abs(d.track(newSector)-d.track(d.lastSector))) * d.seekTime
	if seek > 0 {
		now := d.controller.TotalTicks()
		var rotation Tick
		if d.rotationTime > 0 {
			arrival := now + seek
			over := arrival % d.rotationTime
			if over > 0 {
				rotation += d.rotationTime - over
			}
			timeAfter := now + seek + rotation
			sectorAt := int(timeAfter / d.rotationTime)
			rotation += Tick(moduloDiff(newSector, sectorAt, d.spt)) * d.rotationTime
		}
		d.bufferInit = now + seek + rotation
	}
	d.lastSector = newSector
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
