package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimerDevice_fixedPeriodHonorsControllerTimerTicks(t *testing.T) {
	c := NewController(WithSystemTick(1), WithTimerTicks(5))
	fired := 0
	NewTimerDevice(c, func() { fired++ }, false, 1)

	for i := 0; i < 5; i++ {
		c.OneTick()
	}
	assert.Equal(t, 1, fired)

	for i := 0; i < 5; i++ {
		c.OneTick()
	}
	assert.Equal(t, 2, fired)
}

func TestTimerDevice_randomPeriodStaysWithinControllerTimerTicksBound(t *testing.T) {
	c := NewController(WithSystemTick(1), WithTimerTicks(5))
	fired := 0
	NewTimerDevice(c, func() { fired++ }, true, 7)

	for i := 0; i < 2*int(c.TimerTicks())+1; i++ {
		c.OneTick()
	}
	assert.GreaterOrEqual(t, fired, 1)
}

func TestTimerDevice_cancelStopsFurtherFiring(t *testing.T) {
	c := NewController(WithSystemTick(1), WithTimerTicks(5))
	fired := 0
	timer := NewTimerDevice(c, func() { fired++ }, false, 1)
	timer.Cancel()

	for i := 0; i < 50; i++ {
		c.OneTick()
	}
	assert.Equal(t, 0, fired)
}
