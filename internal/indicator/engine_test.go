package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/timer"
)

type recordingLED struct {
	writes []bool
}

func (r *recordingLED) Set(active bool) { r.writes = append(r.writes, active) }

func setup() (*Engine, *recordingLED, *timer.Fake, *int) {
	led := &recordingLED{}
	clock := timer.NewFake()
	ticks := 0
	e := NewEngine(led, clock, 200*time.Millisecond, func() { ticks++ })
	return e, led, clock, &ticks
}

func TestSteadyModesDriveFixedLevel(t *testing.T) {
	e, led, clock, ticks := setup()

	e.SetMode(core.ModeOn)
	assert.True(t, e.Level())
	e.SetMode(core.ModeOff)
	assert.False(t, e.Level())

	clock.Advance(time.Second)
	assert.Equal(t, []bool{true, false}, led.writes)
	assert.Equal(t, 0, *ticks)
	assert.Equal(t, 0, clock.Pending())
}

func TestBlinkPeriods(t *testing.T) {
	e, _, _, _ := setup()

	assert.Equal(t, 200*time.Millisecond/3, e.Period(core.ModeBlinkSlow))
	assert.Equal(t, 50*time.Millisecond, e.Period(core.ModeBlinkFast))
	assert.Equal(t, time.Duration(0), e.Period(core.ModeOn))
}

func TestBlinkFastTogglesAndTicks(t *testing.T) {
	e, led, clock, ticks := setup()

	e.SetMode(core.ModeBlinkFast)
	clock.Advance(200 * time.Millisecond)

	assert.Equal(t, 4, *ticks)
	assert.Equal(t, []bool{true, false, true, false}, led.writes)
}

func TestSameModeDoesNotRearm(t *testing.T) {
	e, _, clock, ticks := setup()

	e.SetMode(core.ModeBlinkFast)
	clock.Advance(30 * time.Millisecond)
	e.SetMode(core.ModeBlinkFast)
	clock.Advance(20 * time.Millisecond)

	assert.Equal(t, 1, *ticks, "re-applying the mode keeps the running 50ms phase")
	assert.Equal(t, 1, clock.Pending())
}

func TestSlowToFastRearms(t *testing.T) {
	e, _, clock, ticks := setup()

	e.SetMode(core.ModeBlinkSlow)
	clock.Advance(60 * time.Millisecond)
	e.SetMode(core.ModeBlinkFast)
	clock.Advance(49 * time.Millisecond)
	assert.Equal(t, 0, *ticks)

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, *ticks)
	assert.Equal(t, 1, clock.Pending(), "the slow timer must not leak")
}

func TestSteadyModeCancelsBlink(t *testing.T) {
	e, _, clock, ticks := setup()

	e.SetMode(core.ModeBlinkSlow)
	e.SetMode(core.ModeOn)
	clock.Advance(time.Second)

	assert.Equal(t, 0, *ticks)
	assert.True(t, e.Level())
}

func TestStopHaltsTicksAndAllowsReapply(t *testing.T) {
	e, _, clock, ticks := setup()

	e.SetMode(core.ModeBlinkFast)
	clock.Advance(50 * time.Millisecond)
	e.Stop()
	clock.Advance(time.Second)
	assert.Equal(t, 1, *ticks)

	e.SetMode(core.ModeBlinkFast)
	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, 2, *ticks)
}
