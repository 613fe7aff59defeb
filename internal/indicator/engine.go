// Package indicator renders the status LED: steady off/on or blinking at one
// of two rates driven by a periodic timer.
package indicator

import (
	"time"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/timer"
)

// Engine owns the LED output and the periodic indicator timer. It never looks
// at device state; it only renders the mode it is given.
type Engine struct {
	led    core.Output
	timers timer.Scheduler
	base   time.Duration
	onTick func()

	mode   core.IndicatorMode
	level  bool
	ticker timer.Handle
}

// NewEngine creates an Engine with no mode applied. onTick runs after every
// blink toggle; the agent hangs the tick counter and health cadence on it.
func NewEngine(led core.Output, timers timer.Scheduler, base time.Duration, onTick func()) *Engine {
	return &Engine{
		led:    led,
		timers: timers,
		base:   base,
		onTick: onTick,
	}
}

// Mode returns the mode last applied.
func (e *Engine) Mode() core.IndicatorMode { return e.mode }

// Level returns the LED level last written.
func (e *Engine) Level() bool { return e.level }

// Period returns the blink period for a mode, 0 for steady modes.
func (e *Engine) Period(m core.IndicatorMode) time.Duration {
	if !m.Blinking() {
		return 0
	}
	return e.base / time.Duration(m.BlinkRate())
}

// SetMode applies a mode. Re-applying the current mode is a no-op, so a
// running blink keeps its phase; switching between the two blink rates
// re-arms the timer at the new period.
func (e *Engine) SetMode(m core.IndicatorMode) {
	if m == e.mode {
		return
	}
	e.cancel()
	e.mode = m

	switch m {
	case core.ModeOff:
		e.render(false)
	case core.ModeOn:
		e.render(true)
	case core.ModeBlinkSlow, core.ModeBlinkFast:
		e.ticker = e.timers.Every(e.Period(m), e.tick)
	}
}

// Stop cancels the periodic timer and forgets the mode, leaving the LED at
// its last level.
func (e *Engine) Stop() {
	e.cancel()
	e.mode = 0
}

func (e *Engine) tick() {
	e.render(!e.level)
	if e.onTick != nil {
		e.onTick()
	}
}

func (e *Engine) render(on bool) {
	e.level = on
	e.led.Set(on)
}

func (e *Engine) cancel() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}
