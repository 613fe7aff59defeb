// Package relay sequences the two interlocked power paths: AC-main and
// DC-ground. A switch always breaks the losing path first and makes the
// winning path only after the settle delay, so both are never energized at
// the same time.
package relay

import (
	"time"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
	"ampsupply-controller/internal/timer"
)

// Sequencer owns the relay outputs and the one-shot settle timer. It mutates
// the shared device state and calls onChange whenever the indicator mode may
// need to be resolved again.
type Sequencer struct {
	main     core.Output
	dc       core.Output
	timers   timer.Scheduler
	settle   time.Duration
	state    *core.DeviceState
	onChange func()
	log      *logging.Logger

	pending timer.Handle
}

// NewSequencer wires a Sequencer to its outputs and the agent's state.
func NewSequencer(main, dc core.Output, timers timer.Scheduler, settle time.Duration, state *core.DeviceState, onChange func(), log *logging.Logger) *Sequencer {
	return &Sequencer{
		main:     main,
		dc:       dc,
		timers:   timers,
		settle:   settle,
		state:    state,
		onChange: onChange,
		log:      log.With("component", "relay"),
	}
}

// Init drives the boot state: AC-main off, DC-ground on.
func (s *Sequencer) Init() {
	s.main.Set(false)
	s.dc.Set(true)
	s.state.RelayOn = false
}

// Request selects AC-main (on) or DC-ground (!on). Remote commands are locked
// out and the losing path is dropped immediately; the winning path is driven
// when the settle timer fires. A newer request replaces a pending one.
// Same-state requests run the full cycle.
func (s *Sequencer) Request(on bool) {
	s.state.RemoteArmed = false
	s.losing(on).Set(false)
	s.state.RelayOn = on
	s.state.Settling = true
	s.notify()

	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = s.timers.After(s.settle, s.settled)
	s.log.Debug("relay transition started", "relay_on", on, "settle", s.settle)
}

// Cut de-energizes both paths and abandons any pending transition. Remote
// commands stay locked out.
func (s *Sequencer) Cut() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.main.Set(false)
	s.dc.Set(false)
	s.state.Settling = false
	s.state.RemoteArmed = false
	s.log.Warn("both relay paths cut")
}

// Stop abandons a pending transition without touching the outputs.
func (s *Sequencer) Stop() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Pending reports whether a settle timer is armed.
func (s *Sequencer) Pending() bool {
	return s.pending != nil
}

func (s *Sequencer) settled() {
	s.pending = nil
	on := s.state.RelayOn
	s.losing(on).Set(false)
	s.winning(on).Set(true)
	s.state.Settling = false
	s.state.RemoteArmed = true
	s.notify()
	s.log.Info("relay settled", "relay_on", on)
}

func (s *Sequencer) winning(on bool) core.Output {
	if on {
		return s.main
	}
	return s.dc
}

func (s *Sequencer) losing(on bool) core.Output {
	if on {
		return s.dc
	}
	return s.main
}

func (s *Sequencer) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
