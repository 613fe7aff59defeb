package core

// IndicatorMode is the LED behaviour. The numeric value of the blink modes is
// also their rate divisor against the base blink period.
type IndicatorMode int

const (
	ModeOff       IndicatorMode = 1
	ModeOn        IndicatorMode = 2
	ModeBlinkSlow IndicatorMode = 3
	ModeBlinkFast IndicatorMode = 4
)

func (m IndicatorMode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeOn:
		return "ON"
	case ModeBlinkSlow:
		return "BLINK_SLOW"
	case ModeBlinkFast:
		return "BLINK_FAST"
	default:
		return "UNSET"
	}
}

// Blinking reports whether the mode needs the periodic indicator timer.
func (m IndicatorMode) Blinking() bool {
	return m == ModeBlinkSlow || m == ModeBlinkFast
}

// BlinkRate is the divisor applied to the base period, 0 for steady modes.
func (m IndicatorMode) BlinkRate() int {
	if !m.Blinking() {
		return 0
	}
	return int(m)
}

// ResolveMode derives the indicator mode from the highest-priority active
// condition: link fault, then session negotiation, then a relay transition,
// then the steady relay state.
func ResolveMode(s *DeviceState) IndicatorMode {
	switch {
	case s.Link == LinkDisconnected:
		return ModeBlinkFast
	case s.Link == LinkConnectedNoSession:
		return ModeBlinkSlow
	case s.Settling:
		return ModeBlinkFast
	case s.RelayOn:
		return ModeOn
	default:
		return ModeOff
	}
}
