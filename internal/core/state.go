package core

// LinkState reflects network association and messaging-session status.
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkConnectedNoSession
	LinkSessionConnected
)

func (l LinkState) String() string {
	switch l {
	case LinkDisconnected:
		return "DISCONNECTED"
	case LinkConnectedNoSession:
		return "CONNECTED_NO_SESSION"
	case LinkSessionConnected:
		return "SESSION_CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// DeviceState is the single source of truth for the appliance. It is owned by
// the agent loop and is never shared across goroutines; observers get a
// Snapshot instead.
type DeviceState struct {
	// RelayOn is the selected path: AC-main when true, DC-ground otherwise.
	RelayOn bool
	// RemoteArmed is false while a relay transition is in flight.
	RemoteArmed bool
	// TickCount counts indicator ticks and wraps on overflow.
	TickCount uint32
	Link      LinkState

	// LinkUp is the last status reported by the link watcher.
	LinkUp bool
	// Settling is true while a settle timer is armed.
	Settling bool
	// Halted is set once a reboot to the updater has been started.
	Halted bool
}

// NewState returns the boot state: relay off, remote commands locked out,
// link down.
func NewState() *DeviceState {
	return &DeviceState{}
}

// Snapshot is a read-only copy of the device state for observers outside the
// agent loop.
type Snapshot struct {
	RelayOn     bool   `json:"relay_on"`
	RemoteArmed bool   `json:"remote_armed"`
	Settling    bool   `json:"settling"`
	Link        string `json:"link"`
	Mode        string `json:"mode"`
	Halted      bool   `json:"halted"`
}

// Snapshot copies the observable fields together with the rendered mode.
func (s *DeviceState) Snapshot(mode IndicatorMode) Snapshot {
	return Snapshot{
		RelayOn:     s.RelayOn,
		RemoteArmed: s.RemoteArmed,
		Settling:    s.Settling,
		Link:        s.Link.String(),
		Mode:        mode.String(),
		Halted:      s.Halted,
	}
}
