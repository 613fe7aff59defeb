package core

// Topics builds the device-scoped topic names.
//
//	topics := core.Topics{Device: "amp:supply"}
//	topics.Status() // "amp:supply:status"
type Topics struct {
	Device string
}

// Relay is the relay command topic, the bare device name.
func (t Topics) Relay() string { return t.Device }

// Status carries the periodic health report.
func (t Topics) Status() string { return t.Device + ":status" }

// Fota carries firmware-update commands.
func (t Topics) Fota() string { return t.Device + ":fota" }

// FotaStatus carries the report requested over Fota.
func (t Topics) FotaStatus() string { return t.Device + ":fota:status" }

// Availability carries the retained online/offline marker.
func (t Topics) Availability() string { return t.Device + ":availability" }
