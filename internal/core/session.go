package core

// Session is the messaging channel between the device and its topics.
// Implementations must not block the caller; results come back as commands
// on the agent's CommandChannel.
type Session interface {
	Connect()
	Disconnect()
	// Reset releases per-connection resources after a disconnect.
	Reset()
	Subscribe(topics ...string)
	Publish(topic, payload string)
}

// Updater hands the device over to the firmware updater.
type Updater interface {
	MarkBootToUpdater() error
	// Reboot restarts the device. On success it does not return in practice.
	Reboot() error
}

// Output is a single digital output. Active means energized for a relay and
// lit for the LED; the polarity on the wire is the driver's concern.
type Output interface {
	Set(active bool)
}
