package agent

import (
	"ampsupply-controller/internal/core"
)

// Relay command payloads. Anything else on the relay topic means off.
const (
	relayToggle = "toggle"
	relayOn     = "on"
)

// Firmware command bytes, matched on the first payload byte.
const (
	fotaReboot = 'R'
	fotaInfo   = 'I'
)

// onMessage dispatches an inbound message by topic. Unknown topics and
// malformed payloads are dropped without a reply.
func (a *Agent) onMessage(topic string, payload []byte) {
	switch topic {
	case a.topics.Relay():
		a.handleRelay(string(payload), "remote")
	case a.topics.Fota():
		a.handleFota(payload)
	default:
		a.log.Debug("message on unhandled topic", "topic", topic)
	}
}

// onSchedule runs a cron-scheduled relay command through the same path as a
// remote one.
func (a *Agent) onSchedule(command string) {
	a.handleRelay(command, "schedule")
}

func (a *Agent) handleRelay(command, source string) {
	if !a.state.RemoteArmed {
		a.log.Debug("relay command ignored while locked out", "command", command, "source", source)
		return
	}

	var on bool
	switch command {
	case relayToggle:
		on = !a.state.RelayOn
	case relayOn:
		on = true
	default:
		on = false
	}
	a.log.Info("relay command", "command", command, "source", source, "relay_on", on)
	a.relay.Request(on)
}

func (a *Agent) handleFota(payload []byte) {
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case fotaReboot:
		a.rebootToUpdater()
	case fotaInfo:
		a.session.Publish(a.topics.FotaStatus(), a.reporter.BuildReport())
	}
}

// rebootToUpdater cuts power to the load before handing over to the updater
// and halts the loop; nothing runs on it afterwards.
func (a *Agent) rebootToUpdater() {
	a.relay.Cut()
	a.indicator.Stop()
	a.state.Halted = true
	a.log.Warn("rebooting into firmware updater")

	snap := a.state.Snapshot(a.indicator.Mode())
	a.lastSnapshot = snap
	a.eventBus.Publish(core.Event{Type: core.StateChangedEvent, Payload: snap})
	a.eventBus.Publish(core.Event{Type: core.RebootEvent, Payload: "updater"})

	if err := a.updater.MarkBootToUpdater(); err != nil {
		a.log.Error("failed to flag boot to updater", "error", err)
	}
	if err := a.updater.Reboot(); err != nil {
		a.log.Error("reboot failed", "error", err)
	}
}
