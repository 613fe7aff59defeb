package agent

import "ampsupply-controller/internal/core"

// Link and session callbacks. They only move the link state and drive the
// session; the indicator follows through refresh.

func (a *Agent) onLinkUp() {
	a.state.LinkUp = true
	if a.state.Link == core.LinkSessionConnected {
		return
	}
	a.state.Link = core.LinkConnectedNoSession
	a.log.Info("link up, connecting session")
	a.session.Connect()
}

func (a *Agent) onLinkDown() {
	a.state.LinkUp = false
	a.state.Link = core.LinkDisconnected
	a.log.Warn("link down")
	a.session.Disconnect()
}

func (a *Agent) onSessionConnected() {
	a.state.Link = core.LinkSessionConnected
	a.session.Subscribe(a.topics.Relay(), a.topics.Fota())
	// A transition still settling keeps remote commands locked out; the
	// settle timer arms them when it fires.
	if !a.state.Settling {
		a.state.RemoteArmed = true
	}
	a.log.Info("session connected", "remote_armed", a.state.RemoteArmed)
}

// onSessionDisconnected reconnects while the link is up. A disconnect the
// link watcher asked for arrives with the link down, or is superseded by the
// session when the link came back first.
func (a *Agent) onSessionDisconnected() {
	a.session.Reset()
	if !a.state.LinkUp {
		a.state.Link = core.LinkDisconnected
		a.log.Info("session disconnected", "link", a.state.Link.String())
		return
	}
	a.state.Link = core.LinkConnectedNoSession
	a.log.Info("session disconnected, reconnecting")
	a.session.Connect()
}

func (a *Agent) onSessionError(err error) {
	a.state.Link = core.LinkDisconnected
	a.log.Warn("session error", "error", err)
}
