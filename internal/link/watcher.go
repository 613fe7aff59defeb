// Package link reports uplink status changes to the agent: the network
// interface is up when it is administratively up and holds a routable
// address.
package link

import (
	"context"
	"fmt"
	"net"
	"time"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
)

// Watcher polls one interface and posts CmdLinkUp / CmdLinkDown on change.
type Watcher struct {
	iface    string
	interval time.Duration
	commands core.CommandChannel
	log      *logging.Logger

	probe func() (bool, error)
	known bool
	up    bool
}

// NewWatcher creates a Watcher for the named interface.
func NewWatcher(iface string, interval time.Duration, commands core.CommandChannel, log *logging.Logger) *Watcher {
	w := &Watcher{
		iface:    iface,
		interval: interval,
		commands: commands,
		log:      log.With("component", "link", "interface", iface),
	}
	w.probe = func() (bool, error) { return interfaceUp(iface) }
	return w
}

// Run polls until ctx is cancelled. The first probe always reports.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	up, err := w.probe()
	if err != nil {
		w.log.Debug("link probe failed", "error", err)
		up = false
	}
	if w.known && up == w.up {
		return
	}
	w.known = true
	w.up = up

	cmd := core.Command{Type: core.CmdLinkDown}
	if up {
		cmd.Type = core.CmdLinkUp
	}
	w.log.Info("link status changed", "up", up)

	select {
	case w.commands <- cmd:
	case <-ctx.Done():
	}
}

func interfaceUp(name string) (bool, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", name, err)
	}
	if ifc.Flags&net.FlagUp == 0 {
		return false, nil
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return false, fmt.Errorf("addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipnet.IP.IsGlobalUnicast() {
			return true, nil
		}
	}
	return false, nil
}
