package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
)

func drain(ch core.CommandChannel) []core.CommandType {
	var out []core.CommandType
	for len(ch) > 0 {
		out = append(out, (<-ch).Type)
	}
	return out
}

func TestCheckReportsOnlyChanges(t *testing.T) {
	commands := make(core.CommandChannel, 16)
	w := NewWatcher("wlan0", time.Second, commands, logging.Discard())

	results := []bool{false, false, true, true, false}
	i := 0
	w.probe = func() (bool, error) {
		up := results[i]
		i++
		return up, nil
	}

	ctx := context.Background()
	for range results {
		w.check(ctx)
	}

	assert.Equal(t, []core.CommandType{core.CmdLinkDown, core.CmdLinkUp, core.CmdLinkDown}, drain(commands))
}

func TestProbeErrorCountsAsDown(t *testing.T) {
	commands := make(core.CommandChannel, 4)
	w := NewWatcher("wlan0", time.Second, commands, logging.Discard())
	w.known, w.up = true, true
	w.probe = func() (bool, error) { return true, errors.New("no such interface") }

	w.check(context.Background())

	assert.Equal(t, []core.CommandType{core.CmdLinkDown}, drain(commands))
}

func TestRunStopsOnCancel(t *testing.T) {
	commands := make(core.CommandChannel, 4)
	w := NewWatcher("wlan0", time.Millisecond, commands, logging.Discard())
	w.probe = func() (bool, error) { return true, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Equal(t, core.CmdLinkUp, (<-commands).Type)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestInterfaceUpUnknownInterface(t *testing.T) {
	up, err := interfaceUp("does-not-exist0")
	assert.Error(t, err)
	assert.False(t, up)
}
