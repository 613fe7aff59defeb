package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveModePriority(t *testing.T) {
	tests := []struct {
		name  string
		state DeviceState
		want  IndicatorMode
	}{
		{"boot", DeviceState{}, ModeBlinkFast},
		{"link fault beats transition", DeviceState{Link: LinkDisconnected, Settling: true, RelayOn: true}, ModeBlinkFast},
		{"negotiating beats transition", DeviceState{Link: LinkConnectedNoSession, Settling: true}, ModeBlinkSlow},
		{"transition beats steady", DeviceState{Link: LinkSessionConnected, Settling: true, RelayOn: true}, ModeBlinkFast},
		{"steady on", DeviceState{Link: LinkSessionConnected, RelayOn: true}, ModeOn},
		{"steady off", DeviceState{Link: LinkSessionConnected}, ModeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMode(&tt.state))
		})
	}
}

func TestIndicatorModeBlinkRate(t *testing.T) {
	assert.Equal(t, 0, ModeOff.BlinkRate())
	assert.Equal(t, 0, ModeOn.BlinkRate())
	assert.Equal(t, 3, ModeBlinkSlow.BlinkRate())
	assert.Equal(t, 4, ModeBlinkFast.BlinkRate())
	assert.Equal(t, "UNSET", IndicatorMode(0).String())
}

func TestTopics(t *testing.T) {
	topics := Topics{Device: "amp:supply"}

	assert.Equal(t, "amp:supply", topics.Relay())
	assert.Equal(t, "amp:supply:status", topics.Status())
	assert.Equal(t, "amp:supply:fota", topics.Fota())
	assert.Equal(t, "amp:supply:fota:status", topics.FotaStatus())
	assert.Equal(t, "amp:supply:availability", topics.Availability())
}

func TestSnapshot(t *testing.T) {
	s := &DeviceState{RelayOn: true, RemoteArmed: true, Link: LinkSessionConnected, TickCount: 7}

	snap := s.Snapshot(ModeOn)
	assert.Equal(t, Snapshot{RelayOn: true, RemoteArmed: true, Link: "SESSION_CONNECTED", Mode: "ON"}, snap)
}

func TestEventBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(StateChangedEvent)

	for i := 0; i < 150; i++ {
		bus.Publish(Event{Type: StateChangedEvent, Payload: i})
	}
	assert.Len(t, sub, 100)
	assert.Equal(t, uint64(50), bus.Dropped())

	<-sub
	bus.Publish(Event{Type: RebootEvent})
	assert.Len(t, sub, 99, "not subscribed to reboot events")

	bus.Unsubscribe(sub)
	bus.Publish(Event{Type: StateChangedEvent})
	assert.Len(t, sub, 99)
}
