package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
	"ampsupply-controller/internal/timer"
)

// interlock records both relay paths and flags any instant where both are
// energized.
type interlock struct {
	main, dc   bool
	violations int
}

type path struct {
	il   *interlock
	main bool
}

func (p path) Set(active bool) {
	if p.main {
		p.il.main = active
	} else {
		p.il.dc = active
	}
	if p.il.main && p.il.dc {
		p.il.violations++
	}
}

type fixture struct {
	seq     *Sequencer
	state   *core.DeviceState
	clock   *timer.Fake
	il      *interlock
	changes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{state: core.NewState(), clock: timer.NewFake(), il: &interlock{}}
	f.seq = NewSequencer(path{f.il, true}, path{f.il, false}, f.clock, 600*time.Millisecond,
		f.state, func() { f.changes++ }, logging.Discard())
	f.seq.Init()
	f.state.RemoteArmed = true
	return f
}

func TestInitEnergizesDCGround(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.il.main)
	assert.True(t, f.il.dc)
	assert.False(t, f.state.RelayOn)
}

func TestRequestOnBreaksBeforeMake(t *testing.T) {
	f := newFixture(t)

	f.seq.Request(true)
	assert.False(t, f.il.dc, "losing path drops immediately")
	assert.False(t, f.il.main, "winning path waits for settle")
	assert.False(t, f.state.RemoteArmed)
	assert.True(t, f.state.Settling)
	assert.True(t, f.state.RelayOn)

	f.clock.Advance(599 * time.Millisecond)
	assert.False(t, f.il.main)
	assert.False(t, f.state.RemoteArmed)

	f.clock.Advance(time.Millisecond)
	assert.True(t, f.il.main)
	assert.False(t, f.il.dc)
	assert.True(t, f.state.RemoteArmed)
	assert.False(t, f.state.Settling)
	assert.Equal(t, 0, f.il.violations)
	assert.Equal(t, 2, f.changes)
}

func TestRequestOffFromOn(t *testing.T) {
	f := newFixture(t)
	f.seq.Request(true)
	f.clock.Advance(time.Second)

	f.seq.Request(false)
	assert.False(t, f.il.main)
	assert.False(t, f.il.dc)

	f.clock.Advance(600 * time.Millisecond)
	assert.True(t, f.il.dc)
	assert.False(t, f.il.main)
	assert.Equal(t, 0, f.il.violations)
}

func TestSameStateRequestRunsFullCycle(t *testing.T) {
	f := newFixture(t)

	f.seq.Request(false)
	assert.False(t, f.state.RemoteArmed)
	assert.True(t, f.state.Settling)
	assert.True(t, f.seq.Pending())

	f.clock.Advance(600 * time.Millisecond)
	assert.True(t, f.state.RemoteArmed)
	assert.True(t, f.il.dc)
}

func TestLatestRequestWins(t *testing.T) {
	f := newFixture(t)
	settles := 0
	f.seq.onChange = func() {
		if !f.state.Settling {
			settles++
		}
	}

	f.seq.Request(true)
	f.clock.Advance(300 * time.Millisecond)
	f.seq.Request(false)

	f.clock.Advance(300 * time.Millisecond)
	assert.False(t, f.state.RemoteArmed, "superseded timer must not fire")

	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 1, settles)
	assert.True(t, f.il.dc)
	assert.False(t, f.il.main)
	assert.Equal(t, 0, f.il.violations)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestRapidTogglingNeverEnergizesBoth(t *testing.T) {
	f := newFixture(t)

	on := false
	for i := 0; i < 50; i++ {
		on = !on
		f.seq.Request(on)
		f.clock.Advance(time.Duration(i%7) * 100 * time.Millisecond)
	}
	f.clock.Advance(time.Second)

	require.Equal(t, 0, f.il.violations)
	assert.NotEqual(t, f.il.main, f.il.dc, "exactly one path after settling")
	assert.Equal(t, f.state.RelayOn, f.il.main)
}

func TestCutDropsBothAndCancelsSettle(t *testing.T) {
	f := newFixture(t)
	f.seq.Request(true)

	f.seq.Cut()
	f.clock.Advance(time.Second)

	assert.False(t, f.il.main)
	assert.False(t, f.il.dc)
	assert.False(t, f.state.RemoteArmed)
	assert.False(t, f.seq.Pending())
}

func TestStopAbandonsSettleWithoutTouchingOutputs(t *testing.T) {
	f := newFixture(t)
	f.seq.Request(true)

	f.seq.Stop()
	f.clock.Advance(time.Second)

	assert.False(t, f.seq.Pending())
	assert.False(t, f.il.main, "winning path never made")
	assert.False(t, f.il.dc)
	assert.Equal(t, 0, f.clock.Pending())
}
