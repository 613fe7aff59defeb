package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
)

func TestNewRegistersEntries(t *testing.T) {
	entries := []config.ScheduleEntry{
		{Spec: "0 7 * * 1-5", Command: "on"},
		{Spec: "30 23 * * *", Command: "off"},
	}

	s, err := New(entries, make(core.CommandChannel, 1), logging.Discard())
	require.NoError(t, err)

	all := s.GetAll()
	assert.Len(t, all, 2)
	var got []Entry
	for _, e := range all {
		got = append(got, e)
	}
	assert.ElementsMatch(t, []Entry{{"0 7 * * 1-5", "on"}, {"30 23 * * *", "off"}}, got)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New([]config.ScheduleEntry{{Spec: "every morning", Command: "on"}}, make(core.CommandChannel, 1), logging.Discard())
	assert.Error(t, err)
}

func TestExecutePostsScheduleCommand(t *testing.T) {
	cmds := make(core.CommandChannel, 1)
	s, err := New(nil, cmds, logging.Discard())
	require.NoError(t, err)

	s.execute("toggle")

	cmd := <-cmds
	assert.Equal(t, core.CmdSchedule, cmd.Type)
	assert.Equal(t, "toggle", string(cmd.Payload))
}

func TestExecuteAfterStopDoesNotBlock(t *testing.T) {
	s, err := New(nil, make(core.CommandChannel), logging.Discard())
	require.NoError(t, err)
	s.Start()
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.execute("on")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("execute blocked after Stop")
	}
}
