package updater

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/logging"
)

func TestMarkBootToUpdater(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "state", "boot-to-updater")
	u := New(config.FirmwareConfig{FlagFile: flag}, logging.Discard())

	require.NoError(t, u.MarkBootToUpdater())

	data, err := os.ReadFile(flag)
	require.NoError(t, err)
	assert.Equal(t, "updater\n", string(data))
}

func TestRebootRunsConfiguredCommand(t *testing.T) {
	u := New(config.FirmwareConfig{RebootCommand: []string{"systemctl", "reboot"}}, logging.Discard())

	var got []string
	u.run = func(name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}

	require.NoError(t, u.Reboot())
	assert.Equal(t, []string{"systemctl", "reboot"}, got)
}

func TestRebootErrors(t *testing.T) {
	u := New(config.FirmwareConfig{}, logging.Discard())
	assert.ErrorIs(t, u.Reboot(), ErrNoRebootCommand)

	boom := errors.New("permission denied")
	u = New(config.FirmwareConfig{RebootCommand: []string{"reboot"}}, logging.Discard())
	u.run = func(string, ...string) error { return boom }
	assert.ErrorIs(t, u.Reboot(), boom)
}
