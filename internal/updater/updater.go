// Package updater hands the device over to the firmware updater: it leaves a
// boot-to-updater marker for the boot loader and restarts the system.
package updater

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/logging"
)

// ErrNoRebootCommand is returned when no reboot command is configured.
var ErrNoRebootCommand = errors.New("updater: no reboot command configured")

// Updater implements core.Updater.
type Updater struct {
	flagFile string
	reboot   []string
	log      *logging.Logger

	run func(name string, args ...string) error
}

// New creates an Updater from the firmware section of the config.
func New(cfg config.FirmwareConfig, log *logging.Logger) *Updater {
	return &Updater{
		flagFile: cfg.FlagFile,
		reboot:   cfg.RebootCommand,
		log:      log.With("component", "updater"),
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// MarkBootToUpdater writes the marker the boot loader checks on next start.
func (u *Updater) MarkBootToUpdater() error {
	if err := os.MkdirAll(filepath.Dir(u.flagFile), 0o755); err != nil {
		return fmt.Errorf("create flag directory: %w", err)
	}
	if err := os.WriteFile(u.flagFile, []byte("updater\n"), 0o644); err != nil {
		return fmt.Errorf("write boot flag: %w", err)
	}
	u.log.Info("boot to updater flagged", "flag_file", u.flagFile)
	return nil
}

// Reboot runs the reboot command.
func (u *Updater) Reboot() error {
	if len(u.reboot) == 0 {
		return ErrNoRebootCommand
	}
	u.log.Warn("rebooting", "command", u.reboot)
	if err := u.run(u.reboot[0], u.reboot[1:]...); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
