package health

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNoVoltageSource is returned when no sensor path is configured.
var ErrNoVoltageSource = errors.New("health: no supply voltage source configured")

// FileVoltage reads an integer from a sysfs attribute such as
// /sys/class/power_supply/<psu>/voltage_now and divides it down to millivolts.
type FileVoltage struct {
	Path    string
	Divisor int
}

// Millivolts implements VoltageSource.
func (f FileVoltage) Millivolts() (int, error) {
	if f.Path == "" {
		return 0, ErrNoVoltageSource
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", f.Path, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	div := f.Divisor
	if div <= 0 {
		div = 1
	}
	return raw / div, nil
}
