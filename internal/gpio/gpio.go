// Package gpio drives the relay and LED output lines through the Linux GPIO
// character device.
package gpio

import (
	"fmt"
	"sync"

	gpiocdev "github.com/warthog618/go-gpiocdev"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/logging"
)

// Bank owns the chip and every line requested from it.
type Bank struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
	log   *logging.Logger
}

// Open opens the GPIO chip device (e.g. "gpiochip0").
func Open(chipName string, log *logging.Logger) (*Bank, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("ampsupply"))
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", chipName, err)
	}
	return &Bank{chip: chip, log: log.With("component", "gpio")}, nil
}

// Output requests a line as an output, initially inactive. Active-low lines
// are inverted by the kernel so Set(true) always means energized or lit.
func (b *Bank) Output(name string, pin config.PinConfig) (*Line, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if pin.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := b.chip.RequestLine(pin.Offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output %s (line %d): %w", name, pin.Offset, err)
	}
	b.lines = append(b.lines, line)

	return &Line{name: name, line: line, log: b.log}, nil
}

// Close releases all lines, then the chip.
func (b *Bank) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, l := range b.lines {
		if err := l.Close(); err != nil {
			b.log.Warn("failed to release line", "error", err)
		}
	}
	b.lines = nil
	return b.chip.Close()
}

// Line is a single output implementing core.Output.
type Line struct {
	name string
	line *gpiocdev.Line
	log  *logging.Logger
}

// Set drives the line. A write failure is logged; there is nothing the
// caller could do about it.
func (l *Line) Set(active bool) {
	v := 0
	if active {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		l.log.Error("failed to set output", "output", l.name, "active", active, "error", err)
	}
}
