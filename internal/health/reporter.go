// Package health builds the device status report published on the status and
// firmware-status topics.
package health

import (
	"fmt"
	"strings"

	"ampsupply-controller/internal/logging"
)

// Image identifies which firmware image is running.
type Image int

const (
	ImageApp Image = iota
	ImageFota
)

func (i Image) String() string {
	if i == ImageFota {
		return "FOTA"
	}
	return "APP"
}

// ParseImage maps the config value ("app" or "fota") to an Image.
func ParseImage(s string) Image {
	if strings.EqualFold(s, "fota") {
		return ImageFota
	}
	return ImageApp
}

// VoltageSource measures the supply voltage.
type VoltageSource interface {
	Millivolts() (int, error)
}

// Reporter formats the status line and owns the tick cadence.
type Reporter struct {
	image   Image
	version string
	vdd     VoltageSource
	every   uint32
	log     *logging.Logger
}

// NewReporter creates a Reporter that is due every `every` indicator ticks.
func NewReporter(image Image, version string, vdd VoltageSource, every uint32, log *logging.Logger) *Reporter {
	if every == 0 {
		every = 20
	}
	return &Reporter{
		image:   image,
		version: version,
		vdd:     vdd,
		every:   every,
		log:     log.With("component", "health"),
	}
}

// BuildReport returns "Image: <APP|FOTA> Version: <semver> VDD: <V>.<mV>".
// A failed voltage reading is reported as 0.000.
func (r *Reporter) BuildReport() string {
	mv := 0
	if r.vdd != nil {
		v, err := r.vdd.Millivolts()
		if err != nil {
			r.log.Warn("failed to read supply voltage", "error", err)
		} else if v > 0 {
			mv = v
		}
	}
	return fmt.Sprintf("Image: %s Version: %s VDD: %d.%03d", r.image, r.version, mv/1000, mv%1000)
}

// Due reports whether the tick count hits the report cadence.
func (r *Reporter) Due(ticks uint32) bool {
	return ticks%r.every == 0
}
