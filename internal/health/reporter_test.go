package health

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampsupply-controller/internal/logging"
)

type fixedVoltage struct {
	mv  int
	err error
}

func (f fixedVoltage) Millivolts() (int, error) { return f.mv, f.err }

func TestBuildReportFormat(t *testing.T) {
	tests := []struct {
		name  string
		image Image
		mv    int
		want  string
	}{
		{"app", ImageApp, 3297, "Image: APP Version: 0.1.1 VDD: 3.297"},
		{"fota", ImageFota, 3300, "Image: FOTA Version: 0.1.1 VDD: 3.300"},
		{"leading zeros", ImageApp, 3005, "Image: APP Version: 0.1.1 VDD: 3.005"},
		{"sub volt", ImageApp, 42, "Image: APP Version: 0.1.1 VDD: 0.042"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter(tt.image, "0.1.1", fixedVoltage{mv: tt.mv}, 20, logging.Discard())
			assert.Equal(t, tt.want, r.BuildReport())
		})
	}
}

func TestBuildReportVoltageFailure(t *testing.T) {
	r := NewReporter(ImageApp, "0.1.1", fixedVoltage{err: errors.New("no adc")}, 20, logging.Discard())
	assert.Equal(t, "Image: APP Version: 0.1.1 VDD: 0.000", r.BuildReport())
}

func TestDue(t *testing.T) {
	r := NewReporter(ImageApp, "0.1.1", nil, 20, logging.Discard())

	due := 0
	for tick := uint32(1); tick <= 60; tick++ {
		if r.Due(tick) {
			due++
		}
	}
	assert.Equal(t, 3, due)
	assert.True(t, r.Due(0))
}

func TestParseImage(t *testing.T) {
	assert.Equal(t, ImageFota, ParseImage("FOTA"))
	assert.Equal(t, ImageApp, ParseImage("app"))
	assert.Equal(t, ImageApp, ParseImage(""))
}

func TestFileVoltage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltage_now")
	require.NoError(t, os.WriteFile(path, []byte("3297000\n"), 0o600))

	mv, err := FileVoltage{Path: path, Divisor: 1000}.Millivolts()
	require.NoError(t, err)
	assert.Equal(t, 3297, mv)

	_, err = FileVoltage{}.Millivolts()
	assert.ErrorIs(t, err, ErrNoVoltageSource)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = FileVoltage{Path: path, Divisor: 1000}.Millivolts()
	assert.Error(t, err)
}
