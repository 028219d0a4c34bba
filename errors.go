package pressurecycle

import "github.com/pkg/errors"

var (
	// ErrSensorRead is returned when the DAQ fails to produce a reading. It is fatal to a run.
	ErrSensorRead = errors.New("sensor read failed")
	// ErrActuation is returned when a digital output cannot be driven.
	ErrActuation = errors.New("actuation failed")
	// ErrConfiguration covers malformed sweep bounds, calibration or registry definitions.
	ErrConfiguration = errors.New("invalid configuration")

	errRunActive = errors.New("a sweep is already running")
	errNoRun     = errors.New("no sweep is running")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
