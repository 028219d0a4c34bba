package pressurecycle

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/logging"
)

// Level is the logical level of a digital output.
type Level int

const (
	// LevelUnknown is the shadow value of an output that has never been commanded.
	LevelUnknown Level = -1
	// LevelLow drives the pin low. Outputs on the rig are active-low: open / on.
	LevelLow Level = 0
	// LevelHigh drives the pin high: closed / off.
	LevelHigh Level = 1
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// DAQ is what the controller needs from the data acquisition device.
type DAQ interface {
	// ReadAnalog returns the voltage on an analog input.
	ReadAnalog(ctx context.Context, channel string) (float64, error)
	// SetDigitalOutput drives a digital channel.
	SetDigitalOutput(ctx context.Context, channel string, level Level) error
	// SetDigitalDirection configures a digital channel as output or input.
	SetDigitalDirection(ctx context.Context, channel string, output bool) error
}

// boardDAQ drives the rig through a Viam board component. Analog channels are the board's
// configured analog names, digital channels are GPIO pin names.
type boardDAQ struct {
	board  board.Board
	logger logging.Logger
}

func newBoardDAQ(b board.Board, logger logging.Logger) *boardDAQ {
	return &boardDAQ{board: b, logger: logger}
}

func (d *boardDAQ) ReadAnalog(ctx context.Context, channel string) (float64, error) {
	analog, err := d.board.AnalogByName(channel)
	if err != nil {
		return 0, errors.Wrapf(ErrSensorRead, "analog %q: %v", channel, err)
	}
	val, err := analog.Read(ctx, nil)
	if err != nil {
		return 0, errors.Wrapf(ErrSensorRead, "analog %q: %v", channel, err)
	}
	return float64(val.Value) * float64(val.StepSize), nil
}

func (d *boardDAQ) SetDigitalOutput(ctx context.Context, channel string, level Level) error {
	if level != LevelLow && level != LevelHigh {
		return errors.Wrapf(ErrActuation, "pin %q: cannot drive level %v", channel, level)
	}
	pin, err := d.board.GPIOPinByName(channel)
	if err != nil {
		return errors.Wrapf(ErrActuation, "pin %q: %v", channel, err)
	}
	if err := pin.Set(ctx, level == LevelHigh, nil); err != nil {
		return errors.Wrapf(ErrActuation, "pin %q: %v", channel, err)
	}
	return nil
}

// SetDigitalDirection only resolves the pin: Viam boards switch a GPIO to output on its
// first Set, and inputs are never configured by this controller.
func (d *boardDAQ) SetDigitalDirection(ctx context.Context, channel string, output bool) error {
	if _, err := d.board.GPIOPinByName(channel); err != nil {
		return errors.Wrapf(ErrActuation, "pin %q: %v", channel, err)
	}
	d.logger.Debugf("pin %q direction output=%v", channel, output)
	return nil
}
