package pressurecycle

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
)

// RigParts is what a rig is built from besides its config.
type RigParts struct {
	DAQ     DAQ
	Sensors map[string]sensor.Sensor
	Clock   clock.Clock
	Console io.Writer
}

// BuildRig wires the actuator table and the readback registry for cfg. Column order is
// time, pressure, strain gauges, Viam sensor readbacks, then the outputs.
func BuildRig(cfg *Config, parts RigParts, logger logging.Logger) (*Rig, error) {
	if err := cfg.ValidateRig(); err != nil {
		return nil, err
	}
	clk := parts.Clock
	if clk == nil {
		clk = clock.New()
	}

	actuators, err := NewActuators(parts.DAQ, cfg.outputs(), DefaultCommands(), logger)
	if err != nil {
		return nil, err
	}
	shadow := actuators.Shadow()

	vars := []ProcessVariable{
		ClockReadback("t", clk),
		AnalogReadback(defaultPressureID, parts.DAQ, cfg.pressureChannel(), "psi", 2, cfg.Conversion()),
	}
	for i, ch := range cfg.strainGauges() {
		vars = append(vars, AnalogReadback(fmt.Sprintf("sg%d", i+1), parts.DAQ, ch, "V", 3, Identity()))
	}
	for _, r := range cfg.SensorReadbacks {
		s, ok := parts.Sensors[r.Sensor]
		if !ok {
			return nil, configErrorf("sensor %q for readback %q is not available", r.Sensor, r.Name)
		}
		vars = append(vars, SensorReadback(r, s))
	}
	vars = append(vars,
		ShadowReadback("sol1", shadow, OutputVent, ValveFormat),
		ShadowReadback("sol2", shadow, OutputFill, ValveFormat),
		ShadowReadback("sol3", shadow, OutputFastFill, ValveFormat),
		ShadowReadback("dial_reset", shadow, OutputDialPower, SwitchFormat),
		ShadowReadback("camera_trigger", shadow, OutputCameraTrigger, SwitchFormat),
	)

	registry, err := NewRegistry(vars, parts.Console)
	if err != nil {
		return nil, err
	}
	return NewRig(clk, actuators, registry, cfg.PollInterval(), logger), nil
}

// OpenLog starts the run's data log, stamped with the current time.
func (r *Rig) OpenLog(dir string) (*DataLog, error) {
	l, err := r.registry.OpenLog(dir, r.clk.Now())
	if err != nil {
		return nil, err
	}
	r.logger.Infof("logging to %s", l.Path())
	return l, nil
}

// Monitor samples and prints every readback for d without touching any output.
func (r *Rig) Monitor(ctx context.Context, d, interval time.Duration, log bool) error {
	r.logger.Infof("monitoring for %v", d)
	return r.sampleFor(ctx, d, interval, log)
}

// Close closes the data log, if one was opened.
func (r *Rig) Close() error {
	if l := r.registry.Log(); l != nil {
		return l.Close()
	}
	return nil
}
