package pressurecycle

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
)

// fakeDAQ records every write. Pressure comes from the pressure func when set, otherwise
// from the analog map.
type fakeDAQ struct {
	mu         sync.Mutex
	analog     map[string]float64
	pressure   func(levels map[string]Level) float64
	levels     map[string]Level
	writes     []string
	directions map[string]bool
	readErr    error
	writeErr   error
	reads      int
}

func newFakeDAQ() *fakeDAQ {
	return &fakeDAQ{
		analog:     map[string]float64{},
		levels:     map[string]Level{},
		directions: map[string]bool{},
	}
}

func (d *fakeDAQ) ReadAnalog(ctx context.Context, channel string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.readErr != nil {
		return 0, d.readErr
	}
	if channel == testPressureChannel && d.pressure != nil {
		return d.pressure(d.levels), nil
	}
	return d.analog[channel], nil
}

func (d *fakeDAQ) SetDigitalOutput(ctx context.Context, channel string, level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.levels[channel] = level
	d.writes = append(d.writes, fmt.Sprintf("%s=%d", channel, level))
	return nil
}

func (d *fakeDAQ) SetDigitalDirection(ctx context.Context, channel string, output bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.directions[channel] = output
	return nil
}

func (d *fakeDAQ) level(channel string) Level {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.levels[channel]
	if !ok {
		return LevelUnknown
	}
	return l
}

func (d *fakeDAQ) writeLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.writes...)
}

const testPressureChannel = "AIN12"

var testOutputs = []Output{
	{OutputVent, "7"},
	{OutputFill, "1"},
	{OutputFastFill, "2"},
	{OutputDialPower, "5"},
	{OutputCameraTrigger, "0"},
}

// newTestRig builds a rig with identity pressure conversion, a data log in a temp dir,
// and a 1ms poll interval.
func newTestRig(t *testing.T, daq DAQ, logger logging.Logger) (*Rig, *bytes.Buffer) {
	t.Helper()
	clk := clock.New()
	actuators, err := NewActuators(daq, testOutputs, DefaultCommands(), logger)
	if err != nil {
		t.Fatalf("NewActuators failed: %v", err)
	}
	shadow := actuators.Shadow()
	console := &bytes.Buffer{}
	registry, err := NewRegistry([]ProcessVariable{
		ClockReadback("t", clk),
		AnalogReadback("p", daq, testPressureChannel, "psi", 2, Identity()),
		ShadowReadback("sol1", shadow, OutputVent, ValveFormat),
		ShadowReadback("sol2", shadow, OutputFill, ValveFormat),
		ShadowReadback("sol3", shadow, OutputFastFill, ValveFormat),
		ShadowReadback("dial_reset", shadow, OutputDialPower, SwitchFormat),
		ShadowReadback("camera_trigger", shadow, OutputCameraTrigger, SwitchFormat),
	}, console)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	rig := NewRig(clk, actuators, registry, time.Millisecond, logger)
	if _, err := rig.OpenLog(t.TempDir()); err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	t.Cleanup(func() { rig.Close() })
	return rig, console
}

// secs is a config pause in seconds.
func secs(v float64) *float64 {
	return &v
}

func fastTiming() CycleTiming {
	return CycleTiming{
		VentedPause:        time.Millisecond,
		HoldPause:          time.Millisecond,
		DialResetPause:     time.Millisecond,
		DialPowerOnPause:   time.Millisecond,
		CameraTriggerPause: time.Millisecond,
		PictureTakingPause: 2 * time.Millisecond,
		FastFillTimeout:    500 * time.Millisecond,
		FillTimeout:        500 * time.Millisecond,
		DeflateTimeout:     500 * time.Millisecond,
	}
}
