package pressurecycle

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// SimOptions tunes the simulated plant. Rates are in psi per second.
type SimOptions struct {
	FillRate     float64
	FastFillRate float64
	VentRate     float64
	LeakRate     float64
	// StrainPerPSI is the strain gauge output in volts per psi.
	StrainPerPSI float64
	// InitialPSI is the pressure left in the vessel at start.
	InitialPSI float64
}

// DefaultSimOptions fill a vessel to the default targets well within the default timeouts.
func DefaultSimOptions() SimOptions {
	return SimOptions{
		FillRate:     5,
		FastFillRate: 20,
		VentRate:     30,
		StrainPerPSI: 0.01,
	}
}

// SimRig is a DAQ backed by a simple vessel model: pressure integrates the open fill and
// vent paths over clock time and is reported through the inverse transducer model.
type SimRig struct {
	clk  clock.Clock
	conv Conversion
	opts SimOptions

	pressureChannel string
	gauges          map[string]int
	outputs         map[string]string

	mu       sync.Mutex
	levels   map[string]Level
	pressure float64
	last     time.Time
}

// NewSimRig simulates the rig described by cfg.
func NewSimRig(cfg *Config, clk clock.Clock, opts SimOptions) *SimRig {
	if clk == nil {
		clk = clock.New()
	}
	s := &SimRig{
		clk:             clk,
		conv:            cfg.Conversion(),
		opts:            opts,
		pressureChannel: cfg.pressureChannel(),
		gauges:          map[string]int{},
		outputs:         map[string]string{},
		levels:          map[string]Level{},
		pressure:        opts.InitialPSI,
		last:            clk.Now(),
	}
	for i, ch := range cfg.strainGauges() {
		s.gauges[ch] = i
	}
	for _, o := range cfg.outputs() {
		s.outputs[o.Channel] = o.ID
		s.levels[o.ID] = LevelUnknown
	}
	return s
}

// Pressure is the simulated vessel pressure in engineering units.
func (s *SimRig) Pressure() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.pressure
}

// ReadAnalog reports the pressure transducer voltage or a strain gauge voltage.
func (s *SimRig) ReadAnalog(ctx context.Context, channel string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	if channel == s.pressureChannel {
		return s.conv.Invert(s.pressure), nil
	}
	if i, ok := s.gauges[channel]; ok {
		return s.opts.StrainPerPSI * s.pressure * (1 + 0.05*float64(i)), nil
	}
	return 0, errors.Wrapf(ErrSensorRead, "simulated rig has no analog channel %q", channel)
}

// SetDigitalOutput switches a simulated valve or device.
func (s *SimRig) SetDigitalOutput(ctx context.Context, channel string, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.outputs[channel]
	if !ok {
		return errors.Wrapf(ErrActuation, "simulated rig has no output on %q", channel)
	}
	s.advance()
	s.levels[id] = level
	return nil
}

// SetDigitalDirection accepts any known output channel.
func (s *SimRig) SetDigitalDirection(ctx context.Context, channel string, output bool) error {
	if _, ok := s.outputs[channel]; !ok {
		return errors.Wrapf(ErrActuation, "simulated rig has no output on %q", channel)
	}
	return nil
}

// advance integrates the vessel since the last call. Callers hold mu.
func (s *SimRig) advance() {
	now := s.clk.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 {
		return
	}
	if s.levels[OutputFill] == LevelLow {
		s.pressure += s.opts.FillRate * dt
	}
	if s.levels[OutputFastFill] == LevelLow {
		s.pressure += s.opts.FastFillRate * dt
	}
	if s.levels[OutputVent] == LevelLow {
		s.pressure -= s.opts.VentRate * dt
	}
	s.pressure -= s.opts.LeakRate * dt
	if s.pressure < 0 {
		s.pressure = 0
	}
}
