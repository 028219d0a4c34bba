package pressurecycle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

const (
	inflatingTripMessage = "inflating is taking too long, possible out-leak?"
	deflatingTripMessage = "deflating is taking too long, possible in-leak?"
)

// CycleTiming holds the pauses and timeouts of one cycle.
type CycleTiming struct {
	VentedPause        time.Duration
	HoldPause          time.Duration
	DialResetPause     time.Duration
	DialPowerOnPause   time.Duration
	CameraTriggerPause time.Duration
	PictureTakingPause time.Duration
	FastFillTimeout    time.Duration
	FillTimeout        time.Duration
	DeflateTimeout     time.Duration
}

// CycleParams configures a sweep.
type CycleParams struct {
	Sweep SweepPlan
	// PressureID is the readback the stop conditions watch.
	PressureID string
	// FastFillMargin: below target minus this, the fast-fill path is used first.
	FastFillMargin float64
	// LowThreshold is the pressure below which the vessel counts as vented.
	LowThreshold float64
	Timing       CycleTiming
}

// Validate checks the sweep and the thresholds.
func (p CycleParams) Validate() error {
	if err := p.Sweep.Validate(); err != nil {
		return err
	}
	if p.PressureID == "" {
		return configErrorf("no pressure readback configured")
	}
	if p.FastFillMargin < 0 {
		return configErrorf("fast fill margin must not be negative, got %v", p.FastFillMargin)
	}
	if p.LowThreshold >= p.Sweep.StartPSI {
		return configErrorf("vent threshold %v must be below the first target %v", p.LowThreshold, p.Sweep.StartPSI)
	}
	t := p.Timing
	for name, d := range map[string]time.Duration{
		"fast fill timeout": t.FastFillTimeout,
		"fill timeout":      t.FillTimeout,
		"deflate timeout":   t.DeflateTimeout,
	} {
		if d <= 0 {
			return configErrorf("%s must be positive, got %v", name, d)
		}
	}
	return nil
}

// CycleRecord summarizes one completed inflate/deflate cycle.
type CycleRecord struct {
	Target          float64
	Cycle           int
	PressureReached float64
	InflateTime     time.Duration
	DeflateTime     time.Duration
}

// CycleStatus is a point-in-time view of a sweep.
type CycleStatus struct {
	State       CycleState
	Target      float64
	TargetIndex int
	Targets     int
	Cycle       int
	Completed   int
	Last        *CycleRecord
}

// Cycle sequences VENTED -> INFLATING -> HOLDING -> DEFLATING -> VENTED across a sweep.
type Cycle struct {
	rig    *Rig
	params CycleParams
	logger logging.Logger
	state  *stateMachine

	mu      sync.Mutex
	status  CycleStatus
	current CycleRecord
}

// NewCycle validates params against the rig's registry.
func NewCycle(rig *Rig, params CycleParams, logger logging.Logger) (*Cycle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	found := false
	for _, id := range rig.registry.Header() {
		found = found || id == params.PressureID
	}
	if !found {
		return nil, configErrorf("pressure readback %q is not in the registry", params.PressureID)
	}
	return &Cycle{
		rig:    rig,
		params: params,
		logger: logger,
		state:  &stateMachine{logger: logger},
		status: CycleStatus{Targets: len(params.Sweep.Targets())},
	}, nil
}

// State is the current phase.
func (c *Cycle) State() CycleState {
	return c.state.current()
}

// Status returns a copy of the sweep progress.
func (c *Cycle) Status() CycleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.status
	s.State = c.state.current()
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

// Run initializes the rig, vents it, and runs the whole sweep. It returns a tripped outcome
// when the interlock fired, including when ctx is cancelled mid-run. Sensor, actuation and
// configuration errors are returned as errors after a best-effort trip to the safe state.
func (c *Cycle) Run(ctx context.Context) (Outcome, error) {
	out, err := c.run(ctx)
	switch {
	case err == nil:
		return out, nil
	case ctx.Err() != nil:
		return c.rig.interlock.Trip(ctx, "cycle stopped: "+ctx.Err().Error())
	default:
		if _, tripErr := c.rig.interlock.Trip(ctx, "cycle aborted: "+err.Error()); tripErr != nil {
			c.logger.Errorw("could not reach safe state after fatal error", "error", tripErr)
		}
		return out, err
	}
}

func (c *Cycle) run(ctx context.Context) (Outcome, error) {
	if err := c.initialize(ctx); err != nil {
		return advance, errors.Wrap(err, "initializing rig")
	}

	// Vent whatever is left in the vessel before the first cycle.
	c.state.change(StateDeflating)
	if out, err := c.deflating(ctx, false); err != nil || out.Tripped {
		return out, err
	}
	c.state.change(StateVented)

	for i, target := range c.params.Sweep.Targets() {
		for n := 0; n < c.params.Sweep.CyclesPerStep; n++ {
			c.mu.Lock()
			c.status.Target = target
			c.status.TargetIndex = i
			c.status.Cycle = n
			c.current = CycleRecord{Target: target, Cycle: n}
			c.mu.Unlock()

			if out, err := c.runCycle(ctx, target); err != nil || out.Tripped {
				return out, err
			}
		}
	}
	c.logger.Infof("sweep complete: %d cycles", c.Status().Completed)
	return advance, nil
}

func (c *Cycle) initialize(ctx context.Context) error {
	a := c.rig.actuators
	if err := a.InitDirections(ctx); err != nil {
		return err
	}
	for _, name := range []string{CmdVentClose, CmdFillClose, CmdFastFillClose, CmdDialOff} {
		if err := a.Command(ctx, name); err != nil {
			return err
		}
	}
	if err := c.rig.sleep(ctx, c.params.Timing.DialResetPause); err != nil {
		return err
	}
	if err := a.Command(ctx, CmdDialOn); err != nil {
		return err
	}
	return c.rig.sleep(ctx, c.params.Timing.DialPowerOnPause)
}

// runCycle moves forward through the phases once, starting at whatever the current state
// is, and stops after the vessel is vented again.
func (c *Cycle) runCycle(ctx context.Context, target float64) (Outcome, error) {
	if c.state.current() == StateVented {
		if err := c.vented(ctx); err != nil {
			return advance, err
		}
		c.state.change(StateInflating)
	}
	if c.state.current() == StateInflating {
		out, err := c.inflating(ctx, target)
		if err != nil || out.Tripped {
			return out, err
		}
		c.state.change(StateHolding)
	}
	if c.state.current() == StateHolding {
		if err := c.holding(ctx); err != nil {
			return advance, err
		}
		c.state.change(StateDeflating)
	}
	if c.state.current() == StateDeflating {
		out, err := c.deflating(ctx, true)
		if err != nil || out.Tripped {
			return out, err
		}
		c.state.change(StateVented)
	}
	return advance, nil
}

// vented records a reference image: the dial is power-cycled while the camera is strobed.
func (c *Cycle) vented(ctx context.Context) error {
	t := c.params.Timing
	if err := c.rig.WaitAndLog(ctx, t.VentedPause); err != nil {
		return err
	}
	if err := c.commands(ctx, CmdDialOff, CmdCameraOn); err != nil {
		return err
	}
	if err := c.rig.WaitAndLog(ctx, maxDuration(t.DialResetPause, t.CameraTriggerPause)); err != nil {
		return err
	}
	if err := c.commands(ctx, CmdDialOn, CmdCameraOff); err != nil {
		return err
	}
	return c.rig.WaitAndLog(ctx, maxDuration(t.DialPowerOnPause, t.PictureTakingPause))
}

func (c *Cycle) inflating(ctx context.Context, target float64) (Outcome, error) {
	t := c.params.Timing
	pid := c.params.PressureID
	c.logger.Infof("p_set = %v", target)
	phase := NewTicker(c.rig.clk, t.FastFillTimeout+t.FillTimeout)

	if err := c.commands(ctx, CmdVentClose); err != nil {
		return advance, err
	}
	p, err := c.rig.sampleVar(ctx, pid, true)
	if err != nil {
		return advance, err
	}
	threshold := target - c.params.FastFillMargin
	if p < threshold {
		if err := c.commands(ctx, CmdFastFillOpen); err != nil {
			return advance, err
		}
		out, err := c.rig.WaitLogOrInterlock(ctx, t.FastFillTimeout, pid,
			func(p float64) bool { return p >= threshold }, inflatingTripMessage)
		if err != nil || out.Tripped {
			return out, err
		}
		if err := c.commands(ctx, CmdFastFillClose); err != nil {
			return advance, err
		}
	}

	if err := c.commands(ctx, CmdFillOpen); err != nil {
		return advance, err
	}
	out, err := c.rig.WaitLogOrInterlock(ctx, t.FillTimeout, pid,
		func(p float64) bool { return p >= target }, inflatingTripMessage)
	if err != nil || out.Tripped {
		return out, err
	}
	if err := c.commands(ctx, CmdFillClose); err != nil {
		return advance, err
	}

	elapsed := phase.Elapsed()
	c.logger.Infof("    inflating completed in %.1f s", elapsed.Seconds())
	c.mu.Lock()
	c.current.InflateTime = elapsed
	c.current.PressureReached = c.rig.registry.Last()[pid]
	c.mu.Unlock()
	return advance, nil
}

// holding dwells at pressure and strobes the camera.
func (c *Cycle) holding(ctx context.Context) error {
	t := c.params.Timing
	if err := c.rig.WaitAndLog(ctx, t.HoldPause); err != nil {
		return err
	}
	if err := c.commands(ctx, CmdCameraOn); err != nil {
		return err
	}
	if err := c.rig.WaitAndLog(ctx, t.CameraTriggerPause); err != nil {
		return err
	}
	if err := c.commands(ctx, CmdCameraOff); err != nil {
		return err
	}
	return c.rig.WaitAndLog(ctx, t.PictureTakingPause)
}

// deflating vents the vessel. record is false for the initial vent, which is not a cycle.
func (c *Cycle) deflating(ctx context.Context, record bool) (Outcome, error) {
	phase := NewTicker(c.rig.clk, c.params.Timing.DeflateTimeout)
	if err := c.commands(ctx, CmdVentOpen); err != nil {
		return advance, err
	}
	low := c.params.LowThreshold
	out, err := c.rig.WaitLogOrInterlock(ctx, c.params.Timing.DeflateTimeout, c.params.PressureID,
		func(p float64) bool { return p < low }, deflatingTripMessage)
	if err != nil || out.Tripped {
		return out, err
	}
	elapsed := phase.Elapsed()
	c.logger.Infof("    deflating completed in %.1f s", elapsed.Seconds())

	if record {
		c.mu.Lock()
		c.current.DeflateTime = elapsed
		rec := c.current
		c.status.Last = &rec
		c.status.Completed++
		c.mu.Unlock()
	}
	return advance, nil
}

func (c *Cycle) commands(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := c.rig.actuators.Command(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
