package pressurecycle

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
)

// Rig is the controller context shared by every phase: the clock, the actuator table,
// the readback registry and the interlock.
type Rig struct {
	clk       clock.Clock
	logger    logging.Logger
	actuators *Actuators
	registry  *Registry
	interlock *Interlock
	poll      time.Duration
}

// NewRig assembles a rig context. poll is the sleep between samples inside the waits.
func NewRig(clk clock.Clock, actuators *Actuators, registry *Registry, poll time.Duration, logger logging.Logger) *Rig {
	return &Rig{
		clk:       clk,
		logger:    logger,
		actuators: actuators,
		registry:  registry,
		interlock: NewInterlock(actuators, clk, logger),
		poll:      poll,
	}
}

// Actuators returns the rig's command table.
func (r *Rig) Actuators() *Actuators { return r.actuators }

// Registry returns the rig's readback registry.
func (r *Rig) Registry() *Registry { return r.registry }

// Interlock returns the rig's interlock.
func (r *Rig) Interlock() *Interlock { return r.interlock }

func (r *Rig) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := r.clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sampleFor samples at every interval until d has passed. It samples before checking the
// deadline, so there is always at least one sample.
func (r *Rig) sampleFor(ctx context.Context, d, interval time.Duration, log bool) error {
	t := NewTicker(r.clk, d)
	for {
		if _, err := r.registry.SampleAll(ctx, log); err != nil {
			return err
		}
		if err := r.sleep(ctx, interval); err != nil {
			return err
		}
		if t.Expired() {
			return nil
		}
	}
}

// WaitAndLog polls and logs every readback for d.
func (r *Rig) WaitAndLog(ctx context.Context, d time.Duration) error {
	return r.sampleFor(ctx, d, r.poll, true)
}

// WaitLogOrInterlock samples until stop holds for the named readback. If timeout passes
// first the interlock trips with tripMessage. Only the first sample is logged.
func (r *Rig) WaitLogOrInterlock(
	ctx context.Context,
	timeout time.Duration,
	id string,
	stop func(float64) bool,
	tripMessage string,
) (Outcome, error) {
	v, err := r.sampleVar(ctx, id, true)
	if err != nil {
		return advance, err
	}
	t := NewTicker(r.clk, timeout)
	for !stop(v) {
		if err := r.sleep(ctx, r.poll); err != nil {
			return advance, err
		}
		if v, err = r.sampleVar(ctx, id, false); err != nil {
			return advance, err
		}
		if stop(v) {
			break
		}
		if t.Expired() {
			return r.interlock.Trip(ctx, tripMessage)
		}
	}
	return advance, nil
}

func (r *Rig) sampleVar(ctx context.Context, id string, log bool) (float64, error) {
	snap, err := r.registry.SampleAll(ctx, log)
	if err != nil {
		return 0, err
	}
	v, ok := snap[id]
	if !ok {
		return 0, configErrorf("no readback named %q", id)
	}
	return v, nil
}
