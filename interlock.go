package pressurecycle

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
)

// Outcome is the result of a control step that may trip the interlock. The caller decides
// what a trip means for the process; the interlock only makes the rig safe.
type Outcome struct {
	Tripped bool
	Message string
}

var advance = Outcome{}

// safeCommands stop every fill path before opening the vent.
var safeCommands = []string{CmdFillClose, CmdFastFillClose, CmdVentOpen}

// Interlock forces the rig into its vented, de-energized configuration. The first trip
// wins; later trips re-issue the safe commands but keep the first message.
type Interlock struct {
	actuators *Actuators
	clk       clock.Clock
	logger    logging.Logger

	mu        sync.Mutex
	tripped   bool
	message   string
	trippedAt time.Time
}

// NewInterlock wraps the actuator table.
func NewInterlock(actuators *Actuators, clk clock.Clock, logger logging.Logger) *Interlock {
	return &Interlock{actuators: actuators, clk: clk, logger: logger}
}

// Trip issues every safe command, best effort, and reports the trip. It ignores ctx
// cancellation: the rig is made safe even when the run that tripped is being torn down.
// Any actuation failures are returned alongside the tripped outcome.
func (i *Interlock) Trip(ctx context.Context, message string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	var errs error
	for _, name := range safeCommands {
		errs = multierr.Combine(errs, i.actuators.Command(ctx, name))
	}

	i.mu.Lock()
	first := !i.tripped
	if first {
		i.tripped = true
		i.message = message
		i.trippedAt = i.clk.Now()
	}
	out := Outcome{Tripped: true, Message: i.message}
	i.mu.Unlock()

	if first {
		i.logger.Errorf("INTERLOCK: %s", message)
	} else {
		i.logger.Warnf("interlock already tripped (%s), safe state re-issued", out.Message)
	}
	if errs != nil {
		i.logger.Errorw("interlock could not drive every output", "error", errs)
	}
	return out, errs
}

// Tripped reports whether the interlock has fired and with which message.
func (i *Interlock) Tripped() (bool, string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tripped, i.message
}

// TrippedAt is when the first trip happened; zero if never.
func (i *Interlock) TrippedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.trippedAt
}
