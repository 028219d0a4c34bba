package pressurecycle

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Logical digital outputs of the rig.
const (
	OutputVent          = "vent"
	OutputFill          = "fill"
	OutputFastFill      = "fast_fill"
	OutputDialPower     = "dial_power"
	OutputCameraTrigger = "camera_trigger"
)

// Named actuator commands.
const (
	CmdVentOpen      = "vent_open"
	CmdVentClose     = "vent_close"
	CmdFillOpen      = "fill_open"
	CmdFillClose     = "fill_close"
	CmdFastFillOpen  = "fast_fill_open"
	CmdFastFillClose = "fast_fill_close"
	CmdDialOn        = "dial_on"
	CmdDialOff       = "dial_off"
	CmdCameraOn      = "camera_on"
	CmdCameraOff     = "camera_off"
)

// ShadowState is the last commanded level of every output. Outputs start at LevelUnknown.
type ShadowState struct {
	mu     sync.RWMutex
	levels map[string]Level
}

// NewShadowState tracks the given outputs.
func NewShadowState(outputs ...string) *ShadowState {
	levels := make(map[string]Level, len(outputs))
	for _, o := range outputs {
		levels[o] = LevelUnknown
	}
	return &ShadowState{levels: levels}
}

// Level returns the last commanded level of an output.
func (s *ShadowState) Level(output string) Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[output]
	if !ok {
		return LevelUnknown
	}
	return l
}

// Snapshot copies the whole table.
func (s *ShadowState) Snapshot() map[string]Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Level, len(s.levels))
	for k, v := range s.levels {
		out[k] = v
	}
	return out
}

func (s *ShadowState) tracks(output string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.levels[output]
	return ok
}

func (s *ShadowState) set(output string, level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[output] = level
}

// Output binds a logical output to a DAQ digital channel.
type Output struct {
	ID      string
	Channel string
}

// ActuatorCommand is a fixed (output, level) pair invoked by name.
type ActuatorCommand struct {
	Name   string
	Output string
	Level  Level
}

// DefaultCommands is the command table of the rig. Outputs are active-low.
func DefaultCommands() []ActuatorCommand {
	return []ActuatorCommand{
		{CmdVentOpen, OutputVent, LevelLow},
		{CmdVentClose, OutputVent, LevelHigh},
		{CmdFillOpen, OutputFill, LevelLow},
		{CmdFillClose, OutputFill, LevelHigh},
		{CmdFastFillOpen, OutputFastFill, LevelLow},
		{CmdFastFillClose, OutputFastFill, LevelHigh},
		{CmdDialOn, OutputDialPower, LevelLow},
		{CmdDialOff, OutputDialPower, LevelHigh},
		{CmdCameraOn, OutputCameraTrigger, LevelLow},
		{CmdCameraOff, OutputCameraTrigger, LevelHigh},
	}
}

// Actuators is the named command table over the DAQ's digital outputs.
type Actuators struct {
	daq      DAQ
	shadow   *ShadowState
	logger   logging.Logger
	outputs  map[string]string
	commands map[string]ActuatorCommand
}

// NewActuators builds the command table. Every command must target a known output.
func NewActuators(daq DAQ, outputs []Output, commands []ActuatorCommand, logger logging.Logger) (*Actuators, error) {
	a := &Actuators{
		daq:      daq,
		logger:   logger,
		outputs:  make(map[string]string, len(outputs)),
		commands: make(map[string]ActuatorCommand, len(commands)),
	}
	ids := make([]string, 0, len(outputs))
	owners := make(map[string]string, len(outputs))
	for _, o := range outputs {
		if o.ID == "" || o.Channel == "" {
			return nil, configErrorf("output %q needs an id and a channel", o.ID)
		}
		if _, dup := a.outputs[o.ID]; dup {
			return nil, configErrorf("duplicate output %q", o.ID)
		}
		// A shared channel would let one output's safe level drive another's unsafe one.
		if other, taken := owners[o.Channel]; taken {
			return nil, configErrorf("outputs %q and %q share channel %q", other, o.ID, o.Channel)
		}
		owners[o.Channel] = o.ID
		a.outputs[o.ID] = o.Channel
		ids = append(ids, o.ID)
	}
	for _, c := range commands {
		if _, ok := a.outputs[c.Output]; !ok {
			return nil, configErrorf("command %q targets unknown output %q", c.Name, c.Output)
		}
		if c.Level != LevelLow && c.Level != LevelHigh {
			return nil, configErrorf("command %q has no drivable level", c.Name)
		}
		if _, dup := a.commands[c.Name]; dup {
			return nil, configErrorf("duplicate command %q", c.Name)
		}
		a.commands[c.Name] = c
	}
	a.shadow = NewShadowState(ids...)
	return a, nil
}

// Shadow exposes the last commanded levels.
func (a *Actuators) Shadow() *ShadowState {
	return a.shadow
}

// InitDirections configures every output channel as an output.
func (a *Actuators) InitDirections(ctx context.Context) error {
	ids := make([]string, 0, len(a.outputs))
	for id := range a.outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := a.daq.SetDigitalDirection(ctx, a.outputs[id], true); err != nil {
			return errors.Wrapf(err, "configuring output %q", id)
		}
	}
	return nil
}

// Command runs a named command. The shadow state is updated before the hardware write so
// samples taken from here on already report the commanded level.
func (a *Actuators) Command(ctx context.Context, name string) error {
	c, ok := a.commands[name]
	if !ok {
		return configErrorf("unknown actuator command %q", name)
	}
	a.shadow.set(c.Output, c.Level)
	a.logger.Debugf("%s: %s -> %v", name, c.Output, c.Level)
	if err := a.daq.SetDigitalOutput(ctx, a.outputs[c.Output], c.Level); err != nil {
		if !errors.Is(err, ErrActuation) {
			return errors.Wrapf(ErrActuation, "%s: %v", name, err)
		}
		return errors.Wrap(err, name)
	}
	return nil
}
