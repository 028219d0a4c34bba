package pressurecycle

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// NoUnit is the unit label of unitless readbacks.
const NoUnit = "-"

// Formatter renders a converted value for the console line.
type Formatter func(v float64) string

// FixedFormat prints a value with a fixed number of decimals and its unit.
func FixedFormat(decimals int, unit string) Formatter {
	return func(v float64) string {
		return fmt.Sprintf("%.*f %s", decimals, v, unit)
	}
}

// ValveFormat prints an active-low valve level.
func ValveFormat(v float64) string {
	return levelWord(v, "open", "closed")
}

// SwitchFormat prints an active-low switch level.
func SwitchFormat(v float64) string {
	return levelWord(v, "on", "off")
}

func levelWord(v float64, low, high string) string {
	switch Level(v) {
	case LevelLow:
		return low
	case LevelHigh:
		return high
	default:
		return "unknown"
	}
}

// ProcessVariable is one named readback: where the raw value comes from, how it is
// converted, and how it is shown.
type ProcessVariable struct {
	ID      string
	Unit    string
	Read    func(ctx context.Context) (float64, error)
	Convert Conversion
	Format  Formatter
}

// ClockReadback reports wall-clock time in unix seconds.
func ClockReadback(id string, clk clock.Clock) ProcessVariable {
	return ProcessVariable{
		ID:   id,
		Unit: "s",
		Read: func(context.Context) (float64, error) {
			return float64(clk.Now().UnixNano()) / float64(time.Second), nil
		},
		Convert: Identity(),
		Format:  FixedFormat(1, "s"),
	}
}

// AnalogReadback reads a DAQ analog channel and converts it.
func AnalogReadback(id string, daq DAQ, channel, unit string, decimals int, conv Conversion) ProcessVariable {
	return ProcessVariable{
		ID:   id,
		Unit: unit,
		Read: func(ctx context.Context) (float64, error) {
			return daq.ReadAnalog(ctx, channel)
		},
		Convert: conv,
		Format:  FixedFormat(decimals, unit),
	}
}

// ShadowReadback reports the last commanded level of an output; there is no hardware
// read-back for these.
func ShadowReadback(id string, shadow *ShadowState, output string, format Formatter) ProcessVariable {
	return ProcessVariable{
		ID: id,
		Read: func(context.Context) (float64, error) {
			return float64(shadow.Level(output)), nil
		},
		Convert: Identity(),
		Format:  format,
	}
}

// Snapshot maps readback ids to converted values of one sample.
type Snapshot map[string]float64

// Registry samples a fixed, ordered set of process variables. The order is the column order
// of the data log.
type Registry struct {
	vars    []ProcessVariable
	console io.Writer
	log     *DataLog

	mu   sync.Mutex
	last Snapshot
}

// NewRegistry validates the variable set. It cannot be changed afterwards.
func NewRegistry(vars []ProcessVariable, console io.Writer) (*Registry, error) {
	if len(vars) == 0 {
		return nil, configErrorf("registry has no process variables")
	}
	seen := make(map[string]struct{}, len(vars))
	for i, v := range vars {
		if v.ID == "" {
			return nil, configErrorf("process variable %d has no id", i)
		}
		if strings.ContainsAny(v.ID, ",\n") {
			return nil, configErrorf("process variable id %q contains a delimiter", v.ID)
		}
		if _, dup := seen[v.ID]; dup {
			return nil, configErrorf("duplicate process variable %q", v.ID)
		}
		seen[v.ID] = struct{}{}
		if v.Read == nil || v.Format == nil {
			return nil, configErrorf("process variable %q needs a reader and a formatter", v.ID)
		}
		if err := v.Convert.Validate(); err != nil {
			return nil, errors.Wrap(err, v.ID)
		}
	}
	if console == nil {
		console = io.Discard
	}
	return &Registry{vars: append([]ProcessVariable(nil), vars...), console: console}, nil
}

// Header returns the readback ids in column order.
func (r *Registry) Header() []string {
	out := make([]string, len(r.vars))
	for i, v := range r.vars {
		out[i] = v.ID
	}
	return out
}

// Units returns the unit labels in column order.
func (r *Registry) Units() []string {
	out := make([]string, len(r.vars))
	for i, v := range r.vars {
		out[i] = v.Unit
		if out[i] == "" {
			out[i] = NoUnit
		}
	}
	return out
}

// OpenLog creates the run's data log and writes its header and units rows.
func (r *Registry) OpenLog(dir string, started time.Time) (*DataLog, error) {
	if r.log != nil {
		return nil, errors.New("data log already open")
	}
	l, err := OpenDataLog(dir, started, r.Header(), r.Units())
	if err != nil {
		return nil, err
	}
	r.log = l
	return l, nil
}

// Log returns the attached data log, if any.
func (r *Registry) Log() *DataLog {
	return r.log
}

// Last returns a copy of the most recent sample, or nil before the first one.
func (r *Registry) Last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	out := make(Snapshot, len(r.last))
	for k, v := range r.last {
		out[k] = v
	}
	return out
}

// SampleAll reads and converts every variable in order, prints the summary line, and when
// log is set appends one row to the data log. A failed read aborts the sample.
func (r *Registry) SampleAll(ctx context.Context, log bool) (Snapshot, error) {
	if log && r.log == nil {
		return nil, errors.New("sample requested logging but no data log is open")
	}
	values := make([]float64, len(r.vars))
	for i, v := range r.vars {
		raw, err := v.Read(ctx)
		if err != nil {
			if !errors.Is(err, ErrSensorRead) {
				return nil, errors.Wrapf(ErrSensorRead, "%s: %v", v.ID, err)
			}
			return nil, errors.Wrap(err, v.ID)
		}
		values[i] = v.Convert.Apply(raw)
	}

	var line strings.Builder
	snap := make(Snapshot, len(r.vars))
	for i, v := range r.vars {
		fmt.Fprintf(&line, "%s = %s; ", v.ID, v.Format(values[i]))
		snap[v.ID] = values[i]
	}
	fmt.Fprintln(r.console, line.String())

	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()

	if log {
		if err := r.log.WriteRow(values); err != nil {
			return nil, err
		}
	}
	return snap, nil
}
