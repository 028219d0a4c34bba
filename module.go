package pressurecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
	"go.viam.com/utils"
)

var Controller = resource.NewModel("viamdemo", "pressure-cycle-test", "controller")

func init() {
	resource.RegisterService(generic.API, Controller,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newPressureCycleController,
		},
	)
}

// sweepRun is one started sweep. outcome and err are set when the worker finishes.
type sweepRun struct {
	runID   string
	rig     *Rig
	cycle   *Cycle
	workers *utils.StoppableWorkers
	done    chan struct{}

	finished bool
	outcome  Outcome
	err      error
}

type pressureCycleController struct {
	resource.AlwaysRebuild

	name    resource.Name
	logger  logging.Logger
	cfg     *Config
	clk     clock.Clock
	daq     DAQ
	sensors map[string]sensor.Sensor

	mu        sync.Mutex
	activeRun *sweepRun
	lastRun   *sweepRun
}

func newPressureCycleController(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewController(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewController(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	b, err := board.FromDependencies(deps, conf.Board)
	if err != nil {
		return nil, fmt.Errorf("getting board: %w", err)
	}

	sensors := map[string]sensor.Sensor{}
	for _, r := range conf.SensorReadbacks {
		if _, ok := sensors[r.Sensor]; ok {
			continue
		}
		s, err := sensor.FromDependencies(deps, r.Sensor)
		if err != nil {
			return nil, fmt.Errorf("getting sensor %q: %w", r.Sensor, err)
		}
		sensors[r.Sensor] = s
	}

	return newController(name, conf, newBoardDAQ(b, logger), sensors, clock.New(), logger)
}

func newController(
	name resource.Name,
	conf *Config,
	daq DAQ,
	sensors map[string]sensor.Sensor,
	clk clock.Clock,
	logger logging.Logger,
) (*pressureCycleController, error) {
	if err := conf.ValidateRig(); err != nil {
		return nil, err
	}
	return &pressureCycleController{
		name:    name,
		logger:  logger,
		cfg:     conf,
		clk:     clk,
		daq:     daq,
		sensors: sensors,
	}, nil
}

func (s *pressureCycleController) Name() resource.Name {
	return s.name
}

func (s *pressureCycleController) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'command' field")
	}

	switch command {
	case "start":
		return s.handleStart()
	case "stop":
		return s.handleStop()
	case "status":
		return s.GetState(), nil
	case "interlock":
		return s.handleInterlock(ctx, cmd)
	case "monitor":
		return s.handleMonitor(ctx, cmd)
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func (s *pressureCycleController) buildRig() (*Rig, error) {
	return BuildRig(s.cfg, RigParts{
		DAQ:     s.daq,
		Sensors: s.sensors,
		Clock:   s.clk,
		Console: &logWriter{logger: s.logger},
	}, s.logger)
}

func (s *pressureCycleController) handleStart() (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeRun != nil {
		return nil, errRunActive
	}

	rig, err := s.buildRig()
	if err != nil {
		return nil, err
	}
	cycle, err := NewCycle(rig, s.cfg.CycleParams(), s.logger)
	if err != nil {
		return nil, err
	}
	dataLog, err := rig.OpenLog(s.cfg.LogDir)
	if err != nil {
		return nil, err
	}

	run := &sweepRun{
		runID: "run-" + s.clk.Now().UTC().Format("20060102-150405"),
		rig:   rig,
		cycle: cycle,
		done:  make(chan struct{}),
	}
	s.activeRun = run
	run.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		s.runSweep(ctx, run)
	})

	s.logger.Infof("sweep %s started: %d cycles", run.runID, s.cfg.CycleParams().Sweep.TotalCycles())
	return map[string]interface{}{
		"status":   "started",
		"run_id":   run.runID,
		"log_file": dataLog.Path(),
		"cycles":   s.cfg.CycleParams().Sweep.TotalCycles(),
	}, nil
}

func (s *pressureCycleController) runSweep(ctx context.Context, run *sweepRun) {
	defer close(run.done)

	outcome, err := run.cycle.Run(ctx)
	if closeErr := run.rig.Close(); closeErr != nil {
		s.logger.Warnw("closing data log", "error", closeErr)
	}

	switch {
	case err != nil:
		s.logger.Errorw("sweep failed", "run_id", run.runID, "error", err)
	case outcome.Tripped:
		s.logger.Errorf("sweep %s tripped: %s", run.runID, outcome.Message)
	default:
		s.logger.Infof("sweep %s completed", run.runID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	run.finished = true
	run.outcome = outcome
	run.err = err
	if s.activeRun == run {
		s.activeRun = nil
	}
	s.lastRun = run
}

// stopActive cancels the active run, if any, and waits for its worker. The cancelled run
// trips its own interlock on the way out.
func (s *pressureCycleController) stopActive() *sweepRun {
	s.mu.Lock()
	run := s.activeRun
	s.mu.Unlock()
	if run == nil {
		return nil
	}
	run.workers.Stop()
	<-run.done
	return run
}

func (s *pressureCycleController) handleStop() (map[string]interface{}, error) {
	run := s.stopActive()
	if run == nil {
		return nil, errNoRun
	}
	tripped, message := run.rig.Interlock().Tripped()
	return map[string]interface{}{
		"status":       "stopped",
		"run_id":       run.runID,
		"tripped":      tripped,
		"trip_message": message,
	}, nil
}

// handleInterlock is the operator trip. It drives the safe state even with no sweep running.
func (s *pressureCycleController) handleInterlock(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	message, _ := cmd["message"].(string)
	if message == "" {
		message = "operator interlock"
	}

	s.mu.Lock()
	run := s.activeRun
	s.mu.Unlock()

	var (
		out Outcome
		err error
	)
	if run != nil {
		out, err = run.rig.Interlock().Trip(ctx, message)
		s.stopActive()
	} else {
		rig, buildErr := s.buildRig()
		if buildErr != nil {
			return nil, buildErr
		}
		out, err = rig.Interlock().Trip(ctx, message)
	}
	result := map[string]interface{}{
		"status":       "tripped",
		"trip_message": out.Message,
	}
	return result, err
}

func (s *pressureCycleController) handleMonitor(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	active := s.activeRun != nil
	s.mu.Unlock()
	if active {
		return nil, errors.Wrap(errRunActive, "monitor")
	}

	d := s.cfg.MonitorDuration()
	if secs, ok := cmd["duration_s"].(float64); ok {
		if secs <= 0 {
			return nil, fmt.Errorf("duration_s must be positive, got %v", secs)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	log, _ := cmd["log"].(bool)

	rig, err := s.buildRig()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rig.Close(); err != nil {
			s.logger.Warnw("closing monitor log", "error", err)
		}
	}()

	result := map[string]interface{}{"status": "completed"}
	if log {
		dataLog, err := rig.OpenLog(s.cfg.LogDir)
		if err != nil {
			return nil, err
		}
		result["log_file"] = dataLog.Path()
	}
	if err := rig.Monitor(ctx, d, s.cfg.MonitorPollInterval(), log); err != nil {
		return nil, err
	}
	result["readings"] = snapshotMap(rig.Registry().Last())
	return result, nil
}

// RigStatus is a typed view of the current or most recent sweep. RunID is empty when no
// sweep has been started.
type RigStatus struct {
	State       string
	RunID       string
	Cycle       CycleStatus
	Tripped     bool
	TripMessage string
	TrippedAt   time.Time
	Err         error
	LogFile     string
	LoggedRows  int
	Readings    Snapshot
	Outputs     map[string]Level
}

// Status reports the current or most recent sweep.
func (s *pressureCycleController) Status() RigStatus {
	s.mu.Lock()
	run := s.activeRun
	st := RigStatus{State: "running"}
	if run == nil {
		run = s.lastRun
		st.State = "idle"
	}
	if run != nil && run.finished {
		st.Err = run.err
		switch {
		case run.err != nil:
			st.State = "failed"
		case run.outcome.Tripped:
			st.State = "tripped"
		default:
			st.State = "completed"
		}
	}
	s.mu.Unlock()

	if run == nil {
		return st
	}
	st.RunID = run.runID
	st.Cycle = run.cycle.Status()
	st.Tripped, st.TripMessage = run.rig.Interlock().Tripped()
	st.TrippedAt = run.rig.Interlock().TrippedAt()
	if l := run.rig.Registry().Log(); l != nil {
		st.LogFile = l.Path()
		st.LoggedRows = l.Rows()
	}
	st.Readings = run.rig.Registry().Last()
	st.Outputs = run.rig.Actuators().Shadow().Snapshot()
	return st
}

// GetState is Status flattened for the status command.
func (s *pressureCycleController) GetState() map[string]interface{} {
	st := s.Status()
	result := map[string]interface{}{"state": st.State}
	if st.RunID == "" {
		return result
	}

	result["run_id"] = st.RunID
	result["cycle_state"] = st.Cycle.State.String()
	result["target_psi"] = st.Cycle.Target
	result["target_index"] = st.Cycle.TargetIndex
	result["targets"] = st.Cycle.Targets
	result["cycle"] = st.Cycle.Cycle
	result["completed_cycles"] = st.Cycle.Completed
	result["tripped"] = st.Tripped
	result["trip_message"] = st.TripMessage
	if !st.TrippedAt.IsZero() {
		result["tripped_at"] = st.TrippedAt.UTC().Format(time.RFC3339Nano)
	}
	if st.Err != nil {
		result["error"] = st.Err.Error()
	}
	if st.LogFile != "" {
		result["log_file"] = st.LogFile
		result["logged_rows"] = st.LoggedRows
	}
	if last := st.Cycle.Last; last != nil {
		result["last_inflate_s"] = last.InflateTime.Seconds()
		result["last_deflate_s"] = last.DeflateTime.Seconds()
		result["last_pressure_reached_psi"] = last.PressureReached
	}
	if st.Readings != nil {
		result["readings"] = snapshotMap(st.Readings)
	}
	outputs := make(map[string]interface{}, len(st.Outputs))
	for id, level := range st.Outputs {
		outputs[id] = level.String()
	}
	result["outputs"] = outputs
	return result
}

func (s *pressureCycleController) Close(context.Context) error {
	s.stopActive()
	return nil
}

func snapshotMap(snap Snapshot) map[string]interface{} {
	out := make(map[string]interface{}, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}

// logWriter sends the readback console lines to the module log.
type logWriter struct {
	logger logging.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
