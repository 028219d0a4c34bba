package pressurecycle

import (
	"context"
	"fmt"
	"time"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

var RigSensor = resource.NewModel("viamdemo", "pressure-cycle-test", "rig-sensor")

func init() {
	resource.RegisterComponent(sensor.API, RigSensor,
		resource.Registration[sensor.Sensor, *RigSensorConfig]{
			Constructor: newRigSensor,
		},
	)
}

type RigSensorConfig struct {
	Controller string `json:"controller"`
}

func (cfg *RigSensorConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Controller == "" {
		return nil, nil, fmt.Errorf("%s: controller is required", path)
	}
	// Return full resource name so Viam knows this is a generic service dependency
	dep := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), cfg.Controller)
	return []string{dep.String()}, nil, nil
}

type statusProvider interface {
	Status() RigStatus
}

// rigSensor publishes sweep progress as flat numeric and boolean readings so data capture
// can record it next to the raw log. Each last readback value appears under its readback
// id; status keys take precedence on a clash.
type rigSensor struct {
	resource.AlwaysRebuild

	name       resource.Name
	logger     logging.Logger
	controller statusProvider
}

func newRigSensor(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*RigSensorConfig](rawConf)
	if err != nil {
		return nil, err
	}

	controllerName := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), conf.Controller)
	ctrl, ok := deps[controllerName]
	if !ok {
		return nil, fmt.Errorf("controller %q not found in dependencies", conf.Controller)
	}

	provider, ok := ctrl.(statusProvider)
	if !ok {
		return nil, fmt.Errorf("controller %q is not a pressure cycle controller", conf.Controller)
	}

	return &rigSensor{
		name:       rawConf.ResourceName(),
		logger:     logger,
		controller: provider,
	}, nil
}

func (s *rigSensor) Name() resource.Name {
	return s.name
}

func (s *rigSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	st := s.controller.Status()

	readings := make(map[string]interface{}, len(st.Readings)+16)
	for id, v := range st.Readings {
		readings[id] = v
	}
	readings["state"] = st.State
	// should_sync lets data capture skip idle periods
	readings["should_sync"] = st.State == "running"
	if st.RunID == "" {
		return readings, nil
	}

	readings["run_id"] = st.RunID
	readings["cycle_state"] = st.Cycle.State.String()
	readings["target_psi"] = st.Cycle.Target
	readings["target_index"] = st.Cycle.TargetIndex
	readings["targets"] = st.Cycle.Targets
	readings["cycle"] = st.Cycle.Cycle
	readings["completed_cycles"] = st.Cycle.Completed
	readings["tripped"] = st.Tripped
	readings["failed"] = st.Err != nil
	readings["logged_rows"] = st.LoggedRows
	if !st.TrippedAt.IsZero() {
		readings["tripped_at_unix_s"] = float64(st.TrippedAt.UnixNano()) / float64(time.Second)
	}
	if last := st.Cycle.Last; last != nil {
		readings["last_inflate_s"] = last.InflateTime.Seconds()
		readings["last_deflate_s"] = last.DeflateTime.Seconds()
		readings["last_pressure_reached_psi"] = last.PressureReached
	}
	return readings, nil
}

func (s *rigSensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("DoCommand not supported on rig-sensor")
}

func (s *rigSensor) Close(context.Context) error {
	return nil
}
