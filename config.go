package pressurecycle

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults of the rig this controller was built for.
const (
	defaultPollInterval        = 0.1
	defaultMonitorPollInterval = 0.5
	defaultMonitorDuration     = 60
	defaultStartPSI            = 50
	defaultEndPSI              = 100
	defaultStepPSI             = 1
	defaultCyclesPerStep       = 1
	defaultFastFillMarginPSI   = 10
	defaultLowThresholdPSI     = 0.1
	defaultHoldPause           = 1
	defaultVentedPause         = 1
	defaultFastFillTimeout     = 10
	defaultFillTimeout         = 10
	defaultDeflateTimeout      = 20
	defaultDialResetPause      = 0.2
	defaultDialPowerOnPause    = 1
	defaultCameraTriggerPause  = 0.2
	defaultPictureTakingPause  = 4

	defaultShuntOhms     = 250
	defaultLoCurrentMA   = 4
	defaultHiCurrentMA   = 20
	defaultLoPSI         = 0
	defaultHiPSI         = 300
	defaultOffsetPSI     = -14.696
	defaultPressureID    = "p"
	defaultPressureInput = "AIN12"
)

var defaultStrainGauges = []string{"AIN4", "AIN5", "AIN6", "AIN7"}

// Config is the controller's attribute block.
type Config struct {
	Board           string                 `json:"board" yaml:"board"`
	PressureChannel string                 `json:"pressure_channel,omitempty" yaml:"pressure_channel,omitempty"`
	StrainGauges    []string               `json:"strain_gauge_channels,omitempty" yaml:"strain_gauge_channels,omitempty"`
	Outputs         OutputsConfig          `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Transducer      TransducerConfig       `json:"transducer,omitempty" yaml:"transducer,omitempty"`
	SensorReadbacks []SensorReadbackConfig `json:"sensor_readbacks,omitempty" yaml:"sensor_readbacks,omitempty"`
	Sweep           SweepConfig            `json:"sweep,omitempty" yaml:"sweep,omitempty"`
	Timing          TimingConfig           `json:"timing,omitempty" yaml:"timing,omitempty"`
	LogDir          string                 `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
}

// OutputsConfig maps the rig's outputs to board GPIO pin names.
type OutputsConfig struct {
	Vent          string `json:"vent,omitempty" yaml:"vent,omitempty"`
	Fill          string `json:"fill,omitempty" yaml:"fill,omitempty"`
	FastFill      string `json:"fast_fill,omitempty" yaml:"fast_fill,omitempty"`
	DialPower     string `json:"dial_power,omitempty" yaml:"dial_power,omitempty"`
	CameraTrigger string `json:"camera_trigger,omitempty" yaml:"camera_trigger,omitempty"`
}

// TransducerConfig describes the 4-20 mA pressure transmitter.
type TransducerConfig struct {
	ShuntOhms   float64  `json:"shunt_ohms,omitempty" yaml:"shunt_ohms,omitempty"`
	LoCurrentMA float64  `json:"lo_current_ma,omitempty" yaml:"lo_current_ma,omitempty"`
	HiCurrentMA float64  `json:"hi_current_ma,omitempty" yaml:"hi_current_ma,omitempty"`
	LoPSI       *float64 `json:"lo_psi,omitempty" yaml:"lo_psi,omitempty"`
	HiPSI       float64  `json:"hi_psi,omitempty" yaml:"hi_psi,omitempty"`
	OffsetPSI   *float64 `json:"offset_psi,omitempty" yaml:"offset_psi,omitempty"`
}

// SensorReadbackConfig logs one numeric reading of a Viam sensor alongside the DAQ channels.
type SensorReadbackConfig struct {
	Name     string `json:"name" yaml:"name"`
	Sensor   string `json:"sensor" yaml:"sensor"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Decimals int    `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// SweepConfig is the target pressure ramp.
type SweepConfig struct {
	StartPSI          float64  `json:"start_psi,omitempty" yaml:"start_psi,omitempty"`
	EndPSI            float64  `json:"end_psi,omitempty" yaml:"end_psi,omitempty"`
	StepPSI           float64  `json:"step_psi,omitempty" yaml:"step_psi,omitempty"`
	CyclesPerStep     int      `json:"cycles_per_step,omitempty" yaml:"cycles_per_step,omitempty"`
	FastFillMarginPSI *float64 `json:"fast_fill_margin_psi,omitempty" yaml:"fast_fill_margin_psi,omitempty"`
	LowThresholdPSI   *float64 `json:"low_threshold_psi,omitempty" yaml:"low_threshold_psi,omitempty"`
}

// TimingConfig holds pauses and timeouts, in seconds. Pauses are pointers because zero is a
// valid pause; intervals and timeouts must be positive, so zero selects the default.
type TimingConfig struct {
	PollInterval        float64  `json:"poll_interval_s,omitempty" yaml:"poll_interval_s,omitempty"`
	MonitorPollInterval float64  `json:"monitor_poll_interval_s,omitempty" yaml:"monitor_poll_interval_s,omitempty"`
	MonitorDuration     float64  `json:"monitor_duration_s,omitempty" yaml:"monitor_duration_s,omitempty"`
	VentedPause         *float64 `json:"vented_pause_s,omitempty" yaml:"vented_pause_s,omitempty"`
	HoldPause           *float64 `json:"hold_pause_s,omitempty" yaml:"hold_pause_s,omitempty"`
	DialResetPause      *float64 `json:"dial_reset_pause_s,omitempty" yaml:"dial_reset_pause_s,omitempty"`
	DialPowerOnPause    *float64 `json:"dial_power_on_pause_s,omitempty" yaml:"dial_power_on_pause_s,omitempty"`
	CameraTriggerPause  *float64 `json:"camera_trigger_pause_s,omitempty" yaml:"camera_trigger_pause_s,omitempty"`
	PictureTakingPause  *float64 `json:"picture_taking_pause_s,omitempty" yaml:"picture_taking_pause_s,omitempty"`
	FastFillTimeout     float64  `json:"fast_fill_timeout_s,omitempty" yaml:"fast_fill_timeout_s,omitempty"`
	FillTimeout         float64  `json:"fill_timeout_s,omitempty" yaml:"fill_timeout_s,omitempty"`
	DeflateTimeout      float64  `json:"deflate_timeout_s,omitempty" yaml:"deflate_timeout_s,omitempty"`
}

func (t TimingConfig) pauses() map[string]*float64 {
	return map[string]*float64{
		"vented_pause_s":         t.VentedPause,
		"hold_pause_s":           t.HoldPause,
		"dial_reset_pause_s":     t.DialResetPause,
		"dial_power_on_pause_s":  t.DialPowerOnPause,
		"camera_trigger_pause_s": t.CameraTriggerPause,
		"picture_taking_pause_s": t.PictureTakingPause,
	}
}

// Validate returns the board and any Viam sensors feeding readbacks as dependencies.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.Board == "" {
		return nil, nil, fmt.Errorf("%s: board is required", path)
	}
	if err := cfg.ValidateRig(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	deps := []string{cfg.Board}
	seen := map[string]bool{cfg.Board: true}
	for _, r := range cfg.SensorReadbacks {
		if !seen[r.Sensor] {
			deps = append(deps, r.Sensor)
			seen[r.Sensor] = true
		}
	}
	return deps, nil, nil
}

// ValidateRig checks everything but the dependencies, so it also applies to simulated rigs.
func (cfg *Config) ValidateRig() error {
	for i, r := range cfg.SensorReadbacks {
		if r.Name == "" || r.Sensor == "" {
			return configErrorf("sensor_readbacks.%d: name and sensor are required", i)
		}
	}
	channels := map[string]string{}
	for _, o := range cfg.outputs() {
		if other, taken := channels[o.Channel]; taken {
			return configErrorf("outputs.%s and outputs.%s are both on pin %q", other, o.ID, o.Channel)
		}
		channels[o.Channel] = o.ID
	}
	if err := cfg.Conversion().Validate(); err != nil {
		return errors.Wrap(err, "transducer")
	}
	if err := cfg.CycleParams().Validate(); err != nil {
		return err
	}
	if cfg.Timing.PollInterval < 0 || cfg.Timing.MonitorPollInterval < 0 || cfg.Timing.MonitorDuration < 0 {
		return configErrorf("intervals and durations must not be negative")
	}
	for name, v := range cfg.Timing.pauses() {
		if v != nil && *v < 0 {
			return configErrorf("timing.%s must not be negative, got %v", name, *v)
		}
	}
	return nil
}

// LoadConfig reads a YAML config file, as used by the command line tools.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "parsing %s: %v", path, err)
	}
	return cfg, nil
}

// Conversion is the pressure transducer model.
func (cfg *Config) Conversion() Conversion {
	t := cfg.Transducer
	voltsLo, voltsHi := CurrentLoop(
		orDefault(t.ShuntOhms, defaultShuntOhms),
		orDefault(t.LoCurrentMA, defaultLoCurrentMA)/1000,
		orDefault(t.HiCurrentMA, defaultHiCurrentMA)/1000,
	)
	return Linear(voltsLo, voltsHi,
		ptrOrDefault(t.LoPSI, defaultLoPSI),
		orDefault(t.HiPSI, defaultHiPSI),
		ptrOrDefault(t.OffsetPSI, defaultOffsetPSI),
	)
}

// CycleParams resolves the sweep, thresholds and timing.
func (cfg *Config) CycleParams() CycleParams {
	s, t := cfg.Sweep, cfg.Timing
	cycles := s.CyclesPerStep
	if cycles == 0 {
		cycles = defaultCyclesPerStep
	}
	return CycleParams{
		Sweep: SweepPlan{
			StartPSI:      orDefault(s.StartPSI, defaultStartPSI),
			EndPSI:        orDefault(s.EndPSI, defaultEndPSI),
			StepPSI:       orDefault(s.StepPSI, defaultStepPSI),
			CyclesPerStep: cycles,
		},
		PressureID:     defaultPressureID,
		FastFillMargin: ptrOrDefault(s.FastFillMarginPSI, defaultFastFillMarginPSI),
		LowThreshold:   ptrOrDefault(s.LowThresholdPSI, defaultLowThresholdPSI),
		Timing: CycleTiming{
			VentedPause:        pause(t.VentedPause, defaultVentedPause),
			HoldPause:          pause(t.HoldPause, defaultHoldPause),
			DialResetPause:     pause(t.DialResetPause, defaultDialResetPause),
			DialPowerOnPause:   pause(t.DialPowerOnPause, defaultDialPowerOnPause),
			CameraTriggerPause: pause(t.CameraTriggerPause, defaultCameraTriggerPause),
			PictureTakingPause: pause(t.PictureTakingPause, defaultPictureTakingPause),
			FastFillTimeout:    seconds(t.FastFillTimeout, defaultFastFillTimeout),
			FillTimeout:        seconds(t.FillTimeout, defaultFillTimeout),
			DeflateTimeout:     seconds(t.DeflateTimeout, defaultDeflateTimeout),
		},
	}
}

// PollInterval is the sleep between samples during a sweep.
func (cfg *Config) PollInterval() time.Duration {
	return seconds(cfg.Timing.PollInterval, defaultPollInterval)
}

// MonitorPollInterval is the sleep between samples in monitor mode.
func (cfg *Config) MonitorPollInterval() time.Duration {
	return seconds(cfg.Timing.MonitorPollInterval, defaultMonitorPollInterval)
}

// MonitorDuration is how long monitor mode runs when no duration is given.
func (cfg *Config) MonitorDuration() time.Duration {
	return seconds(cfg.Timing.MonitorDuration, defaultMonitorDuration)
}

func (cfg *Config) outputs() []Output {
	o := cfg.Outputs
	return []Output{
		{OutputVent, stringOrDefault(o.Vent, "7")},
		{OutputFill, stringOrDefault(o.Fill, "1")},
		{OutputFastFill, stringOrDefault(o.FastFill, "2")},
		{OutputDialPower, stringOrDefault(o.DialPower, "5")},
		{OutputCameraTrigger, stringOrDefault(o.CameraTrigger, "0")},
	}
}

func (cfg *Config) pressureChannel() string {
	return stringOrDefault(cfg.PressureChannel, defaultPressureInput)
}

func (cfg *Config) strainGauges() []string {
	if len(cfg.StrainGauges) == 0 {
		return defaultStrainGauges
	}
	return cfg.StrainGauges
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func ptrOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func stringOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func seconds(v, def float64) time.Duration {
	return time.Duration(orDefault(v, def) * float64(time.Second))
}

func pause(v *float64, def float64) time.Duration {
	return time.Duration(ptrOrDefault(v, def) * float64(time.Second))
}
