package pressurecycle

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/sensor"
)

// sensorValueReader pulls one numeric key out of a Viam sensor's readings.
type sensorValueReader struct {
	sensor sensor.Sensor
	key    string
}

func newSensorValueReader(s sensor.Sensor, key string) *sensorValueReader {
	if key == "" {
		key = "value"
	}
	return &sensorValueReader{sensor: s, key: key}
}

func (r *sensorValueReader) Read(ctx context.Context) (float64, error) {
	readings, err := r.sensor.Readings(ctx, nil)
	if err != nil {
		return 0, errors.Wrapf(ErrSensorRead, "%s: %v", r.sensor.Name().ShortName(), err)
	}

	val, ok := readings[r.key]
	if !ok {
		return 0, errors.Wrapf(ErrSensorRead, "sensor readings missing %q key", r.key)
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.Wrapf(ErrSensorRead, "sensor reading %q is not numeric: %T", r.key, val)
	}
}

// SensorReadback logs a Viam sensor reading as a process variable.
func SensorReadback(conf SensorReadbackConfig, s sensor.Sensor) ProcessVariable {
	unit := conf.Unit
	if unit == "" {
		unit = NoUnit
	}
	reader := newSensorValueReader(s, conf.Key)
	decimals := conf.Decimals
	if decimals <= 0 {
		decimals = 3
	}
	return ProcessVariable{
		ID:      conf.Name,
		Unit:    unit,
		Read:    reader.Read,
		Convert: Identity(),
		Format: func(v float64) string {
			return fmt.Sprintf("%.*f %s", decimals, v, unit)
		},
	}
}
