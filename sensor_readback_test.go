package pressurecycle

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/rdk/testutils/inject"
)

func newReadingsSensor(name string, readings map[string]interface{}, err error) *inject.Sensor {
	s := inject.NewSensor(name)
	s.ReadingsFunc = func(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
		return readings, err
	}
	return s
}

func TestSensorReadback(t *testing.T) {
	ctx := context.Background()

	t.Run("reads the configured key", func(t *testing.T) {
		s := newReadingsSensor("load-cell", map[string]interface{}{"force": 12.5, "value": 3.0}, nil)
		pv := SensorReadback(SensorReadbackConfig{Name: "f", Sensor: "load-cell", Key: "force", Unit: "N", Decimals: 1}, s)
		v, err := pv.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if v != 12.5 {
			t.Errorf("expected 12.5, got %v", v)
		}
		if pv.Unit != "N" {
			t.Errorf("expected unit N, got %q", pv.Unit)
		}
		if got := pv.Format(v); got != "12.5 N" {
			t.Errorf("expected \"12.5 N\", got %q", got)
		}
	})

	t.Run("defaults to the value key", func(t *testing.T) {
		s := newReadingsSensor("thermo", map[string]interface{}{"value": int64(21)}, nil)
		pv := SensorReadback(SensorReadbackConfig{Name: "temp", Sensor: "thermo"}, s)
		v, err := pv.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if v != 21 {
			t.Errorf("expected 21, got %v", v)
		}
		if pv.Unit != NoUnit {
			t.Errorf("expected unit %q, got %q", NoUnit, pv.Unit)
		}
	})

	t.Run("handles numeric and bool readings", func(t *testing.T) {
		for _, tc := range []struct {
			val  interface{}
			want float64
		}{
			{float32(1.5), 1.5},
			{int(7), 7},
			{int32(-3), -3},
			{true, 1},
			{false, 0},
		} {
			s := newReadingsSensor("s", map[string]interface{}{"value": tc.val}, nil)
			v, err := SensorReadback(SensorReadbackConfig{Name: "x", Sensor: "s"}, s).Read(ctx)
			if err != nil {
				t.Fatalf("Read(%T) failed: %v", tc.val, err)
			}
			if v != tc.want {
				t.Errorf("Read(%T) = %v, want %v", tc.val, v, tc.want)
			}
		}
	})

	t.Run("missing key is a read error", func(t *testing.T) {
		s := newReadingsSensor("s", map[string]interface{}{"other": 1.0}, nil)
		_, err := SensorReadback(SensorReadbackConfig{Name: "x", Sensor: "s"}, s).Read(ctx)
		if !errors.Is(err, ErrSensorRead) {
			t.Errorf("expected ErrSensorRead, got %v", err)
		}
	})

	t.Run("non-numeric reading is a read error", func(t *testing.T) {
		s := newReadingsSensor("s", map[string]interface{}{"value": "hot"}, nil)
		_, err := SensorReadback(SensorReadbackConfig{Name: "x", Sensor: "s"}, s).Read(ctx)
		if !errors.Is(err, ErrSensorRead) {
			t.Errorf("expected ErrSensorRead, got %v", err)
		}
	})

	t.Run("sensor failure is a read error", func(t *testing.T) {
		s := newReadingsSensor("s", nil, errors.New("i2c nack"))
		_, err := SensorReadback(SensorReadbackConfig{Name: "x", Sensor: "s"}, s).Read(ctx)
		if !errors.Is(err, ErrSensorRead) {
			t.Errorf("expected ErrSensorRead, got %v", err)
		}
	})
}
