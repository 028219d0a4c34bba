package pressurecycle

// ConversionKind names the unit conversion a process variable applies to its raw reading.
type ConversionKind int

const (
	// ConversionIdentity passes the raw value through unchanged.
	ConversionIdentity ConversionKind = iota
	// ConversionLinear is a two-point linear transducer model plus a fixed offset.
	ConversionLinear
)

func (k ConversionKind) String() string {
	switch k {
	case ConversionIdentity:
		return "identity"
	case ConversionLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// Conversion turns a raw reading into engineering units. The zero value is the identity.
type Conversion struct {
	Kind ConversionKind

	// Two-point calibration: raw VoltsLo reads as Lo, raw VoltsHi reads as Hi.
	VoltsLo float64
	VoltsHi float64
	Lo      float64
	Hi      float64
	// Offset is added after interpolation, e.g. gauge to absolute correction.
	Offset float64
}

// Identity returns the pass-through conversion.
func Identity() Conversion {
	return Conversion{Kind: ConversionIdentity}
}

// Linear returns a two-point linear conversion. It is deliberately unclamped: raw values
// outside [voltsLo, voltsHi] extrapolate.
func Linear(voltsLo, voltsHi, lo, hi, offset float64) Conversion {
	return Conversion{
		Kind:    ConversionLinear,
		VoltsLo: voltsLo,
		VoltsHi: voltsHi,
		Lo:      lo,
		Hi:      hi,
		Offset:  offset,
	}
}

// CurrentLoop returns the voltages a current-loop transmitter produces across a shunt.
func CurrentLoop(shuntOhms, loAmps, hiAmps float64) (voltsLo, voltsHi float64) {
	return loAmps * shuntOhms, hiAmps * shuntOhms
}

// Validate rejects calibrations that cannot be interpolated.
func (c Conversion) Validate() error {
	switch c.Kind {
	case ConversionIdentity:
		return nil
	case ConversionLinear:
		if c.VoltsHi == c.VoltsLo {
			return configErrorf("linear conversion needs distinct calibration voltages, got %v twice", c.VoltsLo)
		}
		if c.Hi == c.Lo {
			return configErrorf("linear conversion needs distinct calibration values, got %v twice", c.Lo)
		}
		return nil
	default:
		return configErrorf("unknown conversion kind %d", c.Kind)
	}
}

// Apply converts a raw reading.
func (c Conversion) Apply(raw float64) float64 {
	if c.Kind != ConversionLinear {
		return raw
	}
	return c.Lo + (raw-c.VoltsLo)*(c.Hi-c.Lo)/(c.VoltsHi-c.VoltsLo) + c.Offset
}

// Invert maps an engineering value back to the raw reading that would produce it.
func (c Conversion) Invert(value float64) float64 {
	if c.Kind != ConversionLinear {
		return value
	}
	return c.VoltsLo + (value-c.Offset-c.Lo)*(c.VoltsHi-c.VoltsLo)/(c.Hi-c.Lo)
}
