package pressurecycle

// SweepPlan is the series of target pressures, each cycled CyclesPerStep times. EndPSI is
// exclusive.
type SweepPlan struct {
	StartPSI      float64
	EndPSI        float64
	StepPSI       float64
	CyclesPerStep int
}

// Validate rejects plans that are empty or do not increase.
func (p SweepPlan) Validate() error {
	if p.StepPSI <= 0 {
		return configErrorf("sweep step must be positive, got %v", p.StepPSI)
	}
	if p.EndPSI <= p.StartPSI {
		return configErrorf("sweep end %v must be above start %v", p.EndPSI, p.StartPSI)
	}
	if p.CyclesPerStep < 1 {
		return configErrorf("cycles per step must be at least 1, got %d", p.CyclesPerStep)
	}
	return nil
}

// Targets lists the target pressures in order. Each is computed from the start so steps
// do not accumulate rounding error.
func (p SweepPlan) Targets() []float64 {
	if p.Validate() != nil {
		return nil
	}
	var out []float64
	for i := 0; ; i++ {
		v := p.StartPSI + float64(i)*p.StepPSI
		if v >= p.EndPSI {
			return out
		}
		out = append(out, v)
	}
}

// TotalCycles is the number of inflate/deflate cycles the plan runs.
func (p SweepPlan) TotalCycles() int {
	return len(p.Targets()) * p.CyclesPerStep
}
