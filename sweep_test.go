package pressurecycle

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestSweepPlan(t *testing.T) {
	t.Run("end is exclusive", func(t *testing.T) {
		p := SweepPlan{StartPSI: 50, EndPSI: 52, StepPSI: 1, CyclesPerStep: 1}
		test.That(t, p.Targets(), test.ShouldResemble, []float64{50, 51})
		test.That(t, p.TotalCycles(), test.ShouldEqual, 2)
	})

	t.Run("default sweep has fifty targets", func(t *testing.T) {
		p := SweepPlan{StartPSI: 50, EndPSI: 100, StepPSI: 1, CyclesPerStep: 1}
		targets := p.Targets()
		test.That(t, targets, test.ShouldHaveLength, 50)
		test.That(t, targets[0], test.ShouldEqual, 50.0)
		test.That(t, targets[49], test.ShouldEqual, 99.0)
	})

	t.Run("fractional steps do not drift", func(t *testing.T) {
		p := SweepPlan{StartPSI: 0.5, EndPSI: 1.5, StepPSI: 0.1, CyclesPerStep: 2}
		targets := p.Targets()
		test.That(t, targets, test.ShouldHaveLength, 10)
		test.That(t, targets[9], test.ShouldAlmostEqual, 1.4)
		test.That(t, p.TotalCycles(), test.ShouldEqual, 20)
	})

	t.Run("invalid plans have no targets", func(t *testing.T) {
		for _, p := range []SweepPlan{
			{StartPSI: 50, EndPSI: 50, StepPSI: 1, CyclesPerStep: 1},
			{StartPSI: 50, EndPSI: 100, StepPSI: 0, CyclesPerStep: 1},
			{StartPSI: 50, EndPSI: 100, StepPSI: -1, CyclesPerStep: 1},
			{StartPSI: 50, EndPSI: 100, StepPSI: 1, CyclesPerStep: 0},
		} {
			test.That(t, errors.Is(p.Validate(), ErrConfiguration), test.ShouldBeTrue)
			test.That(t, p.Targets(), test.ShouldBeEmpty)
			test.That(t, p.TotalCycles(), test.ShouldEqual, 0)
		}
	})
}

func TestCycleStateString(t *testing.T) {
	test.That(t, StateVented.String(), test.ShouldEqual, "VENTED")
	test.That(t, StateInflating.String(), test.ShouldEqual, "INFLATING")
	test.That(t, StateHolding.String(), test.ShouldEqual, "HOLDING")
	test.That(t, StateDeflating.String(), test.ShouldEqual, "DEFLATING")
	test.That(t, StateUnset.String(), test.ShouldEqual, "UNSET")
}
