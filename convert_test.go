package pressurecycle

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestLinearConversion(t *testing.T) {
	conv := Linear(1.0, 5.0, 0, 300, 0)

	t.Run("interpolates between calibration points", func(t *testing.T) {
		test.That(t, conv.Apply(3.0), test.ShouldEqual, 150.0)
		test.That(t, conv.Apply(1.0), test.ShouldEqual, 0.0)
		test.That(t, conv.Apply(5.0), test.ShouldEqual, 300.0)
	})

	t.Run("extrapolates without clamping", func(t *testing.T) {
		test.That(t, conv.Apply(0.0), test.ShouldEqual, -75.0)
		test.That(t, conv.Apply(6.0), test.ShouldEqual, 375.0)
	})

	t.Run("adds the offset after interpolation", func(t *testing.T) {
		withOffset := Linear(1.0, 5.0, 0, 300, -14.696)
		test.That(t, withOffset.Apply(3.0), test.ShouldAlmostEqual, 135.304)
	})

	t.Run("invert round trips", func(t *testing.T) {
		withOffset := Linear(1.0, 5.0, 0, 300, -14.696)
		for _, v := range []float64{-14.696, 0, 42.5, 150, 400} {
			test.That(t, withOffset.Apply(withOffset.Invert(v)), test.ShouldAlmostEqual, v)
		}
	})

	t.Run("current loop defaults give 1 to 5 volts", func(t *testing.T) {
		lo, hi := CurrentLoop(250, 0.004, 0.020)
		test.That(t, lo, test.ShouldAlmostEqual, 1.0)
		test.That(t, hi, test.ShouldAlmostEqual, 5.0)
	})
}

func TestIdentityConversion(t *testing.T) {
	var zero Conversion
	test.That(t, zero.Kind, test.ShouldEqual, ConversionIdentity)
	test.That(t, zero.Apply(-1.25), test.ShouldEqual, -1.25)
	test.That(t, Identity().Apply(7), test.ShouldEqual, 7.0)
	test.That(t, Identity().Validate(), test.ShouldBeNil)
	test.That(t, Identity().Kind.String(), test.ShouldEqual, "identity")
}

func TestConversionValidate(t *testing.T) {
	err := Linear(2, 2, 0, 300, 0).Validate()
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	err = Linear(1, 5, 10, 10, 0).Validate()
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	err = Conversion{Kind: ConversionKind(9)}.Validate()
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	test.That(t, Linear(1, 5, 0, 300, -14.696).Validate(), test.ShouldBeNil)
}
