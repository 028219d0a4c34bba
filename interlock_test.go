package pressurecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

func TestInterlockTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("closes every fill path then opens the vent", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		daq := newFakeDAQ()
		a, err := NewActuators(daq, testOutputs, DefaultCommands(), logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, a.Command(ctx, CmdFillOpen), test.ShouldBeNil)
		test.That(t, a.Command(ctx, CmdFastFillOpen), test.ShouldBeNil)
		test.That(t, a.Command(ctx, CmdVentClose), test.ShouldBeNil)

		il := NewInterlock(a, clock.New(), logger)
		out, err := il.Trip(ctx, "pressure too high")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldResemble, Outcome{Tripped: true, Message: "pressure too high"})

		writes := daq.writeLog()
		test.That(t, writes[len(writes)-3:], test.ShouldResemble, []string{"1=1", "2=1", "7=0"})
		test.That(t, a.Shadow().Level(OutputFill), test.ShouldEqual, LevelHigh)
		test.That(t, a.Shadow().Level(OutputFastFill), test.ShouldEqual, LevelHigh)
		test.That(t, a.Shadow().Level(OutputVent), test.ShouldEqual, LevelLow)
		test.That(t, logs.FilterMessage("INTERLOCK: pressure too high").Len(), test.ShouldEqual, 1)
	})

	t.Run("second trip re-issues the safe state and keeps the first message", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		daq := newFakeDAQ()
		a, err := NewActuators(daq, testOutputs, DefaultCommands(), logger)
		test.That(t, err, test.ShouldBeNil)
		clk := clock.NewMock()
		il := NewInterlock(a, clk, logger)

		_, err = il.Trip(ctx, "first")
		test.That(t, err, test.ShouldBeNil)
		firstAt := il.TrippedAt()
		clk.Add(1)

		test.That(t, a.Command(ctx, CmdVentClose), test.ShouldBeNil)
		out, err := il.Trip(ctx, "second")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Message, test.ShouldEqual, "first")
		test.That(t, daq.level("7"), test.ShouldEqual, LevelLow)
		test.That(t, il.TrippedAt(), test.ShouldEqual, firstAt)

		tripped, msg := il.Tripped()
		test.That(t, tripped, test.ShouldBeTrue)
		test.That(t, msg, test.ShouldEqual, "first")
		test.That(t, logs.FilterMessageSnippet("INTERLOCK:").Len(), test.ShouldEqual, 1)
		test.That(t, daq.writeLog(), test.ShouldHaveLength, 7)
	})

	t.Run("still trips when ctx is cancelled", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		daq := newFakeDAQ()
		a, err := NewActuators(daq, testOutputs, DefaultCommands(), logger)
		test.That(t, err, test.ShouldBeNil)
		il := NewInterlock(a, clock.New(), logger)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		out, err := il.Trip(cancelled, "stopped")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Tripped, test.ShouldBeTrue)
		test.That(t, daq.level("7"), test.ShouldEqual, LevelLow)
	})

	t.Run("reports actuation failures but still trips", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		daq := newFakeDAQ()
		daq.writeErr = errors.New("daq unplugged")
		a, err := NewActuators(daq, testOutputs, DefaultCommands(), logger)
		test.That(t, err, test.ShouldBeNil)
		il := NewInterlock(a, clock.New(), logger)

		out, err := il.Trip(ctx, "leak")
		test.That(t, errors.Is(err, ErrActuation), test.ShouldBeTrue)
		test.That(t, out.Tripped, test.ShouldBeTrue)
		test.That(t, a.Shadow().Level(OutputVent), test.ShouldEqual, LevelLow)
		tripped, _ := il.Tripped()
		test.That(t, tripped, test.ShouldBeTrue)
	})
}
