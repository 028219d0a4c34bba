package pressurecycle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestLogFileName(t *testing.T) {
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.FixedZone("X", 3600))
	test.That(t, LogFileName(started), test.ShouldEqual, "log_2024-03-09-13-05-07.txt")
}

func TestDataLog(t *testing.T) {
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	t.Run("writes header, units and rows", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")
		dl, err := OpenDataLog(dir, started, []string{"t", "p", "sol1"}, []string{"s", "psi", NoUnit})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dl.Path(), test.ShouldEqual, filepath.Join(dir, "log_2024-03-09-14-05-07.txt"))

		test.That(t, dl.WriteRow([]float64{1.5, 50.25, 1}), test.ShouldBeNil)
		test.That(t, dl.WriteRow([]float64{1.6, -0.5, 0}), test.ShouldBeNil)
		test.That(t, dl.Rows(), test.ShouldEqual, 2)
		test.That(t, dl.Close(), test.ShouldBeNil)

		data, err := os.ReadFile(dl.Path())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual,
			"t, p, sol1\n[s], [psi], [-]\n1.5, 50.25, 1\n1.6, -0.5, 0\n")
	})

	t.Run("rejects rows of the wrong width", func(t *testing.T) {
		dl, err := OpenDataLog(t.TempDir(), started, []string{"t", "p"}, []string{"s", "psi"})
		test.That(t, err, test.ShouldBeNil)
		defer dl.Close()
		test.That(t, dl.WriteRow([]float64{1}), test.ShouldNotBeNil)
		test.That(t, dl.Rows(), test.ShouldEqual, 0)
	})

	t.Run("rejects mismatched header and units", func(t *testing.T) {
		_, err := OpenDataLog(t.TempDir(), started, []string{"t", "p"}, []string{"s"})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("runs started in the same second get their own file", func(t *testing.T) {
		dir := t.TempDir()
		first, err := OpenDataLog(dir, started, []string{"t"}, []string{"s"})
		test.That(t, err, test.ShouldBeNil)
		defer first.Close()
		test.That(t, first.WriteRow([]float64{1}), test.ShouldBeNil)

		second, err := OpenDataLog(dir, started, []string{"t"}, []string{"s"})
		test.That(t, err, test.ShouldBeNil)
		defer second.Close()
		third, err := OpenDataLog(dir, started, []string{"t"}, []string{"s"})
		test.That(t, err, test.ShouldBeNil)
		defer third.Close()

		test.That(t, second.Path(), test.ShouldEqual, filepath.Join(dir, "log_2024-03-09-14-05-07-1.txt"))
		test.That(t, third.Path(), test.ShouldEqual, filepath.Join(dir, "log_2024-03-09-14-05-07-2.txt"))

		data, err := os.ReadFile(first.Path())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual, "t\n[s]\n1\n")
	})

	t.Run("unwritable directory is still an error", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		test.That(t, os.WriteFile(file, nil, 0o600), test.ShouldBeNil)
		_, err := OpenDataLog(file, started, []string{"t"}, []string{"s"})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("close is idempotent and stops writes", func(t *testing.T) {
		dl, err := OpenDataLog(t.TempDir(), started, []string{"t"}, []string{"s"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dl.Close(), test.ShouldBeNil)
		test.That(t, dl.Close(), test.ShouldBeNil)
		test.That(t, dl.WriteRow([]float64{1}), test.ShouldNotBeNil)
	})
}
