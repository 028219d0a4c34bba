package pressurecycle

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// LogDelimiter separates columns in the data log.
const LogDelimiter = ", "

// LogFileName names a run's data log after its UTC start time.
func LogFileName(started time.Time) string {
	return "log_" + started.UTC().Format("2006-01-02-15-04-05") + ".txt"
}

// DataLog is the append-only text log of a run: ids, bracketed units, then one row of
// values per logged sample. Rows go straight to the file so a crash or trip leaves
// everything written so far readable.
type DataLog struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	columns int
	rows    int
}

// OpenDataLog creates the log in dir and writes the two header rows.
func OpenDataLog(dir string, started time.Time, header, units []string) (*DataLog, error) {
	if len(header) != len(units) {
		return nil, configErrorf("header has %d columns but units has %d", len(header), len(units))
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}
	f, path, err := createLogFile(dir, LogFileName(started))
	if err != nil {
		return nil, errors.Wrap(err, "creating data log")
	}
	bracketed := make([]string, len(units))
	for i, u := range units {
		bracketed[i] = "[" + u + "]"
	}
	l := &DataLog{f: f, path: path, columns: len(header)}
	if err := l.writeLine(header); err != nil {
		return nil, multierr.Combine(err, f.Close())
	}
	if err := l.writeLine(bracketed); err != nil {
		return nil, multierr.Combine(err, f.Close())
	}
	return l, nil
}

// maxLogSuffix bounds the search for a free name when runs start within the same second.
const maxLogSuffix = 1000

// createLogFile never reuses an existing file: a taken name gets a -1, -2, ... suffix.
func createLogFile(dir, name string) (*os.File, string, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	path := filepath.Join(dir, name)
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) || n > maxLogSuffix {
			return nil, "", err
		}
		path = filepath.Join(dir, stem+"-"+strconv.Itoa(n)+filepath.Ext(name))
	}
}

// Path is the log file location.
func (l *DataLog) Path() string {
	return l.path
}

// Rows is the number of value rows written.
func (l *DataLog) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// WriteRow appends one sample. The column count must match the header.
func (l *DataLog) WriteRow(values []float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(values) != l.columns {
		return errors.Errorf("row has %d columns, log has %d", len(values), l.columns)
	}
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if err := l.writeLine(cells); err != nil {
		return err
	}
	l.rows++
	return nil
}

func (l *DataLog) writeLine(cells []string) error {
	if l.f == nil {
		return errors.New("data log is closed")
	}
	if _, err := l.f.WriteString(strings.Join(cells, LogDelimiter) + "\n"); err != nil {
		return errors.Wrapf(err, "writing %s", l.path)
	}
	return nil
}

// Close syncs and closes the file. Closing twice is a no-op.
func (l *DataLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := multierr.Combine(l.f.Sync(), l.f.Close())
	l.f = nil
	return err
}
