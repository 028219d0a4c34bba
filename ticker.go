package pressurecycle

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Ticker is a relative deadline armed at construction. Re-arm by building a new one.
type Ticker struct {
	clk      clock.Clock
	armedAt  time.Time
	duration time.Duration
}

// NewTicker arms a ticker for d, measured from now on clk.
func NewTicker(clk clock.Clock, d time.Duration) Ticker {
	return Ticker{clk: clk, armedAt: clk.Now(), duration: d}
}

// Expired reports whether more than the armed duration has passed since arming.
// Always measured from the arm time, so polling it never accumulates drift.
func (t Ticker) Expired() bool {
	return t.clk.Since(t.armedAt) > t.duration
}

// Elapsed is the time since the ticker was armed.
func (t Ticker) Elapsed() time.Duration {
	return t.clk.Since(t.armedAt)
}
