package clock

import (
	"time"

	"github.com/park285/checkora/internal/board"
)

const DefaultAllowance = 600

// Clock holds both sides' remaining whole seconds and the instant the game was
// last observed. Elapsed time is charged lazily, on the next Tick.
type Clock struct {
	White        int
	Black        int
	LastObserved time.Time
	Paused       bool

	now func() time.Time
}

func New(allowance int, now func() time.Time) *Clock {
	if allowance <= 0 {
		allowance = DefaultAllowance
	}
	c := &Clock{White: allowance, Black: allowance}
	c.SetNow(now)
	c.Stamp()
	return c
}

// Restore rebuilds a clock from persisted values without re-stamping.
func Restore(white, black int, last time.Time, paused bool, now func() time.Time) *Clock {
	c := &Clock{White: clampZero(white), Black: clampZero(black), LastObserved: last, Paused: paused}
	c.SetNow(now)
	return c
}

func (c *Clock) SetNow(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	c.now = now
}

func (c *Clock) Stamp() {
	c.LastObserved = c.now().UTC().Round(0)
}

// Tick charges side for the whole seconds elapsed since the last stamp, then
// re-stamps. A paused clock is only re-stamped.
func (c *Clock) Tick(side board.Color) {
	if !c.Paused {
		elapsed := int(c.now().Sub(c.LastObserved) / time.Second)
		if elapsed > 0 {
			c.charge(side, elapsed)
		}
	}
	c.Stamp()
}

// Pause charges side up to now and stops the clock.
func (c *Clock) Pause(side board.Color) {
	c.Tick(side)
	c.Paused = true
}

func (c *Clock) Resume() {
	c.Paused = false
	c.Stamp()
}

// Flagged reports the first side, white before black, whose time is gone.
func (c *Clock) Flagged() (board.Color, bool) {
	switch {
	case c.White <= 0:
		return board.White, true
	case c.Black <= 0:
		return board.Black, true
	default:
		return "", false
	}
}

func (c *Clock) Remaining(side board.Color) int {
	if side == board.Black {
		return c.Black
	}
	return c.White
}

func (c *Clock) charge(side board.Color, secs int) {
	if side == board.Black {
		c.Black = clampZero(c.Black - secs)
		return
	}
	c.White = clampZero(c.White - secs)
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
